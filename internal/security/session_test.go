package security

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsSecureRequest(t *testing.T) {
	t.Run("plain http", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://example.com/", nil)
		if IsSecureRequest(r) {
			t.Error("IsSecureRequest() = true for plain http")
		}
	})

	t.Run("forwarded proto", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://example.com/", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		if !IsSecureRequest(r) {
			t.Error("IsSecureRequest() = false behind https proxy")
		}
	})
}

func TestCreateSessionCookie(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	expires := time.Now().Add(time.Hour)

	cookie := CreateSessionCookie(r, "some-session-id", expires)

	if cookie.Name != SessionCookieName {
		t.Errorf("cookie name = %q, want %q", cookie.Name, SessionCookieName)
	}
	if cookie.Value != "some-session-id" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("cookie should be HttpOnly")
	}
	if cookie.Secure {
		t.Error("cookie should not be Secure over plain http")
	}
}

func TestCreateDeleteCookie(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	cookie := CreateDeleteCookie(r)

	if cookie.Name != SessionCookieName {
		t.Errorf("cookie name = %q, want %q", cookie.Name, SessionCookieName)
	}
	if cookie.MaxAge != -1 {
		t.Errorf("cookie MaxAge = %d, want -1", cookie.MaxAge)
	}
	if cookie.Value != "" {
		t.Errorf("cookie value = %q, want empty", cookie.Value)
	}
}
