package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"accountd/internal/database"
	"accountd/internal/models"
	"accountd/internal/repository"
	"accountd/internal/token"
	"accountd/internal/validation"
)

const testBaseURL = "http://app.test"

type sentReset struct {
	toEmail  string
	resetURL string
}

// fakeNotifier records outbound notifications instead of sending them.
type fakeNotifier struct {
	mu      sync.Mutex
	resets  []sentReset
	welcome []string
	fail    bool
}

func (f *fakeNotifier) SendPasswordResetEmail(_ context.Context, toEmail, _, resetURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp down")
	}
	f.resets = append(f.resets, sentReset{toEmail: toEmail, resetURL: resetURL})
	return nil
}

func (f *fakeNotifier) SendWelcomeEmail(_ context.Context, toEmail, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp down")
	}
	f.welcome = append(f.welcome, toEmail)
	return nil
}

func (f *fakeNotifier) lastReset(t *testing.T) sentReset {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.resets) == 0 {
		t.Fatal("no password reset email was sent")
	}
	return f.resets[len(f.resets)-1]
}

func newTestService(t *testing.T) (*AuthService, *fakeNotifier) {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	notifier := &fakeNotifier{}
	accounts := repository.NewAccountRepository(db)
	tokens := token.NewGenerator("test-secret", 24*time.Hour)
	return NewAuthService(accounts, tokens, notifier, testBaseURL, time.Hour), notifier
}

func register(t *testing.T, s *AuthService, handle, email, password string) *models.Account {
	t.Helper()
	account, _, err := s.Register(context.Background(), RegisterRequest{
		Handle:          handle,
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
		FirstName:       "Test",
		LastName:        "User",
	})
	if err != nil {
		t.Fatalf("Register(%q) error = %v", handle, err)
	}
	return account
}

// splitResetURL pulls the uid and token path segments out of a reset link.
func splitResetURL(t *testing.T, resetURL string) (uid, resetToken string) {
	t.Helper()
	rest, found := strings.CutPrefix(resetURL, testBaseURL+"/password-reset/")
	if !found {
		t.Fatalf("unexpected reset URL: %s", resetURL)
	}
	uid, resetToken, found = strings.Cut(rest, "/")
	if !found {
		t.Fatalf("reset URL missing token segment: %s", resetURL)
	}
	return uid, resetToken
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestService(t)

	tests := []struct {
		name      string
		req       RegisterRequest
		wantField string
	}{
		{
			name: "bad email",
			req: RegisterRequest{
				Handle: "alice", Email: "not-an-email",
				Password: "password123", PasswordConfirm: "password123",
				FirstName: "A", LastName: "B",
			},
			wantField: "email",
		},
		{
			name: "short password",
			req: RegisterRequest{
				Handle: "alice", Email: "alice@example.com",
				Password: "short", PasswordConfirm: "short",
				FirstName: "A", LastName: "B",
			},
			wantField: "password",
		},
		{
			name: "numeric password",
			req: RegisterRequest{
				Handle: "alice", Email: "alice@example.com",
				Password: "1234567890", PasswordConfirm: "1234567890",
				FirstName: "A", LastName: "B",
			},
			wantField: "password",
		},
		{
			name: "mismatched confirmation",
			req: RegisterRequest{
				Handle: "alice", Email: "alice@example.com",
				Password: "password123", PasswordConfirm: "password124",
				FirstName: "A", LastName: "B",
			},
			wantField: "password_confirm",
		},
		{
			name: "short handle",
			req: RegisterRequest{
				Handle: "al", Email: "alice@example.com",
				Password: "password123", PasswordConfirm: "password123",
				FirstName: "A", LastName: "B",
			},
			wantField: "handle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Register(context.Background(), tt.req)
			var errs validation.Errors
			if !errors.As(err, &errs) {
				t.Fatalf("Register() error = %v, want validation.Errors", err)
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on field %q, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestRegisterDuplicateHandleAndEmail(t *testing.T) {
	s, _ := newTestService(t)
	register(t, s, "alice", "alice@example.com", "password123")

	_, _, err := s.Register(context.Background(), RegisterRequest{
		Handle: "alice", Email: "other@example.com",
		Password: "password123", PasswordConfirm: "password123",
		FirstName: "A", LastName: "B",
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Field != "handle" {
		t.Errorf("duplicate handle: error = %v, want ConflictError{handle}", err)
	}

	_, _, err = s.Register(context.Background(), RegisterRequest{
		Handle: "bob", Email: "alice@example.com",
		Password: "password123", PasswordConfirm: "password123",
		FirstName: "A", LastName: "B",
	})
	if !errors.As(err, &conflict) || conflict.Field != "email" {
		t.Errorf("duplicate email: error = %v, want ConflictError{email}", err)
	}
}

func TestRegisterSendsWelcomeEmail(t *testing.T) {
	s, notifier := newTestService(t)
	register(t, s, "alice", "alice@example.com", "password123")

	if len(notifier.welcome) != 1 || notifier.welcome[0] != "alice@example.com" {
		t.Errorf("welcome emails = %v, want [alice@example.com]", notifier.welcome)
	}
}

func TestLogin(t *testing.T) {
	s, _ := newTestService(t)
	register(t, s, "alice", "alice@example.com", "password123")

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := s.Login("alice", "wrongpassword")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown handle", func(t *testing.T) {
		_, _, err := s.Login("nobody", "password123")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("correct credentials", func(t *testing.T) {
		session, account, err := s.Login("alice", "password123")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if session.ID == "" {
			t.Error("Login() returned empty session id")
		}
		if account.LastLoginAt == nil {
			t.Error("Login() did not stamp last login")
		}
	})
}

func TestSessionLifecycle(t *testing.T) {
	s, _ := newTestService(t)
	register(t, s, "alice", "alice@example.com", "password123")

	session, _, err := s.Login("alice", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	account, err := s.ValidateSession(session.ID)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if account.Handle != "alice" {
		t.Errorf("ValidateSession() account = %q, want alice", account.Handle)
	}

	if err := s.Logout(session.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := s.ValidateSession(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ValidateSession() after logout error = %v, want ErrSessionNotFound", err)
	}

	// Logging out twice is a no-op.
	if err := s.Logout(session.ID); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
	if err := s.Logout(""); err != nil {
		t.Errorf("Logout(\"\") error = %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	s, notifier := newTestService(t)
	register(t, s, "alice", "alice@example.com", "oldpassword1")

	if err := s.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}

	mail := notifier.lastReset(t)
	if mail.toEmail != "alice@example.com" {
		t.Errorf("reset sent to %q, want alice@example.com", mail.toEmail)
	}

	uid, resetToken := splitResetURL(t, mail.resetURL)

	valid, err := s.ValidateResetToken(uid, resetToken)
	if err != nil {
		t.Fatalf("ValidateResetToken() error = %v", err)
	}
	if !valid {
		t.Fatal("ValidateResetToken() = false for a fresh token")
	}

	combined := token.Combined(uid, resetToken)
	if err := s.ConfirmPasswordReset(combined, "newpassword1", "newpassword1"); err != nil {
		t.Fatalf("ConfirmPasswordReset() error = %v", err)
	}

	// Old password no longer works, new one does.
	if _, _, err := s.Login("alice", "oldpassword1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with old password error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := s.Login("alice", "newpassword1"); err != nil {
		t.Errorf("Login() with new password error = %v", err)
	}

	// The consumed token is dead.
	if err := s.ConfirmPasswordReset(combined, "anotherpass1", "anotherpass1"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reusing consumed token error = %v, want ErrInvalidToken", err)
	}
}

func TestPasswordResetInvalidatesSessions(t *testing.T) {
	s, notifier := newTestService(t)
	register(t, s, "alice", "alice@example.com", "oldpassword1")

	session, _, err := s.Login("alice", "oldpassword1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := s.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	uid, resetToken := splitResetURL(t, notifier.lastReset(t).resetURL)

	if err := s.ConfirmPasswordReset(token.Combined(uid, resetToken), "newpassword1", "newpassword1"); err != nil {
		t.Fatalf("ConfirmPasswordReset() error = %v", err)
	}

	if _, err := s.ValidateSession(session.ID); err == nil {
		t.Error("session survived a password reset")
	}
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	s, notifier := newTestService(t)

	// Same nil result whether or not the address exists.
	if err := s.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if len(notifier.resets) != 0 {
		t.Errorf("reset email sent for unknown address")
	}
}

func TestRequestPasswordResetDeliveryFailureIsSilent(t *testing.T) {
	s, notifier := newTestService(t)
	register(t, s, "alice", "alice@example.com", "password123")
	notifier.fail = true

	if err := s.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Errorf("RequestPasswordReset() error = %v, want nil despite delivery failure", err)
	}
}

func TestValidateResetTokenMalformed(t *testing.T) {
	s, _ := newTestService(t)
	register(t, s, "alice", "alice@example.com", "password123")

	tests := []struct {
		name  string
		uid   string
		token string
	}{
		{"garbage uid", "!!!", "0-deadbeef"},
		{"unknown account", token.EncodeUID(9999), "0-deadbeef"},
		{"garbage token", token.EncodeUID(1), "nonsense"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, err := s.ValidateResetToken(tt.uid, tt.token)
			if err != nil {
				t.Fatalf("ValidateResetToken() error = %v", err)
			}
			if valid {
				t.Error("ValidateResetToken() = true, want false")
			}
		})
	}
}

func TestConfirmPasswordResetValidation(t *testing.T) {
	s, _ := newTestService(t)

	err := s.ConfirmPasswordReset("whatever", "short", "short")
	var errs validation.Errors
	if !errors.As(err, &errs) {
		t.Errorf("ConfirmPasswordReset() error = %v, want validation.Errors", err)
	}

	err = s.ConfirmPasswordReset("no-separator", "password123", "password123")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ConfirmPasswordReset() error = %v, want ErrInvalidToken", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	s, _ := newTestService(t)
	account := register(t, s, "alice", "alice@example.com", "password123")

	session, _, err := s.Login("alice", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	t.Run("wrong password", func(t *testing.T) {
		err := s.DeleteAccount(account, session.ID, "wrongpassword", "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("DeleteAccount() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("correct password anonymizes", func(t *testing.T) {
		if err := s.DeleteAccount(account, session.ID, "password123", "moving on"); err != nil {
			t.Fatalf("DeleteAccount() error = %v", err)
		}

		if !account.IsAnonymized() {
			t.Error("account not marked anonymized")
		}

		// Session is gone, credentials no longer work, reset is refused.
		if _, err := s.ValidateSession(session.ID); err == nil {
			t.Error("session survived account deletion")
		}
		if _, _, err := s.Login("alice", "password123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login() after deletion error = %v, want ErrInvalidCredentials", err)
		}
		if err := s.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
			t.Errorf("RequestPasswordReset() after deletion error = %v", err)
		}
	})
}

func TestCleanupExpiredSessions(t *testing.T) {
	s, _ := newTestService(t)
	account := register(t, s, "alice", "alice@example.com", "password123")

	// Create an already-expired session directly.
	expired, err := s.accounts.CreateSession("expired-session", account.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := s.CleanupExpiredSessions(); err != nil {
		t.Fatalf("CleanupExpiredSessions() error = %v", err)
	}

	got, err := s.accounts.GetSession(expired.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got != nil {
		t.Error("expired session survived cleanup")
	}
}
