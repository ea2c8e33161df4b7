package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)
)

// Error represents a field-level validation error
type Error struct {
	Field   string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors collects field-level validation errors for one request.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return Error{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return Error{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateHandle checks if a handle (username) is valid
func ValidateHandle(handle string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return Error{Field: "handle", Message: "handle is required"}
	}
	if len(handle) < 3 {
		return Error{Field: "handle", Message: "handle must be at least 3 characters"}
	}
	if len(handle) > 150 {
		return Error{Field: "handle", Message: "handle must be at most 150 characters"}
	}
	if !handleRegex.MatchString(handle) {
		return Error{Field: "handle", Message: "handle may only contain letters, digits and _.-"}
	}
	return nil
}

// ValidatePassword checks if a password meets the strength policy:
// at least 8 characters and not entirely numeric.
func ValidatePassword(password string) error {
	if password == "" {
		return Error{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return Error{Field: "password", Message: "password must be at least 8 characters"}
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return Error{Field: "password", Message: "password cannot be entirely numeric"}
	}
	return nil
}

// ValidateName checks if a first or last name is valid
func ValidateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Error{Field: field, Message: field + " is required"}
	}
	if len(name) > 150 {
		return Error{Field: field, Message: field + " must be at most 150 characters"}
	}
	return nil
}
