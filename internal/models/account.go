package models

import "time"

// Role identifies what an account is allowed to do.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
	RoleHost  Role = "HOST"
)

// AccountType distinguishes the plan tier an account was created on.
type AccountType string

const (
	AccountType1 AccountType = "TYPE_1"
	AccountType2 AccountType = "TYPE_2"
)

// Account represents a user account in the system
type Account struct {
	ID            int64
	Handle        string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Phone         string
	Role          Role
	AccountType   AccountType
	OAuthProvider string
	OAuthSubject  string
	Active        bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// IsAnonymized reports whether the account has gone through GDPR anonymization.
// Anonymization is terminal: the row is kept but deactivated and stamped.
func (a *Account) IsAnonymized() bool {
	return !a.Active && a.DeletedAt != nil
}

// Session represents an authenticated session
type Session struct {
	ID        string
	AccountID int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
