package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"accountd/internal/gdpr"
	"accountd/internal/models"
	"accountd/internal/repository"
	"accountd/internal/security"
	"accountd/internal/token"
	"accountd/internal/validation"
)

// notifyTimeout bounds every outbound email call so a slow provider can
// never hang a request.
const notifyTimeout = 10 * time.Second

// Notifier delivers rendered notifications to an account holder. Failures
// are reported, never retried here; retry policy belongs to the
// implementation behind this interface.
type Notifier interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetURL string) error
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
}

// RegisterRequest carries the fields of a registration attempt.
type RegisterRequest struct {
	Handle          string
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
}

// AuthService orchestrates the account lifecycle: registration, login,
// password reset and GDPR deletion.
type AuthService struct {
	accounts        *repository.AccountRepository
	tokens          *token.Generator
	notifier        Notifier
	appBaseURL      string
	sessionDuration time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(accounts *repository.AccountRepository, tokens *token.Generator, notifier Notifier, appBaseURL string, sessionDuration time.Duration) *AuthService {
	return &AuthService{
		accounts:        accounts,
		tokens:          tokens,
		notifier:        notifier,
		appBaseURL:      strings.TrimSuffix(appBaseURL, "/"),
		sessionDuration: sessionDuration,
	}
}

// Register creates a new active account and establishes a session.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.Account, *models.Session, error) {
	var errs validation.Errors
	if err := validation.ValidateHandle(req.Handle); err != nil {
		errs = append(errs, err.(validation.Error))
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		errs = append(errs, err.(validation.Error))
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		errs = append(errs, err.(validation.Error))
	}
	if req.Password != req.PasswordConfirm {
		errs = append(errs, validation.Error{Field: "password_confirm", Message: "passwords do not match"})
	}
	if err := validation.ValidateName("first_name", req.FirstName); err != nil {
		errs = append(errs, err.(validation.Error))
	}
	if err := validation.ValidateName("last_name", req.LastName); err != nil {
		errs = append(errs, err.(validation.Error))
	}
	if len(errs) > 0 {
		return nil, nil, errs
	}

	passwordHash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := s.accounts.CreateAccount(
		strings.TrimSpace(req.Handle),
		strings.TrimSpace(req.Email),
		passwordHash,
		strings.TrimSpace(req.FirstName),
		strings.TrimSpace(req.LastName),
		models.AccountType1,
	)
	if err != nil {
		if errors.Is(err, repository.ErrHandleTaken) {
			return nil, nil, &ConflictError{Field: "handle"}
		}
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, nil, &ConflictError{Field: "email"}
		}
		return nil, nil, err
	}

	session, err := s.createSession(account)
	if err != nil {
		return nil, nil, err
	}

	// Welcome mail is best effort; registration already succeeded.
	if s.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := s.notifier.SendWelcomeEmail(notifyCtx, account.Email, account.FirstName); err != nil {
			log.Printf("Failed to send welcome email to %s: %v", account.Email, err)
		}
	}

	return account, session, nil
}

// Login authenticates an account and creates a session. Every failure mode
// returns the same ErrInvalidCredentials so callers cannot probe which
// handles exist.
func (s *AuthService) Login(handle, password string) (*models.Session, *models.Account, error) {
	account, err := s.accounts.GetAccountByHandle(strings.TrimSpace(handle))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil || !account.Active {
		// Burn a hash comparison anyway so the timing of the response
		// does not reveal whether the handle exists.
		security.CheckPassword(password, "$2a$10$nOUIs5kJ7naTuTFkBy1veuK0kSxUFXfuaOKdOKf9xYT0KKIGSJwFa")
		return nil, nil, ErrInvalidCredentials
	}

	if !security.CheckPassword(password, account.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.accounts.TouchLastLogin(account.ID, now); err != nil {
		return nil, nil, err
	}
	account.LastLoginAt = &now

	session, err := s.createSession(account)
	if err != nil {
		return nil, nil, err
	}

	return session, account, nil
}

// ValidateSession checks if a session is valid and returns the associated account
func (s *AuthService) ValidateSession(sessionID string) (*models.Account, error) {
	session, err := s.accounts.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		// Clean up expired session
		_ = s.accounts.DeleteSession(sessionID)
		return nil, ErrSessionExpired
	}

	account, err := s.accounts.GetAccountByID(session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil || !account.Active {
		return nil, ErrSessionNotFound
	}

	return account, nil
}

// Logout invalidates a session. Logging out an unknown session is a no-op.
func (s *AuthService) Logout(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.accounts.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// RequestPasswordReset issues a reset link for the account behind email, if
// one exists. The return value is identical either way, and a failed
// delivery is only logged — both on purpose, so the endpoint cannot be used
// to enumerate registered addresses.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.accounts.GetAccountByEmail(strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil || !account.Active {
		log.Printf("Password reset requested for unknown email")
		return nil
	}

	uid := token.EncodeUID(account.ID)
	resetToken := s.tokens.Generate(account)
	resetURL := fmt.Sprintf("%s/password-reset/%s/%s", s.appBaseURL, uid, resetToken)

	if s.notifier == nil {
		return nil
	}

	notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.SendPasswordResetEmail(notifyCtx, account.Email, account.FirstName, resetURL); err != nil {
		log.Printf("Failed to send password reset email to account %d: %v", account.ID, err)
	}

	return nil
}

// ValidateResetToken checks a uid/token pair without consuming it.
func (s *AuthService) ValidateResetToken(uid, resetToken string) (bool, error) {
	id, err := token.DecodeUID(uid)
	if err != nil {
		return false, nil
	}

	account, err := s.accounts.GetAccountByID(id)
	if err != nil {
		return false, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil || !account.Active {
		return false, nil
	}

	return s.tokens.Validate(account, resetToken), nil
}

// ConfirmPasswordReset rotates the password credential behind a valid
// reset token. Rotation itself is what consumes the token: the new hash
// changes the MAC input, so this and every other outstanding token for the
// account stop validating.
func (s *AuthService) ConfirmPasswordReset(combined, password, passwordConfirm string) error {
	var errs validation.Errors
	if err := validation.ValidatePassword(password); err != nil {
		errs = append(errs, err.(validation.Error))
	}
	if password != passwordConfirm {
		errs = append(errs, validation.Error{Field: "password_confirm", Message: "passwords do not match"})
	}
	if len(errs) > 0 {
		return errs
	}

	uid, resetToken, err := token.SplitCombined(combined)
	if err != nil {
		return ErrInvalidToken
	}

	id, err := token.DecodeUID(uid)
	if err != nil {
		log.Printf("Invalid password reset attempt: bad uid")
		return ErrInvalidToken
	}

	account, err := s.accounts.GetAccountByID(id)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil || !account.Active {
		return ErrInvalidToken
	}

	if !s.tokens.Validate(account, resetToken) {
		log.Printf("Invalid reset token for account %d", account.ID)
		return ErrInvalidToken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.accounts.RotatePassword(account.ID, passwordHash); err != nil {
		return err
	}

	// Force re-login everywhere after a password change.
	if err := s.accounts.DeleteSessionsForAccount(account.ID); err != nil {
		log.Printf("Failed to clear sessions for account %d: %v", account.ID, err)
	}

	log.Printf("Password reset successful for account %d", account.ID)
	return nil
}

// DeleteAccount anonymizes the authenticated account after re-checking its
// password, and destroys the current session. One-way: there is no undo.
func (s *AuthService) DeleteAccount(account *models.Account, sessionID, password, reason string) error {
	if !security.CheckPassword(password, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	if reason == "" {
		reason = "No reason provided"
	}
	log.Printf("Account deletion requested for account %d. Reason: %s", account.ID, reason)

	gdpr.Anonymize(account)
	if err := s.accounts.SaveAnonymized(account); err != nil {
		return err
	}

	// SaveAnonymized already dropped the account's sessions; this covers
	// the cookie the caller still holds if it belonged to another row.
	_ = s.accounts.DeleteSession(sessionID)

	log.Printf("Account successfully anonymized for account %d", account.ID)
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions() error {
	if err := s.accounts.DeleteExpiredSessions(); err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return nil
}

func (s *AuthService) createSession(account *models.Account) (*models.Session, error) {
	sessionID := security.GenerateSessionID()
	expiresAt := time.Now().Add(s.sessionDuration)

	session, err := s.accounts.CreateSession(sessionID, account.ID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}
