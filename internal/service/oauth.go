package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"accountd/internal/models"
	"accountd/internal/security"
	"accountd/internal/validation"
)

// OAuthLogin authenticates or creates an account using an OAuth provider.
// Accounts created this way get an unguessable password hash; holders can
// set a real password later through the reset flow.
func (s *AuthService) OAuthLogin(provider, subject, email, name string) (*models.Session, *models.Account, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing oauth provider information")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}

	account, err := s.accounts.GetAccountByOAuth(provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup oauth account: %w", err)
	}

	if account == nil {
		existing, err := s.accounts.GetAccountByEmail(email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check existing account: %w", err)
		}
		if existing != nil {
			if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
				return nil, nil, &ConflictError{Field: "email"}
			}
			if !existing.Active {
				return nil, nil, ErrInvalidCredentials
			}
			if err := s.accounts.LinkOAuthProvider(existing.ID, provider, subject); err != nil {
				return nil, nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			account = existing
		} else {
			account, err = s.createOAuthAccount(provider, subject, email, name)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if !account.Active {
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

func (s *AuthService) createOAuthAccount(provider, subject, email, name string) (*models.Account, error) {
	firstName, lastName := splitName(name, email)

	randomHash, err := security.HashPassword(security.GenerateSessionID())
	if err != nil {
		return nil, fmt.Errorf("failed to generate oauth password hash: %w", err)
	}

	handle, err := s.deriveHandle(email)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.CreateAccount(handle, email, randomHash, firstName, lastName, models.AccountType1)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth account: %w", err)
	}

	if err := s.accounts.LinkOAuthProvider(account.ID, provider, subject); err != nil {
		return nil, fmt.Errorf("failed to link oauth provider: %w", err)
	}
	account.OAuthProvider = provider
	account.OAuthSubject = subject

	return account, nil
}

// deriveHandle builds a free handle from the email local part, appending a
// numeric suffix until one is unused.
func (s *AuthService) deriveHandle(email string) (string, error) {
	base := strings.Split(email, "@")[0]
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			return r
		}
		return -1
	}, base)
	if len(base) < 3 {
		base = "user" + base
	}

	candidate := base
	for i := 1; i <= 100; i++ {
		existing, err := s.accounts.GetAccountByHandle(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check handle: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}

	return "", errors.New("could not derive a free handle")
}

func splitName(name, email string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return strings.Split(email, "@")[0], "-"
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], "-"
	}
	return parts[0], parts[1]
}
