package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"accountd/internal/database"
	"accountd/internal/models"
)

var (
	ErrHandleTaken = errors.New("handle already taken")
	ErrEmailTaken  = errors.New("email already taken")
)

const accountColumns = `id, handle, email, password_hash, first_name, last_name,
		COALESCE(phone, ''), role, account_type,
		COALESCE(oauth_provider, ''), COALESCE(oauth_subject, ''),
		active, last_login_at, created_at, updated_at, deleted_at`

// AccountRepository handles database operations for accounts and sessions
type AccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount inserts a new account. The uniqueness check and insert run
// in one transaction so concurrent registrations of the same handle or
// email resolve to exactly one winner; the loser gets ErrHandleTaken or
// ErrEmailTaken.
func (r *AccountRepository) CreateAccount(handle, email, passwordHash, firstName, lastName string, accountType models.AccountType) (*models.Account, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.checkUnique(tx, handle, email); err != nil {
		return nil, err
	}

	now := time.Now()
	query := `
		INSERT INTO accounts (handle, email, password_hash, first_name, last_name, role, account_type, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := tx.ExecReturningID(query,
		handle, email, passwordHash, firstName, lastName,
		string(models.RoleUser), string(accountType), true, now, now)
	if err != nil {
		// A concurrent insert can still win the race on engines where the
		// pre-check read does not block; fall back to the constraint error.
		if r.db.Dialect.IsUniqueViolation(err) {
			return nil, r.duplicateField(handle, email)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit account: %w", err)
	}

	return &models.Account{
		ID:           id,
		Handle:       handle,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         models.RoleUser,
		AccountType:  accountType,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// checkUnique verifies neither handle nor email is already in use, locking
// any row it finds so a concurrent mutation cannot slip between the check
// and the insert.
func (r *AccountRepository) checkUnique(tx database.DBTX, handle, email string) error {
	lock := r.db.Dialect.LockClause()

	var id int64
	query := strings.TrimSpace("SELECT id FROM accounts WHERE handle = ? " + lock)
	err := tx.QueryRow(query, handle).Scan(&id)
	if err == nil {
		return ErrHandleTaken
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check handle: %w", err)
	}

	query = strings.TrimSpace("SELECT id FROM accounts WHERE email = ? " + lock)
	err = tx.QueryRow(query, email).Scan(&id)
	if err == nil {
		return ErrEmailTaken
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check email: %w", err)
	}

	return nil
}

// duplicateField decides which unique field a constraint violation was for.
func (r *AccountRepository) duplicateField(handle, email string) error {
	if existing, err := r.GetAccountByHandle(handle); err == nil && existing != nil {
		return ErrHandleTaken
	}
	if existing, err := r.GetAccountByEmail(email); err == nil && existing != nil {
		return ErrEmailTaken
	}
	return ErrHandleTaken
}

// GetAccountByID retrieves an account by ID
func (r *AccountRepository) GetAccountByID(id int64) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE id = ?"
	return r.scanAccount(r.db.QueryRow(query, id))
}

// GetAccountByEmail retrieves an account by email address
func (r *AccountRepository) GetAccountByEmail(email string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE email = ?"
	return r.scanAccount(r.db.QueryRow(query, email))
}

// GetAccountByHandle retrieves an account by handle
func (r *AccountRepository) GetAccountByHandle(handle string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE handle = ?"
	return r.scanAccount(r.db.QueryRow(query, handle))
}

// GetAccountByOAuth retrieves an account by OAuth provider and subject
func (r *AccountRepository) GetAccountByOAuth(provider, subject string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE oauth_provider = ? AND oauth_subject = ?"
	return r.scanAccount(r.db.QueryRow(query, provider, subject))
}

func (r *AccountRepository) scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	var lastLogin, deletedAt sql.NullTime
	var role, accountType string

	err := row.Scan(
		&account.ID,
		&account.Handle,
		&account.Email,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&account.Phone,
		&role,
		&accountType,
		&account.OAuthProvider,
		&account.OAuthSubject,
		&account.Active,
		&lastLogin,
		&account.CreatedAt,
		&account.UpdatedAt,
		&deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Role = models.Role(role)
	account.AccountType = models.AccountType(accountType)
	if lastLogin.Valid {
		account.LastLoginAt = &lastLogin.Time
	}
	if deletedAt.Valid {
		account.DeletedAt = &deletedAt.Time
	}

	return account, nil
}

// RotatePassword replaces an account's password hash under an exclusive
// row lock, serializing it against concurrent resets or anonymization.
func (r *AccountRepository) RotatePassword(accountID int64, passwordHash string) error {
	return r.withLockedAccount(accountID, func(tx *database.Tx) error {
		query := "UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?"
		if _, err := tx.Exec(query, passwordHash, time.Now(), accountID); err != nil {
			return fmt.Errorf("failed to rotate password: %w", err)
		}
		return nil
	})
}

// SaveAnonymized writes the scrubbed fields of an anonymized account and
// drops all of its sessions, in one row-locked transaction.
func (r *AccountRepository) SaveAnonymized(account *models.Account) error {
	return r.withLockedAccount(account.ID, func(tx *database.Tx) error {
		query := `
			UPDATE accounts
			SET handle = ?, email = ?, first_name = ?, last_name = ?, phone = ?,
			    oauth_provider = ?, oauth_subject = ?, active = ?, deleted_at = ?, updated_at = ?
			WHERE id = ?
		`
		if _, err := tx.Exec(query,
			account.Handle, account.Email, account.FirstName, account.LastName, account.Phone,
			account.OAuthProvider, account.OAuthSubject, account.Active, account.DeletedAt, account.UpdatedAt,
			account.ID); err != nil {
			return fmt.Errorf("failed to anonymize account: %w", err)
		}

		if _, err := tx.Exec("DELETE FROM sessions WHERE account_id = ?", account.ID); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
		return nil
	})
}

// TouchLastLogin stamps a successful login
func (r *AccountRepository) TouchLastLogin(accountID int64, at time.Time) error {
	query := "UPDATE accounts SET last_login_at = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.Exec(query, at, at, accountID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// LinkOAuthProvider links an existing account to an OAuth provider
func (r *AccountRepository) LinkOAuthProvider(accountID int64, provider, subject string) error {
	query := `
		UPDATE accounts
		SET oauth_provider = ?, oauth_subject = ?, updated_at = ?
		WHERE id = ?
		AND (oauth_provider IS NULL OR oauth_provider = '')
	`
	result, err := r.db.Exec(query, provider, subject, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read link result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("oauth provider already linked")
	}

	return nil
}

// withLockedAccount runs fn inside a transaction holding an exclusive lock
// on the account row where the dialect supports one.
func (r *AccountRepository) withLockedAccount(accountID int64, fn func(tx *database.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := strings.TrimSpace("SELECT id FROM accounts WHERE id = ? " + r.db.Dialect.LockClause())
	var id int64
	if err := tx.QueryRow(query, accountID).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("account %d not found", accountID)
		}
		return fmt.Errorf("failed to lock account: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateSession creates a new session for an account
func (r *AccountRepository) CreateSession(sessionID string, accountID int64, expiresAt time.Time) (*models.Session, error) {
	query := `
		INSERT INTO sessions (id, account_id, expires_at)
		VALUES (?, ?, ?)
	`
	_, err := r.db.Exec(query, sessionID, accountID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		ID:        sessionID,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// GetSession retrieves a session by ID
func (r *AccountRepository) GetSession(sessionID string) (*models.Session, error) {
	query := `
		SELECT id, account_id, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`
	session := &models.Session{}
	err := r.db.QueryRow(query, sessionID).Scan(
		&session.ID,
		&session.AccountID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// DeleteSession removes a session from the database
func (r *AccountRepository) DeleteSession(sessionID string) error {
	query := "DELETE FROM sessions WHERE id = ?"
	if _, err := r.db.Exec(query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteSessionsForAccount removes every session belonging to an account
func (r *AccountRepository) DeleteSessionsForAccount(accountID int64) error {
	query := "DELETE FROM sessions WHERE account_id = ?"
	if _, err := r.db.Exec(query, accountID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions
func (r *AccountRepository) DeleteExpiredSessions() error {
	query := "DELETE FROM sessions WHERE expires_at < ?"
	if _, err := r.db.Exec(query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}

// GetAllAccounts retrieves all accounts, newest first
func (r *AccountRepository) GetAllAccounts() ([]models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts ORDER BY created_at DESC"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		var lastLogin, deletedAt sql.NullTime
		var role, accountType string
		if err := rows.Scan(
			&account.ID,
			&account.Handle,
			&account.Email,
			&account.PasswordHash,
			&account.FirstName,
			&account.LastName,
			&account.Phone,
			&role,
			&accountType,
			&account.OAuthProvider,
			&account.OAuthSubject,
			&account.Active,
			&lastLogin,
			&account.CreatedAt,
			&account.UpdatedAt,
			&deletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Role = models.Role(role)
		account.AccountType = models.AccountType(accountType)
		if lastLogin.Valid {
			account.LastLoginAt = &lastLogin.Time
		}
		if deletedAt.Valid {
			account.DeletedAt = &deletedAt.Time
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}
