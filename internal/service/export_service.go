package service

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"accountd/internal/models"
	"accountd/internal/repository"
)

// ExportData is the envelope for a data-portability export.
type ExportData struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Accounts   []AccountExport `json:"accounts"`
}

// AccountExport is the exportable view of an account row. The password
// hash is deliberately absent: exports leave the system, credentials
// don't.
type AccountExport struct {
	ID          int64      `json:"id"`
	Handle      string     `json:"handle"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        string     `json:"role"`
	AccountType string     `json:"account_type"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// ExportService produces GDPR data-portability exports of account records.
type ExportService struct {
	accounts *repository.AccountRepository
}

// NewExportService creates a new export service
func NewExportService(accounts *repository.AccountRepository) *ExportService {
	return &ExportService{accounts: accounts}
}

// ExportAccount writes the export for a single account as JSON.
func (s *ExportService) ExportAccount(accountID int64, w io.Writer) error {
	account, err := s.accounts.GetAccountByID(accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("account %d not found", accountID)
	}

	return s.encode(w, []models.Account{*account})
}

// ExportAll writes an export of every account as JSON.
func (s *ExportService) ExportAll(w io.Writer) error {
	accounts, err := s.accounts.GetAllAccounts()
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	return s.encode(w, accounts)
}

// ExportAllToFile writes a full export atomically: to a temp file in the
// target directory first, then renamed into place.
func (s *ExportService) ExportAllToFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.ExportAll(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

func (s *ExportService) encode(w io.Writer, accounts []models.Account) error {
	data := ExportData{
		Version:    "1",
		ExportedAt: time.Now().UTC(),
		Accounts:   make([]AccountExport, 0, len(accounts)),
	}

	for _, a := range accounts {
		data.Accounts = append(data.Accounts, AccountExport{
			ID:          a.ID,
			Handle:      a.Handle,
			Email:       a.Email,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Role:        string(a.Role),
			AccountType: string(a.AccountType),
			Active:      a.Active,
			LastLoginAt: a.LastLoginAt,
			CreatedAt:   a.CreatedAt,
			DeletedAt:   a.DeletedAt,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
