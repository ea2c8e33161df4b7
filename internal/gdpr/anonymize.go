package gdpr

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"accountd/internal/models"
)

const (
	handlePrefix  = "deleted_user_"
	emailDomain   = "deleted.invalid"
	firstSentinel = "Deleted"
	lastSentinel  = "User"
)

// Anonymize irreversibly scrubs the personal fields of an account in place
// and deactivates it. The row itself is kept for referential integrity; the
// caller is responsible for persisting the result under a per-account lock.
func Anonymize(account *models.Account) {
	suffix := newSuffix()

	account.Handle = handlePrefix + suffix
	account.Email = suffix + "@" + emailDomain
	account.FirstName = firstSentinel
	account.LastName = lastSentinel
	account.Phone = ""
	account.OAuthProvider = ""
	account.OAuthSubject = ""
	account.Active = false

	now := time.Now()
	account.DeletedAt = &now
	account.UpdatedAt = now
}

// IsAnonymizedHandle reports whether a handle is one produced by Anonymize.
func IsAnonymizedHandle(handle string) bool {
	return strings.HasPrefix(handle, handlePrefix)
}

// newSuffix returns a short random identifier. The reserved
// "deleted.invalid" domain and "deleted_user_" prefix guarantee the
// rewritten handle and email can never collide with a real user's values.
func newSuffix() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:10]
}
