package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"accountd/internal/models"
)

// Generator produces and checks password reset tokens without storing them.
//
// A token is an HMAC-SHA256 over the account's ID, current password hash,
// last-login timestamp and a day-granularity time bucket, prefixed with the
// bucket in base36: "<b36 day>-<hex mac>". Because the account's password
// hash is part of the MAC input, rotating the password invalidates every
// token ever issued for the account; because last login is included, simply
// logging in does too. Within one day bucket the token is deterministic.
type Generator struct {
	secret   []byte
	validity time.Duration
}

// NewGenerator creates a reset token generator. validity bounds how old a
// token's day bucket may be before it is rejected.
func NewGenerator(secret string, validity time.Duration) *Generator {
	if validity <= 0 {
		validity = 24 * time.Hour
	}
	return &Generator{secret: []byte(secret), validity: validity}
}

// Generate returns a reset token bound to the account's current state.
func (g *Generator) Generate(account *models.Account) string {
	return g.generateForDay(account, dayBucket(time.Now()))
}

// Validate reports whether token is a currently valid reset token for the
// account. It never returns an error: malformed, expired and tampered
// tokens all validate to false.
func (g *Generator) Validate(account *models.Account, token string) bool {
	if account == nil || token == "" {
		return false
	}

	dayPart, _, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}

	day, err := strconv.ParseInt(dayPart, 36, 64)
	if err != nil || day < 0 {
		return false
	}

	// Accept the current bucket plus enough prior buckets to cover the
	// validity window. Buckets from the future are always rejected.
	now := dayBucket(time.Now())
	maxAge := int64((g.validity + 24*time.Hour - 1) / (24 * time.Hour))
	if day > now || now-day > maxAge {
		return false
	}

	expected := g.generateForDay(account, day)
	return hmac.Equal([]byte(expected), []byte(token))
}

// generateForDay derives the signed value for a specific day bucket.
func (g *Generator) generateForDay(account *models.Account, day int64) string {
	var lastLogin string
	if account.LastLoginAt != nil {
		lastLogin = strconv.FormatInt(account.LastLoginAt.Unix(), 10)
	}

	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%d\x00%s\x00%s\x00%d", account.ID, account.PasswordHash, lastLogin, day)

	return strconv.FormatInt(day, 36) + "-" + hex.EncodeToString(mac.Sum(nil))
}

// dayBucket returns the number of whole days since the Unix epoch.
func dayBucket(t time.Time) int64 {
	return t.UTC().Unix() / (24 * 60 * 60)
}

// Combined joins the encoded account ID and a reset token into the single
// opaque string sent to users. "." is URL-safe and appears in neither part.
func Combined(uid, token string) string {
	return uid + "." + token
}

// SplitCombined splits a combined token back into its uid and signed parts.
func SplitCombined(combined string) (uid, token string, err error) {
	uid, token, ok := strings.Cut(combined, ".")
	if !ok || uid == "" || token == "" {
		return "", "", &DecodeError{Reason: "missing separator"}
	}
	return uid, token, nil
}
