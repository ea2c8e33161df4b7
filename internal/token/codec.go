package token

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// DecodeError describes why an opaque account identifier failed to decode.
// Inputs reach this codec straight from URLs, so every malformed shape maps
// to a typed error instead of a panic.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid account identifier: %s", e.Reason)
}

// EncodeUID encodes an account ID as a URL-safe opaque string.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID decodes an opaque string produced by EncodeUID back into an
// account ID. Returns *DecodeError for anything malformed: bad alphabet,
// non-numeric payload, overflow, or a non-positive ID.
func DecodeUID(s string) (int64, error) {
	if s == "" {
		return 0, &DecodeError{Reason: "empty"}
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, &DecodeError{Reason: "not base64url"}
	}

	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, &DecodeError{Reason: "payload is not a valid integer"}
	}
	if id <= 0 {
		return 0, &DecodeError{Reason: "non-positive identifier"}
	}

	return id, nil
}
