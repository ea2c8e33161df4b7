package token

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncodeDecodeUID(t *testing.T) {
	ids := []int64{1, 42, 999, 123456789}

	for _, id := range ids {
		encoded := EncodeUID(id)
		decoded, err := DecodeUID(encoded)
		if err != nil {
			t.Errorf("DecodeUID(EncodeUID(%d)) error = %v", id, err)
			continue
		}
		if decoded != id {
			t.Errorf("DecodeUID(EncodeUID(%d)) = %d", id, decoded)
		}
	}
}

func TestDecodeUIDRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "empty string",
			input: "",
		},
		{
			name:  "not base64url",
			input: "!!!not-valid!!!",
		},
		{
			name:  "base64url but not a number",
			input: base64.RawURLEncoding.EncodeToString([]byte("hello")),
		},
		{
			name:  "zero identifier",
			input: EncodeUID(0),
		},
		{
			name:  "negative identifier",
			input: EncodeUID(-5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUID(tt.input)
			if err == nil {
				t.Fatalf("DecodeUID(%q) expected error, got nil", tt.input)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Errorf("DecodeUID(%q) error type = %T, want *DecodeError", tt.input, err)
			}
		})
	}
}
