package krypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

const (
	keyLen = 32

	// SecretMarker is what secrets print as. Search the logs for it to
	// confirm redaction works, search for the raw value to find leaks.
	SecretMarker = "<!SECRET_REDACTED!>"
)

var ErrInvalidKey = errors.New("invalid key")

// Secret is sensitive data like an API token or SMTP password that needs to be
// passed around without ending up in logs or error messages.
type Secret struct {
	value []byte
}

// NewSecret creates a new secret.
func NewSecret(raw string) Secret {
	return Secret{
		value: []byte(raw),
	}
}

func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(SecretMarker))
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool {
	return len(s.value) == 0
}

// SecretValue returns the raw secret. Only hand it to the third party
// package that actually needs it.
func (s Secret) SecretValue() []byte {
	return s.value
}

// Key is a 32 byte secret, used to sign access tokens.
type Key struct {
	Secret
}

// ParseKey expects a hex encoded key of 32 bytes (64 characters).
func ParseKey(raw string) (Key, error) {
	if len(raw) != keyLen*2 {
		return Key{}, ErrInvalidKey
	}

	k := make([]byte, keyLen)
	_, err := hex.Decode(k, []byte(raw))
	if err != nil {
		return Key{}, ErrInvalidKey
	}

	return Key{Secret{value: k}}, nil
}
