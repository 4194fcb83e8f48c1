package krypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
)

const (
	tokenLen = 32
)

var ErrInvalidToken = errors.New("invalid token")

// Token is a random token that is embedded in approval links.
//
// The only time a token should be provided in plaintext is as part of
// the email to the card owner. Tokens are confidential and should never be
// exposed in logs or persisted in plaintext, store the TokenHash instead.
type Token [tokenLen]byte

// GenerateToken creates a new random token.
func GenerateToken() (Token, error) {
	b, err := genRandomBytes(tokenLen)
	if err != nil {
		return Token{}, err
	}
	return Token(b), nil
}

// ParseToken parses a token from its hex representation.
func ParseToken(raw string) (Token, error) {
	if len(raw) != tokenLen*2 {
		return Token{}, ErrInvalidToken
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return Token{}, ErrInvalidToken
	}

	return Token(b), nil
}

// String returns the hex representation of the token, this is what
// ends up in approval links.
func (t Token) String() string {
	return hex.EncodeToString(t[:])
}

// Hash returns the hex encoded SHA-256 of the token. It is deterministic and
// serves as the lookup key in storage.
func (t Token) Hash() TokenHash {
	sum := sha256.Sum256(t[:])
	return TokenHash(hex.EncodeToString(sum[:]))
}

// LogValue implements the slog.LogValuer interface.
func (t Token) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}

// UnmarshalText implements encoding.TextUnmarshaler so tokens can be decoded
// straight from query parameters.
func (t *Token) UnmarshalText(text []byte) error {
	parsed, err := ParseToken(string(text))
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

// TokenHash is the hex encoded SHA-256 hash of a Token.
type TokenHash string
