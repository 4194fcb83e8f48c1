package email

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// maxAddressLen is the longest forward-path SMTP allows.
const maxAddressLen = 254

// ErrInvalidEmail indicates an email address is not valid.
var ErrInvalidEmail = errors.New("invalid email address")

// Address is a bare email address, without display name. The domain
// part is always lower case so accounts and cards compare equal
// regardless of how the address was typed.
type Address string

// ParseAddress checks that raw is shaped like an email address and
// nothing more. It does not verify that the mailbox exists.
func ParseAddress(raw string) (Address, error) {
	s := strings.TrimSpace(raw)
	if len(s) > maxAddressLen {
		return "", fmt.Errorf("longer than %d bytes: %w", maxAddressLen, ErrInvalidEmail)
	}

	parsed, err := mail.ParseAddress(s)
	if err != nil || parsed.Address != s {
		// Inputs like "Alice <alice@example.com>" parse, but are not bare addresses.
		return "", ErrInvalidEmail
	}

	at := strings.LastIndexByte(s, '@')
	return Address(s[:at] + "@" + strings.ToLower(s[at+1:])), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}

	*a = parsed
	return nil
}
