package card

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/errorz"
	"github.com/willemschots/cardhub/internal/krypto"
)

const (
	// MaxEdits is the number of edits allowed within one edit window.
	MaxEdits = 10
	// EditWindow is how long a card stays editable after creation or an approved edit request.
	EditWindow = 7 * 24 * time.Hour
	// RetentionPeriod is the age after which a card can be deleted without approval.
	RetentionPeriod = 365 * 24 * time.Hour

	shortNameLen  = 8
	displayIDLen  = 5
	markerIDLen   = 5
	minShortName  = 3
	maxShortName  = 32
	maxNameLen    = 100
	maxAboutLen   = 2000
	maxLinks      = 20
	maxLinkName   = 100
	maxURLLen     = 2048
	maxIDAttempts = 3
)

var (
	ErrInvalidShortName = errors.New("short name must be 3 to 32 characters of a-z, 0-9, - or _")
	ErrInvalidURL       = errors.New("must be an absolute http or https url")
	ErrRequired         = errors.New("required")
	ErrTooLong          = errors.New("too long")
	ErrInvalidMarkerID  = errors.New("invalid marker id")
)

// Link is a labelled link shown on a card.
type Link struct {
	Name string
	URL  string
}

// Content is the part of a card its owner edits.
type Content struct {
	Name          string
	Title         string
	About         string
	Email         email.Address
	LogoImageURL  string
	CardImageURL  string
	BackgroundURL string
	Links         []Link
	// MarkerID is the UniqueID of one of the owner's markers, or empty.
	MarkerID string
}

// Validate returns an errorz.InvalidInput listing every invalid field.
func (c Content) Validate() error {
	return c.validate(true)
}

// validateProfile is Validate without the email, which only changes
// through an approved email edit.
func (c Content) validateProfile() error {
	return c.validate(false)
}

func (c Content) validate(withEmail bool) error {
	var errs errorz.InvalidInput

	errs.Check("name", checkText(c.Name, true, maxNameLen))
	errs.Check("title", checkText(c.Title, false, maxNameLen))
	errs.Check("about", checkText(c.About, false, maxAboutLen))
	if withEmail && c.Email == "" {
		errs.Check("email", ErrRequired)
	}
	errs.Check("logoImageUrl", checkURL(c.LogoImageURL, false))
	errs.Check("cardImageUrl", checkURL(c.CardImageURL, false))
	errs.Check("backgroundUrl", checkURL(c.BackgroundURL, false))

	if len(c.Links) > maxLinks {
		errs.Check("links", fmt.Errorf("at most %d links: %w", maxLinks, ErrTooLong))
	}
	for i, l := range c.Links {
		errs.Check(fmt.Sprintf("links[%d].name", i), checkText(l.Name, true, maxLinkName))
		errs.Check(fmt.Sprintf("links[%d].url", i), checkURL(l.URL, true))
	}

	if c.MarkerID != "" && !isHex(c.MarkerID, markerIDLen) {
		errs.Check("markerId", ErrInvalidMarkerID)
	}

	return errs.OrNil()
}

// Card is a published digital business card.
//
// The approval state of a card is implicit: the Editable, Deletable,
// EmailEditable and Active flags are set by consumed approval tokens.
type Card struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	ShortName string
	DisplayID string
	Content

	Active           bool
	Editable         bool
	NumberOfEdits    int
	EditableUntil    time.Time
	EmailEditable    bool
	Deletable        bool
	Deleted          bool
	DateTillDeletion time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanEdit reports whether an edit at now falls inside the edit window.
func (c Card) CanEdit(now time.Time) bool {
	return !c.Deleted && c.Editable && c.NumberOfEdits < MaxEdits && !c.EditableUntil.Before(now)
}

// CanDelete reports whether the card can be deleted at now without approval.
func (c Card) CanDelete(now time.Time) bool {
	return !c.Deleted && (c.Deletable || !c.CreatedAt.Add(RetentionPeriod).After(now))
}

// ParseShortName normalizes and validates a short name.
func ParseShortName(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) < minShortName || len(s) > maxShortName {
		return "", ErrInvalidShortName
	}

	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' && r != '_' {
			return "", ErrInvalidShortName
		}
	}

	return s, nil
}

// Marker is an AR marker an owner can attach to their cards.
type Marker struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	UniqueID  string
	ImageURL  string
	FileURL   string
	CreatedAt time.Time
	// Deletable is computed on read: true when no live card references the marker.
	Deletable bool
}

func newDisplayID() (string, error) {
	return krypto.RandomString(krypto.HexAlphabet, displayIDLen)
}

func newShortName() (string, error) {
	return krypto.RandomString(krypto.HexAlphabet, shortNameLen)
}

func newMarkerID() (string, error) {
	return krypto.RandomString(krypto.HexAlphabet, markerIDLen)
}

func checkText(s string, required bool, maxLen int) error {
	if strings.TrimSpace(s) == "" {
		if required {
			return ErrRequired
		}
		return nil
	}

	if len(s) > maxLen {
		return ErrTooLong
	}

	return nil
}

func checkURL(raw string, required bool) error {
	if raw == "" {
		if required {
			return ErrRequired
		}
		return nil
	}

	if len(raw) > maxURLLen {
		return ErrTooLong
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}

	return nil
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}

	for _, r := range s {
		if !strings.ContainsRune(krypto.HexAlphabet, r) {
			return false
		}
	}

	return true
}
