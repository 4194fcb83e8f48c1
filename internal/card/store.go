package card

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/krypto"
)

// CardFilter is used to filter cards.
// Returned cards must match all the provided fields.
// If a field is empty or nil, it's ignored.
type CardFilter struct {
	IDs        []uuid.UUID
	OwnerIDs   []uuid.UUID
	ShortNames []string
	Active     *bool
	Deleted    *bool
}

// MarkerFilter is used to filter markers, same rules as CardFilter.
type MarkerFilter struct {
	OwnerIDs  []uuid.UUID
	UniqueIDs []string
}

// Store provides access to cards, their approval tokens and markers.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	FindCards(ctx context.Context, filter *CardFilter) ([]Card, error)
	FindMarkers(ctx context.Context, filter *MarkerFilter) ([]Marker, error)
}

// Tx is a transaction. If an error occurs on any of the methods, the
// transaction is considered to have failed and should be rolled back.
// Tx is not safe for concurrent use.
//
// Methods that report a bool apply a conditional update and return false
// when the condition did not hold.
type Tx interface {
	Commit() error
	Rollback() error

	// TakeCardSlot decrements the owners slot counter if it is positive.
	// It returns ErrQuotaExceeded if no slot is available.
	TakeCardSlot(ownerID uuid.UUID, now time.Time) error
	ReturnCardSlot(ownerID uuid.UUID, now time.Time) error

	// CreateCard returns ErrDuplicateShortName when the short name is taken
	// by a live card, errorz.ErrDuplicate on any other unique violation.
	CreateCard(c *Card) error
	FindCards(filter *CardFilter) ([]Card, error)
	// ApplyEdit replaces the content (except the email) and short name of c
	// and counts the edit, provided the edit window at now is open.
	ApplyEdit(c *Card, now time.Time) (bool, error)
	CloseEditWindow(cardID uuid.UUID, now time.Time) error
	ResetEditWindow(cardID uuid.UUID, until, now time.Time) error
	MarkDeletable(cardID uuid.UUID, now time.Time) error
	MarkEmailEditable(cardID uuid.UUID, now time.Time) error
	Activate(cardID uuid.UUID, now time.Time) error
	// UpdateEmail changes the card email if an email edit was approved and
	// consumes that approval.
	UpdateEmail(cardID uuid.UUID, addr email.Address, now time.Time) (bool, error)
	// SoftDelete marks the card deleted if it is deletable or created at or
	// before createdBefore.
	SoftDelete(cardID uuid.UUID, createdBefore, now time.Time) (bool, error)

	CreateApprovalToken(t *ApprovalToken) error
	// ConsumeApprovalToken marks the token used and returns it. It returns
	// errorz.ErrNotFound, ErrAlreadyUsed or ErrTokenExpired when the token
	// can not be consumed.
	ConsumeApprovalToken(kind Kind, hash krypto.TokenHash, now time.Time) (ApprovalToken, error)
	// RevokeApprovalTokens marks all unused tokens of kind for the card used.
	RevokeApprovalTokens(kind Kind, cardID uuid.UUID, now time.Time) error

	CreateMarker(m *Marker) error
	FindMarkers(filter *MarkerFilter) ([]Marker, error)
	DeleteMarker(id uuid.UUID) error
}
