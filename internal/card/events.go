package card

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subjects of the events published by the Service.
const (
	SubjectCardCreated       = "cardhub.cards.created"
	SubjectCardDeleted       = "cardhub.cards.deleted"
	SubjectApprovalRequested = "cardhub.approvals.requested"
	SubjectApprovalGranted   = "cardhub.approvals.granted"
)

// Publisher publishes events for other services.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// CardEvent is published when a card is created or deleted.
type CardEvent struct {
	CardID    uuid.UUID `json:"cardId"`
	OwnerID   uuid.UUID `json:"ownerId"`
	ShortName string    `json:"shortName"`
	At        time.Time `json:"at"`
}

// ApprovalEvent is published when an approval is requested or granted.
type ApprovalEvent struct {
	CardID uuid.UUID `json:"cardId"`
	Kind   Kind      `json:"kind"`
	At     time.Time `json:"at"`
}
