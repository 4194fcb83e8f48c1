package card

import (
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/krypto"
)

// Kind is the action an approval token grants.
type Kind string

const (
	KindEdit      Kind = "edit"
	KindDelete    Kind = "delete"
	KindEmailEdit Kind = "email-edit"
	KindActivate  Kind = "activate"
)

func (k Kind) notification() NotificationKind {
	switch k {
	case KindDelete:
		return NotifyDeleteRequest
	case KindEmailEdit:
		return NotifyEmailEditRequest
	case KindActivate:
		return NotifyActivateRequest
	default:
		return NotifyEditRequest
	}
}

func (k Kind) approvedMessage() string {
	switch k {
	case KindDelete:
		return "Deletion Request Approved"
	case KindEmailEdit:
		return "Email Edit Request Approved"
	case KindActivate:
		return "New Card Activated"
	default:
		return "Edit Request Approved"
	}
}

// approvalPath is the path of the link that approves a token of this kind.
func (k Kind) approvalPath() string {
	if k == KindActivate {
		return "/cards/approve-card"
	}
	return "/cards/approve-" + string(k) + "-request"
}

// ApprovalToken is a single-use grant for one kind of action on a card.
// Only the hash of the token is stored, the token itself is emailed.
type ApprovalToken struct {
	ID        uuid.UUID
	Kind      Kind
	TokenHash krypto.TokenHash
	CardID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	// UsedAt is nil while the token was not consumed.
	UsedAt *time.Time
}

// Approval is the outcome of visiting an approval link.
type Approval struct {
	Status  bool
	Message string
	// Card is the card after the approval was applied. Nil when Status is false.
	Card *Card
}

const msgAlreadyUsed = "Token already used"
