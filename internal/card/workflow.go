package card

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/errorz"
	"github.com/willemschots/cardhub/internal/krypto"
)

// issuedToken is a freshly generated token together with its stored form.
type issuedToken struct {
	ApprovalToken
	Token krypto.Token
}

func newIssuedToken(kind Kind, cardID uuid.UUID, now time.Time, expiry time.Duration) (issuedToken, error) {
	tok, err := krypto.GenerateToken()
	if err != nil {
		return issuedToken{}, err
	}

	return issuedToken{
		ApprovalToken: ApprovalToken{
			ID:        uuid.New(),
			Kind:      kind,
			TokenHash: tok.Hash(),
			CardID:    cardID,
			CreatedAt: now,
			ExpiresAt: now.Add(expiry),
			UsedAt:    nil,
		},
		Token: tok,
	}, nil
}

func (s *Service) approvalLink(t issuedToken) string {
	u := s.cfg.BaseURL.JoinPath(t.Kind.approvalPath())
	u.RawQuery = "token=" + t.Token.String()
	return u.String()
}

// RequestAction issues an approval token of kind for the card and sends the
// approval link to the card email.
//
// The token is committed before the notification is sent by a background
// worker. A failing notification is reported to the error handler and the
// token stays valid, the owner can request again.
//
// Earlier tokens of the same kind stay valid until one of them is approved.
// Activation can only be requested for an inactive card.
func (s *Service) RequestAction(ctx context.Context, kind Kind, cardID, ownerID uuid.UUID) error {
	now := s.NowFunc()

	issued, err := newIssuedToken(kind, cardID, now, s.cfg.TokenExpiry)
	if err != nil {
		return err
	}

	var c Card
	err = s.inTx(ctx, func(tx Tx) error {
		var txErr error
		c, txErr = findOwnedCard(tx, cardID, ownerID)
		if txErr != nil {
			return txErr
		}

		if kind == KindActivate && c.Active {
			return ErrAlreadyActive
		}

		return tx.CreateApprovalToken(&issued.ApprovalToken)
	})
	if err != nil {
		return err
	}

	s.metrics.ApprovalRequests.WithLabelValues(string(kind)).Inc()

	link := s.approvalLink(issued)
	s.runWorker(func(wCtx context.Context) error {
		return errors.Join(
			s.notifier.Send(wCtx, kind.notification(), c.Email, link),
			s.publisher.Publish(wCtx, SubjectApprovalRequested, ApprovalEvent{
				CardID: c.ID,
				Kind:   kind,
				At:     now,
			}),
		)
	})

	return nil
}

// Approve consumes an approval token and grants its kind on the card.
//
// A token that was used before results in an Approval with Status false
// and a nil error. Visiting the same link twice is expected.
// Approving revokes the other outstanding tokens of the same kind for
// the card, only one grant results from a batch of requests.
func (s *Service) Approve(ctx context.Context, kind Kind, token krypto.Token) (Approval, error) {
	now := s.NowFunc()

	var c Card
	err := s.inTx(ctx, func(tx Tx) error {
		consumed, txErr := tx.ConsumeApprovalToken(kind, token.Hash(), now)
		if txErr != nil {
			return txErr
		}

		txErr = grant(tx, kind, consumed.CardID, now)
		if txErr != nil {
			return txErr
		}

		txErr = tx.RevokeApprovalTokens(kind, consumed.CardID, now)
		if txErr != nil {
			return txErr
		}

		cards, txErr := tx.FindCards(&CardFilter{IDs: []uuid.UUID{consumed.CardID}})
		if txErr != nil {
			return txErr
		}

		if len(cards) != 1 {
			return errorz.ErrNotFound
		}

		c = cards[0]
		return nil
	})

	switch {
	case err == nil:
		s.metrics.Approvals.WithLabelValues(string(kind), OutcomeGranted).Inc()
	case errors.Is(err, ErrAlreadyUsed):
		s.metrics.Approvals.WithLabelValues(string(kind), OutcomeAlreadyUsed).Inc()
		return Approval{Status: false, Message: msgAlreadyUsed}, nil
	case errors.Is(err, ErrTokenExpired):
		s.metrics.Approvals.WithLabelValues(string(kind), OutcomeExpired).Inc()
		return Approval{}, err
	case errors.Is(err, errorz.ErrNotFound):
		s.metrics.Approvals.WithLabelValues(string(kind), OutcomeNotFound).Inc()
		return Approval{}, err
	default:
		s.metrics.Approvals.WithLabelValues(string(kind), OutcomeError).Inc()
		return Approval{}, err
	}

	s.runWorker(func(wCtx context.Context) error {
		return s.publisher.Publish(wCtx, SubjectApprovalGranted, ApprovalEvent{
			CardID: c.ID,
			Kind:   kind,
			At:     now,
		})
	})

	return Approval{
		Status:  true,
		Message: kind.approvedMessage(),
		Card:    &c,
	}, nil
}

// grant applies the effect of an approved token. The mutators only touch
// live cards and report errorz.ErrNotFound for deleted ones.
func grant(tx Tx, kind Kind, cardID uuid.UUID, now time.Time) error {
	switch kind {
	case KindEdit:
		return tx.ResetEditWindow(cardID, now.Add(EditWindow), now)
	case KindDelete:
		return tx.MarkDeletable(cardID, now)
	case KindEmailEdit:
		return tx.MarkEmailEditable(cardID, now)
	case KindActivate:
		return tx.Activate(cardID, now)
	default:
		return errorz.ErrNotFound
	}
}
