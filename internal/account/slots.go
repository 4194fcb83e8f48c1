package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/errorz"
)

// SubjectSlotsChanged is where billing publishes SlotChange events.
const SubjectSlotsChanged = "cardhub.billing.slots"

// SlotChange grants or revokes card slots of an account.
type SlotChange struct {
	AccountID uuid.UUID `json:"accountId"`
	Delta     int       `json:"delta"`
}

// SlotChangeHandler returns a message handler applying JSON encoded
// SlotChange events.
//
// A change that can never apply (malformed, unknown account, slots would
// become negative) is passed to errHandler and dropped. Other errors are
// returned, the message is then delivered again.
func (s *Service) SlotChangeHandler(errHandler func(error)) func(ctx context.Context, data []byte) error {
	return func(ctx context.Context, data []byte) error {
		var change SlotChange
		err := json.Unmarshal(data, &change)
		if err != nil {
			errHandler(fmt.Errorf("dropping malformed slot change: %w", err))
			return nil
		}

		_, err = s.AdjustCardSlots(ctx, change.AccountID, change.Delta)
		switch {
		case errors.Is(err, errorz.ErrNotFound), errors.Is(err, ErrNegativeSlots):
			errHandler(fmt.Errorf("dropping slot change %+v: %w", change, err))
			return nil
		case err != nil:
			return fmt.Errorf("failed to apply slot change %+v: %w", change, err)
		}

		return nil
	}
}
