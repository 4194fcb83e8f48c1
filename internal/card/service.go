package card

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/errorz"
)

// ErrFunc is a function that handles errors.
type ErrFunc func(error)

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// BaseURL is used to construct the links in notifications.
	BaseURL *url.URL
	// WorkerTimeout is the max duration worker goroutines are allowed
	// to take before they are cancelled.
	WorkerTimeout time.Duration
	// TokenExpiry is the duration an approval token is valid.
	TokenExpiry time.Duration
}

// Service provides the card lifecycle and the approval workflow.
type Service struct {
	store      Store
	notifier   Notifier
	publisher  Publisher
	metrics    *Metrics
	wg         *sync.WaitGroup
	errHandler ErrFunc
	cfg        ServiceConfig

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, n Notifier, p Publisher, m *Metrics, errHandler ErrFunc, cfg ServiceConfig) *Service {
	return &Service{
		store:      s,
		notifier:   n,
		publisher:  p,
		metrics:    m,
		wg:         &sync.WaitGroup{},
		errHandler: errHandler,
		cfg:        cfg,
		NowFunc:    time.Now,
	}
}

// Wait waits for all open workers to finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// CreateRequest contains the data for a new card.
// An empty ShortName results in a random one.
type CreateRequest struct {
	ShortName string
	Content   Content
}

// Create creates a card for the owner, using one of the owner's card slots.
// The card becomes publicly visible after the activation link sent to the
// card email is visited.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateRequest) (Card, error) {
	shortName, err := s.checkRequest(req.ShortName, req.Content.Validate(), true)
	if err != nil {
		return Card{}, err
	}

	now := s.NowFunc()
	c := Card{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		ShortName:        shortName,
		Content:          req.Content,
		Active:           false,
		Editable:         true,
		NumberOfEdits:    0,
		EditableUntil:    now.Add(EditWindow),
		DateTillDeletion: now.Add(RetentionPeriod),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	issued, err := newIssuedToken(KindActivate, c.ID, now, s.cfg.TokenExpiry)
	if err != nil {
		return Card{}, err
	}

	err = s.inTx(ctx, func(tx Tx) error {
		txErr := checkShortName(tx, c.ShortName, uuid.Nil)
		if txErr != nil {
			return txErr
		}

		txErr = checkMarker(tx, ownerID, c.MarkerID)
		if txErr != nil {
			return txErr
		}

		txErr = tx.TakeCardSlot(ownerID, now)
		if txErr != nil {
			return txErr
		}

		txErr = createWithDisplayID(tx, &c)
		if txErr != nil {
			return txErr
		}

		return tx.CreateApprovalToken(&issued.ApprovalToken)
	})
	if err != nil {
		return Card{}, err
	}

	s.metrics.CardsCreated.Inc()
	s.metrics.ApprovalRequests.WithLabelValues(string(KindActivate)).Inc()

	s.runWorker(func(wCtx context.Context) error {
		return errors.Join(
			s.notifier.Send(wCtx, NotifyActivateRequest, c.Email, s.approvalLink(issued)),
			s.publisher.Publish(wCtx, SubjectCardCreated, cardEvent(c, now)),
		)
	})

	return c, nil
}

// Get returns a live card. Deleted cards are not found.
func (s *Service) Get(ctx context.Context, cardID uuid.UUID) (Card, error) {
	cards, err := s.store.FindCards(ctx, &CardFilter{
		IDs:     []uuid.UUID{cardID},
		Deleted: ptr(false),
	})
	if err != nil {
		return Card{}, err
	}

	if len(cards) != 1 {
		return Card{}, errorz.ErrNotFound
	}

	return cards[0], nil
}

// GetByShortName returns the active, live card with the short name.
func (s *Service) GetByShortName(ctx context.Context, shortName string) (Card, error) {
	name, err := ParseShortName(shortName)
	if err != nil {
		return Card{}, errorz.ErrNotFound
	}

	cards, err := s.store.FindCards(ctx, &CardFilter{
		ShortNames: []string{name},
		Active:     ptr(true),
		Deleted:    ptr(false),
	})
	if err != nil {
		return Card{}, err
	}

	if len(cards) != 1 {
		return Card{}, errorz.ErrNotFound
	}

	return cards[0], nil
}

// ListByOwner returns the live cards of the owner.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Card, error) {
	return s.store.FindCards(ctx, &CardFilter{
		OwnerIDs: []uuid.UUID{ownerID},
		Deleted:  ptr(false),
	})
}

// ShortNameAvailable reports whether no live card uses the short name.
func (s *Service) ShortNameAvailable(ctx context.Context, shortName string) (bool, error) {
	name, err := ParseShortName(shortName)
	if err != nil {
		return false, errorz.InvalidInput{errorz.Keyed{Key: "shortName", Err: err}}
	}

	cards, err := s.store.FindCards(ctx, &CardFilter{
		ShortNames: []string{name},
		Deleted:    ptr(false),
	})
	if err != nil {
		return false, err
	}

	return len(cards) == 0, nil
}

// EditRequest contains the new content of a card.
// An empty ShortName keeps the current one. Content.Email is ignored,
// see EditEmail.
type EditRequest struct {
	ShortName string
	Content   Content
}

// Edit replaces the content of a card when its edit window is open.
//
// When the window is closed the card stops being editable altogether and
// ErrWindowClosed is returned: a new edit request has to be approved first.
func (s *Service) Edit(ctx context.Context, cardID, ownerID uuid.UUID, req EditRequest) (Card, error) {
	shortName, err := s.checkRequest(req.ShortName, req.Content.validateProfile(), false)
	if err != nil {
		return Card{}, err
	}

	now := s.NowFunc()
	closed := false

	var c Card
	err = s.inTx(ctx, func(tx Tx) error {
		var txErr error
		c, txErr = findOwnedCard(tx, cardID, ownerID)
		if txErr != nil {
			return txErr
		}

		if shortName != "" && shortName != c.ShortName {
			txErr = checkShortName(tx, shortName, c.ID)
			if txErr != nil {
				return txErr
			}
			c.ShortName = shortName
		}

		txErr = checkMarker(tx, ownerID, req.Content.MarkerID)
		if txErr != nil {
			return txErr
		}

		addr := c.Email
		c.Content = req.Content
		c.Email = addr
		applied, txErr := tx.ApplyEdit(&c, now)
		if txErr != nil {
			return txErr
		}

		if !applied {
			closed = true
			return tx.CloseEditWindow(c.ID, now)
		}

		c, txErr = findOwnedCard(tx, cardID, ownerID)
		return txErr
	})
	if err != nil {
		return Card{}, err
	}

	if closed {
		s.metrics.EditsRejected.Inc()
		return Card{}, ErrWindowClosed
	}

	return c, nil
}

// Delete soft deletes a card and returns the slot to its owner.
//
// Cards younger than RetentionPeriod can only be deleted after a deletion
// request was approved. Otherwise a deletion request is sent and
// ErrApprovalRequired is returned.
func (s *Service) Delete(ctx context.Context, cardID, ownerID uuid.UUID) error {
	now := s.NowFunc()
	deleted := false

	var c Card
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		c, txErr = findOwnedCard(tx, cardID, ownerID)
		if txErr != nil {
			return txErr
		}

		deleted, txErr = tx.SoftDelete(c.ID, now.Add(-RetentionPeriod), now)
		if txErr != nil || !deleted {
			return txErr
		}

		return tx.ReturnCardSlot(ownerID, now)
	})
	if err != nil {
		return err
	}

	if !deleted {
		err = s.RequestAction(ctx, KindDelete, cardID, ownerID)
		if err != nil {
			return err
		}
		return ErrApprovalRequired
	}

	s.metrics.CardsDeleted.Inc()
	s.runWorker(func(wCtx context.Context) error {
		return s.publisher.Publish(wCtx, SubjectCardDeleted, cardEvent(c, now))
	})

	return nil
}

// EditEmail changes the email of a card. It requires an approved email
// edit request, each approval allows a single change.
func (s *Service) EditEmail(ctx context.Context, cardID, ownerID uuid.UUID, addr email.Address) (Card, error) {
	if addr == "" {
		return Card{}, errorz.InvalidInput{errorz.Keyed{Key: "email", Err: ErrRequired}}
	}

	now := s.NowFunc()

	var c Card
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		c, txErr = findOwnedCard(tx, cardID, ownerID)
		if txErr != nil {
			return txErr
		}

		updated, txErr := tx.UpdateEmail(c.ID, addr, now)
		if txErr != nil {
			return txErr
		}

		if !updated {
			return ErrApprovalRequired
		}

		c, txErr = findOwnedCard(tx, cardID, ownerID)
		return txErr
	})
	if err != nil {
		return Card{}, err
	}

	link := s.cfg.BaseURL.JoinPath("c", c.ShortName).String()
	s.runWorker(func(wCtx context.Context) error {
		return s.notifier.Send(wCtx, NotifyEmailChanged, c.Email, link)
	})

	return c, nil
}

func (s *Service) checkRequest(rawShortName string, contentErr error, generate bool) (string, error) {
	var errs errorz.InvalidInput

	shortName := ""
	if rawShortName != "" {
		var err error
		shortName, err = ParseShortName(rawShortName)
		errs.Check("shortName", err)
	} else if generate {
		var err error
		shortName, err = newShortName()
		if err != nil {
			return "", err
		}
	}

	if contentErr != nil {
		var contentErrs errorz.InvalidInput
		if !errors.As(contentErr, &contentErrs) {
			return "", contentErr
		}
		errs = append(errs, contentErrs...)
	}

	return shortName, errs.OrNil()
}

func findOwnedCard(tx Tx, cardID, ownerID uuid.UUID) (Card, error) {
	cards, err := tx.FindCards(&CardFilter{
		IDs:     []uuid.UUID{cardID},
		Deleted: ptr(false),
	})
	if err != nil {
		return Card{}, err
	}

	if len(cards) != 1 {
		return Card{}, errorz.ErrNotFound
	}

	if cards[0].OwnerID != ownerID {
		return Card{}, ErrForbidden
	}

	return cards[0], nil
}

// checkShortName returns ErrDuplicateShortName if a live card other than
// self uses the short name.
func checkShortName(tx Tx, shortName string, self uuid.UUID) error {
	cards, err := tx.FindCards(&CardFilter{
		ShortNames: []string{shortName},
		Deleted:    ptr(false),
	})
	if err != nil {
		return err
	}

	for _, c := range cards {
		if c.ID != self {
			return ErrDuplicateShortName
		}
	}

	return nil
}

func checkMarker(tx Tx, ownerID uuid.UUID, markerID string) error {
	if markerID == "" {
		return nil
	}

	markers, err := tx.FindMarkers(&MarkerFilter{
		OwnerIDs:  []uuid.UUID{ownerID},
		UniqueIDs: []string{markerID},
	})
	if err != nil {
		return err
	}

	if len(markers) == 0 {
		return errorz.InvalidInput{errorz.Keyed{Key: "markerId", Err: errorz.ErrNotFound}}
	}

	return nil
}

// createWithDisplayID assigns a random display ID and creates the card,
// retrying when the display ID is taken.
func createWithDisplayID(tx Tx, c *Card) error {
	var err error
	for range maxIDAttempts {
		c.DisplayID, err = newDisplayID()
		if err != nil {
			return err
		}

		err = tx.CreateCard(c)
		if !errors.Is(err, errorz.ErrDuplicate) || errors.Is(err, ErrDuplicateShortName) {
			return err
		}
	}

	return fmt.Errorf("no free display id after %d attempts: %w", maxIDAttempts, err)
}

func (s *Service) runWorker(f func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wCtx, cancel := context.WithTimeout(context.Background(), s.cfg.WorkerTimeout)
		defer cancel()

		err := f(wCtx)
		if err != nil {
			s.errHandler(err)
		}
	}()
}

func (s *Service) inTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil {
				err = errors.Join(err, fmt.Errorf("%w: %w", errorz.ErrTxBadState, rollbackErr))
			}
		}
	}()

	err = fn(tx)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func cardEvent(c Card, now time.Time) CardEvent {
	return CardEvent{
		CardID:    c.ID,
		OwnerID:   c.OwnerID,
		ShortName: c.ShortName,
		At:        now,
	}
}

func ptr[T any](v T) *T {
	return &v
}
