package card_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/willemschots/cardhub/internal/account"
	accountdb "github.com/willemschots/cardhub/internal/account/db"
	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/card/db"
	"github.com/willemschots/cardhub/internal/db/testdb"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/errorz/testerr"
	"github.com/willemschots/cardhub/internal/events"
	"github.com/willemschots/cardhub/internal/krypto"
)

type svcTest struct {
	t         *testing.T
	svc       *card.Service
	store     *testStore
	users     *accountdb.Store
	notifier  *testNotifier
	publisher *events.Memory
	metrics   *card.Metrics
	errList   *errList
	clock     time.Time
}

func newServiceTest(t *testing.T) *svcTest {
	t.Helper()

	testDB := testdb.RunWhile(t)
	st := &svcTest{
		t: t,
		store: &testStore{
			store:   db.New(testDB, testDB),
			tracker: &testerr.Calltracker{}, // empty call trackers never fail.
		},
		users:     accountdb.New(testDB, testDB),
		notifier:  &testNotifier{},
		publisher: events.NewMemory(),
		metrics:   card.NewMetrics(prometheus.NewRegistry()),
		errList:   &errList{},
		clock:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg := card.ServiceConfig{
		BaseURL:       must(url.Parse("https://cardhub.test")),
		WorkerTimeout: time.Second,
		TokenExpiry:   7 * 24 * time.Hour,
	}

	st.svc = card.NewService(st.store, st.notifier, st.publisher, st.metrics, st.errList.AppendErr, cfg)
	st.svc.NowFunc = func() time.Time {
		return st.clock
	}

	return st
}

func (st *svcTest) advance(d time.Duration) {
	st.clock = st.clock.Add(d)
}

func (st *svcTest) createOwner(slots int) uuid.UUID {
	st.t.Helper()

	u := account.User{
		ID:                 uuid.New(),
		Email:              email.Address(uuid.NewString() + "@example.com"),
		PasswordHash:       must(krypto.HashArgon2([]byte("reallyStrongPassword1"))),
		AvailableCardSlots: slots,
		CreatedAt:          st.clock,
		UpdatedAt:          st.clock,
	}

	err := st.users.CreateUser(context.Background(), &u)
	if err != nil {
		st.t.Fatalf("failed to create user: %v", err)
	}

	return u.ID
}

func (st *svcTest) slots(ownerID uuid.UUID) int {
	st.t.Helper()

	users, err := st.users.FindUsers(context.Background(), &account.UserFilter{IDs: []uuid.UUID{ownerID}})
	if err != nil || len(users) != 1 {
		st.t.Fatalf("failed to find user: %v", err)
	}

	return users[0].AvailableCardSlots
}

func (st *svcTest) createCard(ownerID uuid.UUID, shortName string) card.Card {
	st.t.Helper()

	c, err := st.svc.Create(context.Background(), ownerID, card.CreateRequest{
		ShortName: shortName,
		Content:   content("Acme"),
	})
	if err != nil {
		st.t.Fatalf("failed to create card: %v", err)
	}

	st.svc.Wait()
	st.errList.assertNoError(st.t)

	return c
}

// requestToken requests an action and returns the token from the emailed link.
func (st *svcTest) requestToken(kind card.Kind, c card.Card) krypto.Token {
	st.t.Helper()

	err := st.svc.RequestAction(context.Background(), kind, c.ID, c.OwnerID)
	if err != nil {
		st.t.Fatalf("failed to request %s: %v", kind, err)
	}

	st.svc.Wait()
	st.errList.assertNoError(st.t)

	return st.notifier.lastToken(st.t)
}

func (st *svcTest) approve(kind card.Kind, tok krypto.Token) card.Approval {
	st.t.Helper()

	a, err := st.svc.Approve(context.Background(), kind, tok)
	if err != nil {
		st.t.Fatalf("failed to approve %s: %v", kind, err)
	}

	st.svc.Wait()
	st.errList.assertNoError(st.t)

	return a
}

func (st *svcTest) get(id uuid.UUID) card.Card {
	st.t.Helper()

	c, err := st.svc.Get(context.Background(), id)
	if err != nil {
		st.t.Fatalf("failed to get card: %v", err)
	}

	return c
}

func content(name string) card.Content {
	return card.Content{
		Name:         name,
		Title:        "Founder",
		About:        "We make everything.",
		Email:        "card@example.com",
		LogoImageURL: "https://img.example.com/logo.png",
		Links: []card.Link{
			{Name: "Website", URL: "https://example.com"},
		},
	}
}

type errList struct {
	mutex sync.Mutex
	errs  []error
}

func (e *errList) AppendErr(err error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.errs = append(e.errs, err)
}

func (e *errList) assertNoError(t *testing.T) {
	t.Helper()

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if len(e.errs) > 0 {
		t.Fatalf("unexpected errors: %v", e.errs)
	}
}

func (e *errList) assertErrorIs(t *testing.T, err error) {
	t.Helper()

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if len(e.errs) != 1 || !errors.Is(e.errs[0], err) {
		t.Fatalf("expected error %v, got %v via errors.Is()", err, e.errs)
	}
}

// testStore wraps a real store but uses a testerr.Calltracker to
// possibly fail on certain method calls.
type testStore struct {
	store   card.Store
	tracker *testerr.Calltracker
}

func (s *testStore) BeginTx(ctx context.Context) (card.Tx, error) {
	return testerr.MaybeFail(s.tracker, func() (card.Tx, error) {
		realTx, err := s.store.BeginTx(ctx)
		return &testTx{
			store: s,
			tx:    realTx,
		}, err
	})
}

func (s *testStore) FindCards(ctx context.Context, filter *card.CardFilter) ([]card.Card, error) {
	return testerr.MaybeFail(s.tracker, func() ([]card.Card, error) {
		return s.store.FindCards(ctx, filter)
	})
}

func (s *testStore) FindMarkers(ctx context.Context, filter *card.MarkerFilter) ([]card.Marker, error) {
	return testerr.MaybeFail(s.tracker, func() ([]card.Marker, error) {
		return s.store.FindMarkers(ctx, filter)
	})
}

type testTx struct {
	store *testStore
	tx    card.Tx
}

func (tx *testTx) Commit() error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, tx.tx.Commit)
}

// Rollback always rolls back the real transaction, so a failing rollback
// does not keep the single test connection busy.
func (tx *testTx) Rollback() error {
	err := tx.tx.Rollback()
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return err
	})
}

func (tx *testTx) TakeCardSlot(ownerID uuid.UUID, now time.Time) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.TakeCardSlot(ownerID, now)
	})
}

func (tx *testTx) ReturnCardSlot(ownerID uuid.UUID, now time.Time) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.ReturnCardSlot(ownerID, now)
	})
}

func (tx *testTx) CreateCard(c *card.Card) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.CreateCard(c)
	})
}

func (tx *testTx) FindCards(filter *card.CardFilter) ([]card.Card, error) {
	return testerr.MaybeFail(tx.store.tracker, func() ([]card.Card, error) {
		return tx.tx.FindCards(filter)
	})
}

func (tx *testTx) ApplyEdit(c *card.Card, now time.Time) (bool, error) {
	return testerr.MaybeFail(tx.store.tracker, func() (bool, error) {
		return tx.tx.ApplyEdit(c, now)
	})
}

func (tx *testTx) CloseEditWindow(cardID uuid.UUID, now time.Time) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.CloseEditWindow(cardID, now)
	})
}

func (tx *testTx) ResetEditWindow(cardID uuid.UUID, until, now time.Time) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.ResetEditWindow(cardID, until, now)
	})
}

func (tx *testTx) MarkDeletable(cardID uuid.UUID, now time.Time) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.MarkDeletable(cardID, now)
	})
}

func (tx *testTx) MarkEmailEditable(cardID uuid.UUID, now time.Time) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.MarkEmailEditable(cardID, now)
	})
}

func (tx *testTx) Activate(cardID uuid.UUID, now time.Time) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.Activate(cardID, now)
	})
}

func (tx *testTx) UpdateEmail(cardID uuid.UUID, addr email.Address, now time.Time) (bool, error) {
	return testerr.MaybeFail(tx.store.tracker, func() (bool, error) {
		return tx.tx.UpdateEmail(cardID, addr, now)
	})
}

func (tx *testTx) SoftDelete(cardID uuid.UUID, createdBefore, now time.Time) (bool, error) {
	return testerr.MaybeFail(tx.store.tracker, func() (bool, error) {
		return tx.tx.SoftDelete(cardID, createdBefore, now)
	})
}

func (tx *testTx) CreateApprovalToken(t *card.ApprovalToken) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.CreateApprovalToken(t)
	})
}

func (tx *testTx) ConsumeApprovalToken(kind card.Kind, hash krypto.TokenHash, now time.Time) (card.ApprovalToken, error) {
	return testerr.MaybeFail(tx.store.tracker, func() (card.ApprovalToken, error) {
		return tx.tx.ConsumeApprovalToken(kind, hash, now)
	})
}

func (tx *testTx) RevokeApprovalTokens(kind card.Kind, cardID uuid.UUID, now time.Time) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.RevokeApprovalTokens(kind, cardID, now)
	})
}

func (tx *testTx) CreateMarker(m *card.Marker) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.CreateMarker(m)
	})
}

func (tx *testTx) FindMarkers(filter *card.MarkerFilter) ([]card.Marker, error) {
	return testerr.MaybeFail(tx.store.tracker, func() ([]card.Marker, error) {
		return tx.tx.FindMarkers(filter)
	})
}

func (tx *testTx) DeleteMarker(id uuid.UUID) error {
	return testerr.MaybeFailErrFunc(tx.store.tracker, func() error {
		return tx.tx.DeleteMarker(id)
	})
}

type notification struct {
	kind      card.NotificationKind
	recipient email.Address
	link      string
}

type testNotifier struct {
	mutex   sync.Mutex
	sent    []notification
	testErr error
}

func (n *testNotifier) Send(_ context.Context, kind card.NotificationKind, recipient email.Address, link string) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.sent = append(n.sent, notification{
		kind:      kind,
		recipient: recipient,
		link:      link,
	})

	return n.testErr
}

func (n *testNotifier) all() []notification {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	out := make([]notification, len(n.sent))
	copy(out, n.sent)
	return out
}

func (n *testNotifier) last(t *testing.T) notification {
	t.Helper()

	sent := n.all()
	if len(sent) == 0 {
		t.Fatalf("no notifications sent")
	}

	return sent[len(sent)-1]
}

func (n *testNotifier) lastToken(t *testing.T) krypto.Token {
	t.Helper()

	u, err := url.Parse(n.last(t).link)
	if err != nil {
		t.Fatalf("failed to parse link: %v", err)
	}

	tok, err := krypto.ParseToken(u.Query().Get("token"))
	if err != nil {
		t.Fatalf("failed to parse token from link %q: %v", u, err)
	}

	return tok
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
