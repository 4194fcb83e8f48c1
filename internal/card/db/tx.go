package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/db"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/krypto"
)

type Tx struct {
	tx *db.Tx
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func (t *Tx) TakeCardSlot(ownerID uuid.UUID, now time.Time) error {
	return takeCardSlot(t.tx.Exec, t.tx.Query, ownerID, now)
}

func (t *Tx) ReturnCardSlot(ownerID uuid.UUID, now time.Time) error {
	return returnCardSlot(t.tx.Exec, ownerID, now)
}

func (t *Tx) CreateCard(c *card.Card) error {
	return insertCard(t.tx.Exec, c)
}

func (t *Tx) FindCards(filter *card.CardFilter) ([]card.Card, error) {
	return selectCards(t.tx.Query, filter)
}

func (t *Tx) ApplyEdit(c *card.Card, now time.Time) (bool, error) {
	return applyEdit(t.tx.Exec, c, now)
}

func (t *Tx) CloseEditWindow(cardID uuid.UUID, now time.Time) error {
	return setFlags(t.tx.Exec, cardID, now, flagUpdate{column: "editable", value: false})
}

func (t *Tx) ResetEditWindow(cardID uuid.UUID, until, now time.Time) error {
	return setFlags(t.tx.Exec, cardID, now,
		flagUpdate{column: "editable", value: true},
		flagUpdate{column: "number_of_edits", value: 0},
		flagUpdate{column: "editable_until", value: until.UTC()},
	)
}

func (t *Tx) MarkDeletable(cardID uuid.UUID, now time.Time) error {
	return setFlags(t.tx.Exec, cardID, now, flagUpdate{column: "deletable", value: true})
}

func (t *Tx) MarkEmailEditable(cardID uuid.UUID, now time.Time) error {
	return setFlags(t.tx.Exec, cardID, now, flagUpdate{column: "email_editable", value: true})
}

func (t *Tx) Activate(cardID uuid.UUID, now time.Time) error {
	return setFlags(t.tx.Exec, cardID, now, flagUpdate{column: "active", value: true})
}

func (t *Tx) UpdateEmail(cardID uuid.UUID, addr email.Address, now time.Time) (bool, error) {
	return updateEmail(t.tx.Exec, cardID, addr, now)
}

func (t *Tx) SoftDelete(cardID uuid.UUID, createdBefore, now time.Time) (bool, error) {
	return softDelete(t.tx.Exec, cardID, createdBefore, now)
}

func (t *Tx) CreateApprovalToken(tok *card.ApprovalToken) error {
	return insertApprovalToken(t.tx.Exec, tok)
}

func (t *Tx) ConsumeApprovalToken(kind card.Kind, hash krypto.TokenHash, now time.Time) (card.ApprovalToken, error) {
	return consumeApprovalToken(t.tx.Exec, t.tx.Query, kind, hash, now)
}

func (t *Tx) RevokeApprovalTokens(kind card.Kind, cardID uuid.UUID, now time.Time) error {
	return revokeApprovalTokens(t.tx.Exec, kind, cardID, now)
}

func (t *Tx) CreateMarker(m *card.Marker) error {
	return insertMarker(t.tx.Exec, m)
}

func (t *Tx) FindMarkers(filter *card.MarkerFilter) ([]card.Marker, error) {
	return selectMarkers(t.tx.Query, filter)
}

func (t *Tx) DeleteMarker(id uuid.UUID) error {
	return deleteMarker(t.tx.Exec, id)
}
