package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/db"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/errorz"
	"github.com/willemschots/cardhub/internal/krypto"
)

type execFunc func(query string, params ...any) (sql.Result, error)
type queryFunc func(query string, params ...any) (*sql.Rows, error)

// Times are stored in UTC so they compare correctly as text.

func takeCardSlot(ef execFunc, qf queryFunc, ownerID uuid.UUID, now time.Time) error {
	q := &db.Query{}
	q.Unsafe(`UPDATE users SET available_card_slots = available_card_slots - 1, updated_at = `).Param(now.UTC())
	q.Unsafe(` WHERE id = `).Param(ownerID)
	q.Unsafe(` AND available_card_slots > 0`)

	applied, err := execConditional(ef, q)
	if err != nil || applied {
		return err
	}

	exists, err := userExists(qf, ownerID)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return card.ErrQuotaExceeded
}

func returnCardSlot(ef execFunc, ownerID uuid.UUID, now time.Time) error {
	q := &db.Query{}
	q.Unsafe(`UPDATE users SET available_card_slots = available_card_slots + 1, updated_at = `).Param(now.UTC())
	q.Unsafe(` WHERE id = `).Param(ownerID)

	return execExpectOne(ef, q, "user")
}

func userExists(qf queryFunc, id uuid.UUID) (bool, error) {
	rows, err := qf(`SELECT 1 FROM users WHERE id = ?`, id)
	if err != nil {
		return false, errorz.MapDBErr(err)
	}
	defer rows.Close()

	exists := rows.Next()
	return exists, errorz.MapDBErr(rows.Err())
}

type linkJSON struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func encodeLinks(links []card.Link) (string, error) {
	out := make([]linkJSON, 0, len(links))
	for _, l := range links {
		out = append(out, linkJSON(l))
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode links: %w", err)
	}

	return string(b), nil
}

func decodeLinks(raw string) ([]card.Link, error) {
	var in []linkJSON
	err := json.Unmarshal([]byte(raw), &in)
	if err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}

	out := make([]card.Link, 0, len(in))
	for _, l := range in {
		out = append(out, card.Link(l))
	}

	return out, nil
}

func insertCard(ef execFunc, c *card.Card) error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	links, err := encodeLinks(c.Links)
	if err != nil {
		return err
	}

	q := &db.Query{}
	q.Unsafe(`INSERT INTO cards (id, owner_id, short_name, display_id, name, title, about, email, ` +
		`logo_image_url, card_image_url, background_url, links, marker_id, active, editable, ` +
		`number_of_edits, editable_until, email_editable, deletable, deleted, date_till_deletion, ` +
		`created_at, updated_at) VALUES (`)
	q.Params(
		c.ID, c.OwnerID, c.ShortName, c.DisplayID, c.Name, c.Title, c.About, c.Email,
		c.LogoImageURL, c.CardImageURL, c.BackgroundURL, links, c.MarkerID, c.Active, c.Editable,
		c.NumberOfEdits, c.EditableUntil.UTC(), c.EmailEditable, c.Deletable, c.Deleted, c.DateTillDeletion.UTC(),
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	q.Unsafe(`)`)

	s, params := q.Get()
	_, err = ef(s, params...)
	return mapCardErr(err)
}

// mapCardErr reports unique violations of the short name index as
// card.ErrDuplicateShortName.
func mapCardErr(err error) error {
	mapped := errorz.MapDBErr(err)
	if errors.Is(mapped, errorz.ErrDuplicate) && strings.Contains(err.Error(), "short_name") {
		return fmt.Errorf("%w: %w", card.ErrDuplicateShortName, mapped)
	}
	return mapped
}

const cardColumns = `id, owner_id, short_name, display_id, name, title, about, email, logo_image_url, ` +
	`card_image_url, background_url, links, marker_id, active, editable, number_of_edits, editable_until, ` +
	`email_editable, deletable, deleted, date_till_deletion, created_at, updated_at`

func selectCards(qf queryFunc, f *card.CardFilter) ([]card.Card, error) {
	q := &db.Query{}
	q.Unsafe(`SELECT ` + cardColumns + ` FROM cards WHERE 1=1`)

	if len(f.IDs) > 0 {
		q.Unsafe(` AND id IN (`).Params(db.AnySlice(f.IDs)...).Unsafe(`)`)
	}

	if len(f.OwnerIDs) > 0 {
		q.Unsafe(` AND owner_id IN (`).Params(db.AnySlice(f.OwnerIDs)...).Unsafe(`)`)
	}

	if len(f.ShortNames) > 0 {
		q.Unsafe(` AND short_name IN (`).Params(db.AnySlice(f.ShortNames)...).Unsafe(`)`)
	}

	if f.Active != nil {
		q.Unsafe(` AND active = `).Param(*f.Active)
	}

	if f.Deleted != nil {
		q.Unsafe(` AND deleted = `).Param(*f.Deleted)
	}

	q.Unsafe(` ORDER BY created_at ASC, id ASC`)

	s, params := q.Get()
	rows, err := qf(s, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	defer rows.Close()

	out := make([]card.Card, 0)
	for rows.Next() {
		var (
			c     card.Card
			links string
		)
		err := rows.Scan(
			&c.ID, &c.OwnerID, &c.ShortName, &c.DisplayID, &c.Name, &c.Title, &c.About, &c.Email,
			&c.LogoImageURL, &c.CardImageURL, &c.BackgroundURL, &links, &c.MarkerID, &c.Active, &c.Editable,
			&c.NumberOfEdits, &c.EditableUntil, &c.EmailEditable, &c.Deletable, &c.Deleted, &c.DateTillDeletion,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		c.Links, err = decodeLinks(links)
		if err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func applyEdit(ef execFunc, c *card.Card, now time.Time) (bool, error) {
	links, err := encodeLinks(c.Links)
	if err != nil {
		return false, err
	}

	q := &db.Query{}
	q.Unsafe(`UPDATE cards SET `)
	q.Set(true, "short_name", c.ShortName)
	q.Set(false, "name", c.Name)
	q.Set(false, "title", c.Title)
	q.Set(false, "about", c.About)
	q.Set(false, "logo_image_url", c.LogoImageURL)
	q.Set(false, "card_image_url", c.CardImageURL)
	q.Set(false, "background_url", c.BackgroundURL)
	q.Set(false, "links", links)
	q.Set(false, "marker_id", c.MarkerID)
	q.Set(false, "updated_at", now.UTC())
	q.Unsafe(`, number_of_edits = number_of_edits + 1`)
	q.Unsafe(` WHERE id = `).Param(c.ID)
	q.Unsafe(` AND deleted = 0 AND editable = 1 AND number_of_edits < `).Param(card.MaxEdits)
	q.Unsafe(` AND editable_until >= `).Param(now.UTC())

	s, params := q.Get()
	res, err := ef(s, params...)
	if err != nil {
		return false, mapCardErr(err)
	}

	return rowsAffected(res)
}

type flagUpdate struct {
	column string
	value  any
}

// setFlags updates columns of a live card, columns are never user input.
func setFlags(ef execFunc, cardID uuid.UUID, now time.Time, updates ...flagUpdate) error {
	q := &db.Query{}
	q.Unsafe(`UPDATE cards SET `)
	for i, u := range updates {
		q.Set(i == 0, u.column, u.value)
	}
	q.Set(len(updates) == 0, "updated_at", now.UTC())
	q.Unsafe(` WHERE id = `).Param(cardID)
	q.Unsafe(` AND deleted = 0`)

	return execExpectOne(ef, q, "card")
}

func updateEmail(ef execFunc, cardID uuid.UUID, addr email.Address, now time.Time) (bool, error) {
	q := &db.Query{}
	q.Unsafe(`UPDATE cards SET `)
	q.Set(true, "email", addr)
	q.Set(false, "email_editable", false)
	q.Set(false, "updated_at", now.UTC())
	q.Unsafe(` WHERE id = `).Param(cardID)
	q.Unsafe(` AND deleted = 0 AND email_editable = 1`)

	return execConditional(ef, q)
}

func softDelete(ef execFunc, cardID uuid.UUID, createdBefore, now time.Time) (bool, error) {
	q := &db.Query{}
	q.Unsafe(`UPDATE cards SET `)
	q.Set(true, "deleted", true)
	q.Set(false, "updated_at", now.UTC())
	q.Unsafe(` WHERE id = `).Param(cardID)
	q.Unsafe(` AND deleted = 0 AND (deletable = 1 OR created_at <= `).Param(createdBefore.UTC()).Unsafe(`)`)

	return execConditional(ef, q)
}

func insertApprovalToken(ef execFunc, t *card.ApprovalToken) error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	q := &db.Query{}
	q.Unsafe(`INSERT INTO approval_tokens (id, kind, token_hash, card_id, created_at, expires_at, used_at) VALUES (`)
	q.Params(t.ID, t.Kind, t.TokenHash, t.CardID, t.CreatedAt.UTC(), t.ExpiresAt.UTC(), utcPtr(t.UsedAt))
	q.Unsafe(`)`)

	s, params := q.Get()
	_, err := ef(s, params...)
	return errorz.MapDBErr(err)
}

// consumeApprovalToken marks a token used with a single conditional update,
// so concurrent consumers can not both succeed.
func consumeApprovalToken(ef execFunc, qf queryFunc, kind card.Kind, hash krypto.TokenHash, now time.Time) (card.ApprovalToken, error) {
	q := &db.Query{}
	q.Unsafe(`UPDATE approval_tokens SET used_at = `).Param(now.UTC())
	q.Unsafe(` WHERE kind = `).Param(kind)
	q.Unsafe(` AND token_hash = `).Param(hash)
	q.Unsafe(` AND used_at IS NULL AND expires_at > `).Param(now.UTC())

	applied, err := execConditional(ef, q)
	if err != nil {
		return card.ApprovalToken{}, err
	}

	tok, err := selectApprovalToken(qf, kind, hash)
	if err != nil {
		return card.ApprovalToken{}, err
	}

	switch {
	case applied:
		return tok, nil
	case tok.UsedAt != nil:
		return card.ApprovalToken{}, card.ErrAlreadyUsed
	default:
		return card.ApprovalToken{}, card.ErrTokenExpired
	}
}

func selectApprovalToken(qf queryFunc, kind card.Kind, hash krypto.TokenHash) (card.ApprovalToken, error) {
	rows, err := qf(`SELECT id, kind, token_hash, card_id, created_at, expires_at, used_at FROM approval_tokens WHERE kind = ? AND token_hash = ?`, kind, hash)
	if err != nil {
		return card.ApprovalToken{}, errorz.MapDBErr(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return card.ApprovalToken{}, errorz.MapDBErr(err)
		}
		return card.ApprovalToken{}, fmt.Errorf("approval token not found: %w", errorz.ErrNotFound)
	}

	var t card.ApprovalToken
	err = rows.Scan(&t.ID, &t.Kind, &t.TokenHash, &t.CardID, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	if err != nil {
		return card.ApprovalToken{}, errorz.MapDBErr(err)
	}

	return t, nil
}

func revokeApprovalTokens(ef execFunc, kind card.Kind, cardID uuid.UUID, now time.Time) error {
	q := &db.Query{}
	q.Unsafe(`UPDATE approval_tokens SET used_at = `).Param(now.UTC())
	q.Unsafe(` WHERE kind = `).Param(kind)
	q.Unsafe(` AND card_id = `).Param(cardID)
	q.Unsafe(` AND used_at IS NULL`)

	s, params := q.Get()
	_, err := ef(s, params...)
	return errorz.MapDBErr(err)
}

func insertMarker(ef execFunc, m *card.Marker) error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	q := &db.Query{}
	q.Unsafe(`INSERT INTO markers (id, owner_id, unique_id, image_url, file_url, created_at) VALUES (`)
	q.Params(m.ID, m.OwnerID, m.UniqueID, m.ImageURL, m.FileURL, m.CreatedAt.UTC())
	q.Unsafe(`)`)

	s, params := q.Get()
	_, err := ef(s, params...)
	return errorz.MapDBErr(err)
}

func selectMarkers(qf queryFunc, f *card.MarkerFilter) ([]card.Marker, error) {
	q := &db.Query{}
	q.Unsafe(`SELECT m.id, m.owner_id, m.unique_id, m.image_url, m.file_url, m.created_at, ` +
		`NOT EXISTS (SELECT 1 FROM cards c WHERE c.owner_id = m.owner_id AND c.marker_id = m.unique_id AND c.deleted = 0) ` +
		`FROM markers m WHERE 1=1`)

	if len(f.OwnerIDs) > 0 {
		q.Unsafe(` AND m.owner_id IN (`).Params(db.AnySlice(f.OwnerIDs)...).Unsafe(`)`)
	}

	if len(f.UniqueIDs) > 0 {
		q.Unsafe(` AND m.unique_id IN (`).Params(db.AnySlice(f.UniqueIDs)...).Unsafe(`)`)
	}

	q.Unsafe(` ORDER BY m.created_at ASC, m.id ASC`)

	s, params := q.Get()
	rows, err := qf(s, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	defer rows.Close()

	out := make([]card.Marker, 0)
	for rows.Next() {
		var m card.Marker
		err := rows.Scan(&m.ID, &m.OwnerID, &m.UniqueID, &m.ImageURL, &m.FileURL, &m.CreatedAt, &m.Deletable)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func deleteMarker(ef execFunc, id uuid.UUID) error {
	q := &db.Query{}
	q.Unsafe(`DELETE FROM markers WHERE id = `).Param(id)

	return execExpectOne(ef, q, "marker")
}

func execConditional(ef execFunc, q *db.Query) (bool, error) {
	s, params := q.Get()
	res, err := ef(s, params...)
	if err != nil {
		return false, errorz.MapDBErr(err)
	}

	return rowsAffected(res)
}

func execExpectOne(ef execFunc, q *db.Query, what string) error {
	applied, err := execConditional(ef, q)
	if err != nil {
		return err
	}

	if !applied {
		return fmt.Errorf("%s not found: %w", what, errorz.ErrNotFound)
	}

	return nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errorz.MapDBErr(err)
	}

	return n > 0, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
