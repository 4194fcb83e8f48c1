package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/account"
	"github.com/willemschots/cardhub/internal/db"
	"github.com/willemschots/cardhub/internal/errorz"
)

// Store is responsible for interacting with a database.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// New creates a new Store.
func New(readDB, writeDB *sql.DB) *Store {
	return &Store{
		readDB:  readDB,
		writeDB: writeDB,
	}
}

// CreateUser creates a user in the database.
func (s *Store) CreateUser(ctx context.Context, u *account.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	q := &db.Query{}
	q.Unsafe(`INSERT INTO users (id, email, password_hash, available_card_slots, created_at, updated_at) VALUES (`)
	q.Params(u.ID, u.Email, u.PasswordHash, u.AvailableCardSlots, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	q.Unsafe(`)`)

	query, params := q.Get()
	_, err := s.writeDB.ExecContext(ctx, query, params...)
	return errorz.MapDBErr(err)
}

// FindUsers queries for users based on the provided filter.
// It returns an empty slice if no users are found.
func (s *Store) FindUsers(ctx context.Context, f *account.UserFilter) ([]account.User, error) {
	q := &db.Query{}
	q.Unsafe(`SELECT id, email, password_hash, available_card_slots, created_at, updated_at FROM users WHERE 1=1`)

	if len(f.IDs) > 0 {
		q.Unsafe(` AND id IN (`).Params(db.AnySlice(f.IDs)...).Unsafe(`)`)
	}

	if len(f.Emails) > 0 {
		q.Unsafe(` AND email IN (`).Params(db.AnySlice(f.Emails)...).Unsafe(`)`)
	}

	q.Unsafe(` ORDER BY created_at ASC, id ASC`)

	query, params := q.Get()
	rows, err := s.readDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	defer rows.Close()

	out := make([]account.User, 0)
	for rows.Next() {
		var u account.User
		err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AvailableCardSlots, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}
		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

// AdjustCardSlots atomically adds delta to the slots of a user, unless the
// result would be negative.
func (s *Store) AdjustCardSlots(ctx context.Context, id uuid.UUID, delta int, now time.Time) (bool, error) {
	q := &db.Query{}
	q.Unsafe(`UPDATE users SET available_card_slots = available_card_slots + `).Param(delta)
	q.Unsafe(`, updated_at = `).Param(now.UTC())
	q.Unsafe(` WHERE id = `).Param(id)
	q.Unsafe(` AND available_card_slots + `).Param(delta).Unsafe(` >= 0`)

	query, params := q.Get()
	res, err := s.writeDB.ExecContext(ctx, query, params...)
	if err != nil {
		return false, errorz.MapDBErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errorz.MapDBErr(err)
	}

	return n > 0, nil
}
