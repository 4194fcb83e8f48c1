package db

import (
	"context"
	"database/sql"

	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/db"
)

// Store is responsible for interacting with a database.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// New creates a new Store. Transactions run on writeDB, the Find methods
// of the store itself on readDB.
func New(readDB, writeDB *sql.DB) *Store {
	return &Store{
		readDB:  readDB,
		writeDB: writeDB,
	}
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (card.Tx, error) {
	tx, err := db.BeginTx(ctx, s.writeDB)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// FindCards queries for cards based on the provided filter.
// It returns an empty slice if no cards are found.
func (s *Store) FindCards(ctx context.Context, filter *card.CardFilter) ([]card.Card, error) {
	return selectCards(s.readQuery(ctx), filter)
}

// FindMarkers queries for markers based on the provided filter.
func (s *Store) FindMarkers(ctx context.Context, filter *card.MarkerFilter) ([]card.Marker, error) {
	return selectMarkers(s.readQuery(ctx), filter)
}

func (s *Store) readQuery(ctx context.Context) queryFunc {
	return func(query string, params ...any) (*sql.Rows, error) {
		return s.readDB.QueryContext(ctx, query, params...)
	}
}
