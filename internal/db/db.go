package db

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// Both option sets enable WAL mode so reads and writes don't block each
	// other, enforce foreign keys and wait up to 5 seconds for a lock.
	// Writes use immediate transactions: the write lock is taken at BEGIN,
	// which serializes read-modify-write transactions instead of failing
	// them with SQLITE_BUSY on upgrade.
	writeOptions = "?mode=rwc&_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_txlock=immediate"
	readOptions  = "?mode=ro&_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000"

	memoryWriteOptions = "?_foreign_keys=on&_txlock=immediate"
)

// OpenSQLite opens a pool of SQLite connections. Different settings
// are appropriate for reading and writing, so this function needs to know
// what the sql.DB will be used for.
//
// See this comment for more information:
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
func OpenSQLite(dbFile string, write bool) (*sql.DB, error) {
	optsPostfix := readOptions
	if write {
		optsPostfix = writeOptions
	}

	if dbFile == ":memory:" {
		// An in-memory database only exists for a single connection, so
		// read and write pools can not be separated.
		optsPostfix = memoryWriteOptions
		write = true
	}

	db, err := sql.Open("sqlite3", "file:"+dbFile+optsPostfix)
	if err != nil {
		return nil, err
	}

	if write {
		// use only a single connection for writing.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		// don't close this connection.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	return db, nil
}

// Tx wraps a sql.Tx so stores can be written against a single type.
type Tx struct {
	*sql.Tx
}

// BeginTx begins a transaction on db.
func BeginTx(ctx context.Context, db *sql.DB) (*Tx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx}, nil
}

// Rollback rolls back the transaction. Rolling back a transaction that was
// already committed or rolled back is not an error, so Rollback is safe to
// defer.
func (t *Tx) Rollback() error {
	err := t.Tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
