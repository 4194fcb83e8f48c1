package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"
)

// Migration is a migration that was ran.
type Migration struct {
	// Sequence is the number of the migration. Starts at 0.
	Sequence int
	Filename string
	Metadata Metadata
}

// Metadata is stored next to every migration to help with debugging.
type Metadata struct {
	AppVersion string
	Timestamp  time.Time
}

const migrationsTableQuery = `CREATE TABLE IF NOT EXISTS migrations (
	sequence    INTEGER PRIMARY KEY,
	filename    TEXT NOT NULL,
	app_version TEXT NOT NULL,
	timestamp   TIMESTAMP NOT NULL
)`

// ErrMigrationsMismatch indicates the migrations that ran before don't match the ones available now.
var ErrMigrationsMismatch = errors.New("migrations mismatch")

// MigrationError is an error that occurred while running a migration.
type MigrationError struct {
	Sequence int
	Filename string
	Err      error
}

func (m MigrationError) Error() string {
	return fmt.Sprintf("migration [%d] %q failed: %v", m.Sequence, m.Filename, m.Err)
}

func (m MigrationError) Unwrap() error {
	return m.Err
}

// RunFS runs the *.sql files in the root of fileSys, in lexical order, that
// have not ran before. All migrations run in a single transaction: either all
// pending migrations are applied or none are.
func RunFS(ctx context.Context, db *sql.DB, fileSys fs.FS, meta Metadata) ([]Migration, error) {
	files, err := loadFiles(fileSys)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, migrationsTableQuery)
	if err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to create migrations table: %w", err))
	}

	before, err := ranBefore(ctx, tx)
	if err != nil {
		return nil, rollback(tx, err)
	}

	result, err := apply(ctx, tx, before, files, meta)
	if err != nil {
		return nil, rollback(tx, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

func apply(ctx context.Context, tx *sql.Tx, before []Migration, files []file, meta Metadata) ([]Migration, error) {
	if len(before) > len(files) {
		return nil, fmt.Errorf(
			"found %d existing migrations but only have %d files: %w",
			len(before), len(files), ErrMigrationsMismatch,
		)
	}

	for i, m := range before {
		if m.Sequence != i || m.Filename != files[i].name {
			return nil, fmt.Errorf(
				"migration %d was %q, now encountering %q: %w",
				m.Sequence, m.Filename, files[i].name, ErrMigrationsMismatch,
			)
		}
	}

	ranNow := make([]Migration, 0)
	for i, f := range files[len(before):] {
		m := Migration{
			Sequence: len(before) + i,
			Filename: f.name,
			Metadata: meta,
		}

		_, err := tx.ExecContext(ctx, f.content)
		if err != nil {
			return nil, MigrationError{Sequence: m.Sequence, Filename: m.Filename, Err: err}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO migrations (sequence, filename, app_version, timestamp) VALUES (?, ?, ?, ?)`,
			m.Sequence, m.Filename, m.Metadata.AppVersion, m.Metadata.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record migration %q: %w", m.Filename, err)
		}

		ranNow = append(ranNow, m)
	}

	return ranNow, nil
}

func ranBefore(ctx context.Context, tx *sql.Tx) ([]Migration, error) {
	rows, err := tx.QueryContext(ctx, `SELECT sequence, filename, app_version, timestamp FROM migrations ORDER BY sequence`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	out := make([]Migration, 0)
	for rows.Next() {
		var m Migration
		err := rows.Scan(&m.Sequence, &m.Filename, &m.Metadata.AppVersion, &m.Metadata.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over migrations: %w", err)
	}

	return out, nil
}

type file struct {
	name    string
	content string
}

func loadFiles(fileSys fs.FS) ([]file, error) {
	entries, err := fs.ReadDir(fileSys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := make([]file, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		content, err := fs.ReadFile(fileSys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %q: %w", entry.Name(), err)
		}

		if strings.TrimSpace(string(content)) == "" {
			return nil, fmt.Errorf("migration %q is empty", entry.Name())
		}

		files = append(files, file{
			name:    entry.Name(),
			content: string(content),
		})
	}

	return files, nil
}

func rollback(tx *sql.Tx, err error) error {
	rErr := tx.Rollback()
	if rErr != nil {
		return errors.Join(err, rErr)
	}

	return err
}
