package errorz

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConstraintViolated = errors.New("constraint violated")
	ErrDuplicate          = errors.New("duplicate value")
	ErrTxBadState         = errors.New("transaction is in a known bad state")
)

// MapDBErr maps database errors to errorz errors.
// Unique constraint violations match both ErrDuplicate and
// ErrConstraintViolated, foreign key violations match both ErrNotFound and
// ErrConstraintViolated. If err is nil, MapDBErr returns nil.
func MapDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	sErr := sqlite3.Error{}
	if errors.As(err, &sErr) && sErr.Code == sqlite3.ErrConstraint {
		switch sErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", ErrDuplicate, ErrConstraintViolated)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %w", ErrNotFound, ErrConstraintViolated)
		}
		return ErrConstraintViolated
	}

	return err
}
