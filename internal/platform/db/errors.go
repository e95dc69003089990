package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

// Classify maps driver errors onto the shared taxonomy. Errors already
// classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrStateConflict) ||
		errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrStorage) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", shared.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return fmt.Errorf("%w: unknown reference (%s)", shared.ErrValidation, pgErr.ConstraintName)
		case "23505":
			return fmt.Errorf("%w: duplicate entry (%s)", shared.ErrValidation, pgErr.ConstraintName)
		case "23514", "23502", "22P02", "22007", "22008":
			return fmt.Errorf("%w: %s", shared.ErrValidation, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrStorage, err)
}
