package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

func TestClassifyMapsDriverErrors(t *testing.T) {
	require.NoError(t, Classify(nil))

	err := Classify(fmt.Errorf("scan: %w", pgx.ErrNoRows))
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = Classify(&pgconn.PgError{Code: "23503", ConstraintName: "po_supplier_fk"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "po_supplier_fk")

	err = Classify(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	require.ErrorIs(t, err, shared.ErrStorage)

	err = Classify(errors.New("connection refused"))
	require.ErrorIs(t, err, shared.ErrStorage)
}

func TestClassifyKeepsTaxonomyErrors(t *testing.T) {
	conflict := fmt.Errorf("purchasing: %w", shared.ErrStateConflict)
	require.Same(t, conflict, Classify(conflict))
}
