package shared

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrIdempotencyConflict indicates the key was already claimed for the module.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore claims run keys in idempotency_keys. The scheduled
// replenishment scan uses it to place orders at most once per day.
type IdempotencyStore struct {
	db    Execer
	clock func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db Execer) *IdempotencyStore {
	return &IdempotencyStore{db: db, clock: time.Now}
}

// CheckAndInsert claims key for module, returning ErrIdempotencyConflict when
// it is already held.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("idempotency: store not initialised: %w", ErrStorage)
	}
	if key == "" || module == "" {
		return fmt.Errorf("idempotency: key and module required: %w", ErrValidation)
	}
	tag, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`, key, module, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("idempotency: claim %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Cleanup removes entries older than retention and reports how many were purged.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	cutoff := s.clock().UTC().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("idempotency: cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete releases a key so a failed run can be retried the same day.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if key == "" {
		return fmt.Errorf("idempotency: key required: %w", ErrValidation)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key); err != nil {
		return fmt.Errorf("idempotency: delete %s: %w", key, err)
	}
	return nil
}
