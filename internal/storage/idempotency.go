package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxigrid/internal/dispatch"
)

// IdempotencyStore persists Idempotency-Key bookings with a TTL.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewIdempotencyStore(pool *pgxpool.Pool, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &IdempotencyStore{pool: pool, ttl: ttl}
}

func (s *IdempotencyStore) Remember(ctx context.Context, key string, b dispatch.Booking) error {
	if key == "" || b.ID == "" {
		return nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	exp := time.Now().Add(s.ttl)
	_, err = s.pool.Exec(ctx, `
INSERT INTO idempotency_keys (key, booking, expires_at)
VALUES ($1,$2::jsonb,$3)
ON CONFLICT (key) DO UPDATE SET booking=EXCLUDED.booking, expires_at=EXCLUDED.expires_at
`, key, string(raw), exp)
	return err
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (dispatch.Booking, bool, error) {
	if key == "" {
		return dispatch.Booking{}, false, nil
	}
	var (
		raw     []byte
		expires time.Time
	)
	err := s.pool.QueryRow(ctx, `
SELECT booking, expires_at FROM idempotency_keys WHERE key = $1
`, key).Scan(&raw, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return dispatch.Booking{}, false, nil
	}
	if err != nil {
		return dispatch.Booking{}, false, err
	}
	if time.Now().After(expires) {
		return dispatch.Booking{}, false, nil
	}
	var b dispatch.Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		return dispatch.Booking{}, false, err
	}
	return b, true, nil
}

// Prune deletes expired keys and returns how many were removed.
func (s *IdempotencyStore) Prune(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
