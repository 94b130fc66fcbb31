package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxigrid/internal/geom"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the fleet tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return ApplySchema(ctx, pool)
}

func DefaultPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = time.Hour
	return pgxpool.NewWithConfig(ctx, cfg)
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Load(ctx context.Context) ([]geom.Point, error) {
	rows, err := p.pool.Query(ctx, `SELECT x, y FROM fleet_positions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pts []geom.Point
	for rows.Next() {
		var pt geom.Point
		if err := rows.Scan(&pt.X, &pt.Y); err != nil {
			return nil, err
		}
		pts = append(pts, pt)
	}
	return pts, rows.Err()
}

// Save replaces the stored fleet in one transaction using COPY.
func (p *Postgres) Save(ctx context.Context, pts []geom.Point) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM fleet_positions`); err != nil {
		return err
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"fleet_positions"},
		[]string{"seq", "x", "y"},
		pgx.CopyFromSlice(len(pts), func(i int) ([]any, error) {
			return []any{int32(i), int32(pts[i].X), int32(pts[i].Y)}, nil
		}),
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
