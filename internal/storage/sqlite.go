package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"taxigrid/internal/dispatch"
	"taxigrid/internal/geom"
)

// SQLite stores the fleet and its event log in one database file.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initSQLite(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS fleet_positions (
			seq INTEGER PRIMARY KEY,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fleet_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			booking_id TEXT NOT NULL,
			from_x INTEGER NOT NULL,
			from_y INTEGER NOT NULL,
			to_x INTEGER NOT NULL,
			to_y INTEGER NOT NULL,
			hops INTEGER NOT NULL,
			payload TEXT,
			created_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("sqlite init: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Load(ctx context.Context) ([]geom.Point, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT x, y FROM fleet_positions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pts []geom.Point
	for rows.Next() {
		var p geom.Point
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, rows.Err()
}

// Save replaces every stored position in one transaction.
func (s *SQLite) Save(ctx context.Context, pts []geom.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fleet_positions`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fleet_positions (seq, x, y) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range pts {
		if _, err := stmt.ExecContext(ctx, i, p.X, p.Y); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) AppendEvent(ctx context.Context, evt dispatch.FleetEvent) error {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fleet_events (kind, booking_id, from_x, from_y, to_x, to_y, hops, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(evt.Kind), evt.BookingID, evt.From.X, evt.From.Y, evt.To.X, evt.To.Y, evt.Hops,
		string(evt.Payload), evt.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// ListEvents returns events newest first.
func (s *SQLite) ListEvents(ctx context.Context, limit, offset int) ([]dispatch.FleetEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, kind, booking_id, from_x, from_y, to_x, to_y, hops, payload, created_at
FROM fleet_events
ORDER BY id DESC
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dispatch.FleetEvent
	for rows.Next() {
		var (
			evt     dispatch.FleetEvent
			kind    string
			payload sql.NullString
			created string
		)
		if err := rows.Scan(&evt.ID, &kind, &evt.BookingID, &evt.From.X, &evt.From.Y, &evt.To.X, &evt.To.Y, &evt.Hops, &payload, &created); err != nil {
			return nil, err
		}
		evt.Kind = dispatch.MoveKind(kind)
		if payload.Valid && payload.String != "" {
			evt.Payload = []byte(payload.String)
		}
		if evt.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("event %d: %w", evt.ID, err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (s *SQLite) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fleet_events`).Scan(&n)
	return n, err
}
