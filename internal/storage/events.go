package storage

import (
	"context"

	"taxigrid/internal/dispatch"
)

func (p *Postgres) AppendEvent(ctx context.Context, evt dispatch.FleetEvent) error {
	var payload any
	if len(evt.Payload) > 0 {
		payload = string(evt.Payload)
	}
	var createdAt any
	if !evt.CreatedAt.IsZero() {
		createdAt = evt.CreatedAt
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO fleet_events (kind, booking_id, from_x, from_y, to_x, to_y, hops, payload, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,COALESCE($9,NOW()))
`, string(evt.Kind), evt.BookingID, evt.From.X, evt.From.Y, evt.To.X, evt.To.Y, evt.Hops, payload, createdAt)
	return err
}

// ListEvents returns events newest first.
func (p *Postgres) ListEvents(ctx context.Context, limit, offset int) ([]dispatch.FleetEvent, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, kind, booking_id, from_x, from_y, to_x, to_y, hops, payload, created_at
FROM fleet_events
ORDER BY id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dispatch.FleetEvent
	for rows.Next() {
		var (
			evt     dispatch.FleetEvent
			kind    string
			payload []byte
		)
		if err := rows.Scan(&evt.ID, &kind, &evt.BookingID, &evt.From.X, &evt.From.Y, &evt.To.X, &evt.To.Y, &evt.Hops, &payload, &evt.CreatedAt); err != nil {
			return nil, err
		}
		evt.Kind = dispatch.MoveKind(kind)
		evt.Payload = payload
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (p *Postgres) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fleet_events`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
