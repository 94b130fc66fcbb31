package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"taxigrid/internal/dispatch"
	"taxigrid/internal/geom"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "taxigrid.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_Positions(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()

	got, err := db.Load(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty db: %v, %v", got, err)
	}
	if err := db.Save(ctx, fleet); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := db.Save(ctx, fleet[1:]); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(got, fleet[1:]) {
		t.Fatalf("Load = %v, want %v", got, fleet[1:])
	}
}

func TestSQLite_Events(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		payload, _ := json.Marshal(map[string]int{"n": i})
		err := db.AppendEvent(ctx, dispatch.FleetEvent{
			Kind:      dispatch.MoveBooking,
			BookingID: "b" + string(rune('0'+i)),
			From:      geom.Pt(i, i),
			To:        geom.Pt(i+1, i),
			Hops:      1,
			Payload:   payload,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	n, err := db.CountEvents(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CountEvents = %d, %v", n, err)
	}
	evts, err := db.ListEvents(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(evts) != 2 || evts[0].BookingID != "b2" || evts[1].BookingID != "b1" {
		t.Fatalf("expected newest first, got %+v", evts)
	}
	if evts[0].To != geom.Pt(3, 2) || !evts[0].CreatedAt.Equal(base.Add(2*time.Second)) {
		t.Fatalf("event fields lost: %+v", evts[0])
	}
	if string(evts[0].Payload) != `{"n":2}` {
		t.Fatalf("payload %s", evts[0].Payload)
	}

	rest, _ := db.ListEvents(ctx, 10, 2)
	if len(rest) != 1 || rest[0].BookingID != "b0" {
		t.Fatalf("offset page %+v", rest)
	}
}
