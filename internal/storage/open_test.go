package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taxigrid/internal/config"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := config.StoreConfig{
		StatePath:  filepath.Join(dir, "state.txt"),
		SQLitePath: filepath.Join(dir, "fleet.db"),
	}

	tests := []struct {
		name       string
		backend    string
		mutate     func(*config.StoreConfig)
		want       string
		wantEvents bool
	}{
		{"file", config.BackendFile, nil, config.BackendFile, false},
		{"sqlite", config.BackendSQLite, nil, config.BackendSQLite, true},
		{"postgres without url falls back", config.BackendPostgres, nil, config.BackendFile, false},
		{"redis bad url falls back", config.BackendRedis, func(c *config.StoreConfig) { c.RedisURL = "not-a-url" }, config.BackendFile, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Backend = tt.backend
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			b := Open(context.Background(), cfg, time.Minute, log)
			defer b.Close()

			if b.Name != tt.want {
				t.Fatalf("backend %q, want %q", b.Name, tt.want)
			}
			if (b.Events != nil) != tt.wantEvents {
				t.Fatalf("events attached = %v", b.Events != nil)
			}
			if err := b.Ping(context.Background()); err != nil {
				t.Fatalf("Ping: %v", err)
			}
			if err := b.Positions.Save(context.Background(), fleet); err != nil {
				t.Fatalf("Save: %v", err)
			}
		})
	}
}

func TestOpen_LogsFilePath(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	path := filepath.Join(t.TempDir(), "state.txt")

	b := Open(context.Background(), config.StoreConfig{Backend: config.BackendFile, StatePath: path}, time.Minute, log)
	defer b.Close()

	if !strings.Contains(buf.String(), "path="+path) {
		t.Fatalf("store_opened record lacks the state path: %s", buf.String())
	}
}
