package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"taxigrid/internal/config"
	"taxigrid/internal/dispatch"
	"taxigrid/internal/geom"
	"taxigrid/internal/logger"
	"taxigrid/internal/storage"
)

var (
	configPath string
	statePath  string
	backend    string
	compact    bool
)

var rootCmd = &cobra.Command{
	Use:   "taxigrid",
	Short: "Find and move taxis on a grid road network",
	Long: `taxigrid answers nearest-taxi queries against the fleet held in the
configured store and moves taxis for bookings and rides.

Example usage:
  taxigrid route 10 20              # Rank the nearest taxis for a pickup
  taxigrid book 10 20 12 25         # Move the taxi at (12,25) to (10,20)
  taxigrid ride 40 40 10 20         # Move the taxi at (10,20) to a dropoff
  taxigrid fleet                    # Print every taxi position
  taxigrid route -- -5 3            # Negative coordinates follow --`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printJSON(map[string]string{"error": err.Error()})
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $TAXIGRID_CONFIG or taxigrid.yaml)")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "override the fleet state file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "override the store backend (file, sqlite, postgres, redis)")
	rootCmd.PersistentFlags().BoolVar(&compact, "compact", false, "print JSON on one line")
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		os.Setenv("TAXIGRID_CONFIG", configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if statePath != "" {
		cfg.Store.StatePath = statePath
	}
	if backend != "" {
		cfg.Store.Backend = backend
	}
	return cfg, cfg.Validate()
}

// openStore loads the fleet from the configured backend. The returned
// function releases the backend.
func openStore(ctx context.Context) (*dispatch.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := logger.Setup()
	b := storage.Open(ctx, cfg.Store, cfg.IdempotencyTTL, log)

	opts := []dispatch.Option{dispatch.WithLogger(log)}
	if b.Events != nil {
		opts = append(opts, dispatch.WithEventLogger(b.Events))
	}
	store := dispatch.NewStore(cfg.Dispatch, b.Positions, opts...)

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Load(loadCtx); err != nil {
		b.Close()
		return nil, nil, fmt.Errorf("load fleet: %w", err)
	}
	return store, b.Close, nil
}

func parsePoints(args []string) ([]geom.Point, error) {
	pts := make([]geom.Point, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		x, err := parseCoord(args[i])
		if err != nil {
			return nil, err
		}
		y, err := parseCoord(args[i+1])
		if err != nil {
			return nil, err
		}
		pts = append(pts, geom.Pt(x, y))
	}
	return pts, nil
}

// parseCoord accepts integers and truncates decimals toward zero.
func parseCoord(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	return int(f), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	if !compact {
		enc.SetIndent("", "  ")
	}
	enc.Encode(v)
}
