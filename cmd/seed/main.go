package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"taxigrid/internal/config"
	"taxigrid/internal/dispatch"
	"taxigrid/internal/logger"
	"taxigrid/internal/storage"
)

// Seed script: writes a generated fleet to the configured store, replacing
// whatever is there.
func main() {
	cfg, err := config.Load()
	log := logger.Setup()
	if err != nil {
		log.Error("config_invalid", "err", err)
		os.Exit(1)
	}

	size := flag.Int("size", cfg.Dispatch.Fleet.Size, "number of taxis")
	span := flag.Int("span", cfg.Dispatch.Fleet.Span, "taxis are placed in [0, span) on each axis")
	seed := flag.Int64("seed", cfg.Dispatch.Fleet.Seed, "random seed")
	flag.Parse()
	if *size <= 0 || *span <= 0 {
		log.Error("seed_invalid", "size", *size, "span", *span)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b := storage.Open(ctx, cfg.Store, cfg.IdempotencyTTL, log)
	defer b.Close()

	fleet := dispatch.GenerateFleet(dispatch.FleetConfig{Size: *size, Span: *span, Seed: *seed})
	if err := b.Positions.Save(ctx, fleet); err != nil {
		log.Error("seed_failed", "backend", b.Name, "err", err)
		os.Exit(1)
	}
	log.Info("fleet_seeded", "backend", b.Name, "taxis", len(fleet), "seed", *seed)
	for _, p := range fleet {
		fmt.Println(p.X, p.Y)
	}
}
