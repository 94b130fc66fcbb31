package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"taxigrid/internal/api"
	"taxigrid/internal/config"
	"taxigrid/internal/dispatch"
	"taxigrid/internal/logger"
	"taxigrid/internal/storage"
)

func main() {
	// config.Load reads .env first so LOG_LEVEL and LOG_FORMAT can live there.
	cfg, err := config.Load()
	log := logger.Setup()
	if err != nil {
		log.Error("config_invalid", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := storage.Open(ctx, cfg.Store, cfg.IdempotencyTTL, log)
	defer backend.Close()

	hub := dispatch.NewHub()
	go hub.Run(ctx)

	store := initStore(ctx, cfg, backend, hub)
	go pruneIdempotency(ctx, store, backend)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	api.AttachRoutes(r, store, hub)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown_failed", "err", err)
		}
	}()

	height, size := store.Stats()
	log.Info("server_listening", "addr", cfg.HTTPAddr, "backend", backend.Name, "taxis", size, "tree_height", height)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server_error", "err", err)
		os.Exit(1)
	}
	log.Info("server_stopped")
}

func initStore(ctx context.Context, cfg config.Config, backend *storage.Backend, hub *dispatch.Hub) *dispatch.Store {
	log := logger.L()
	opts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithPublisher(hub),
		dispatch.WithIdempotencyTTL(cfg.IdempotencyTTL),
	}
	if backend.Events != nil {
		opts = append(opts, dispatch.WithEventLogger(backend.Events))
	}
	if backend.Idempotency != nil {
		opts = append(opts, dispatch.WithIdempotencyStore(backend.Idempotency))
	}

	store := dispatch.NewStore(cfg.Dispatch, backend.Positions, opts...)
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Load(loadCtx); err != nil {
		log.Error("fleet_load_failed", "backend", backend.Name, "err", err)
		os.Exit(1)
	}
	return store
}

// pruneIdempotency sweeps expired Idempotency-Key entries from memory and,
// on postgres, from the idempotency_keys table.
func pruneIdempotency(ctx context.Context, store *dispatch.Store, backend *storage.Backend) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := store.PruneIdempotency()
			if pg, ok := backend.Idempotency.(*storage.IdempotencyStore); ok {
				pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				removed, err := pg.Prune(pctx)
				cancel()
				if err != nil {
					logger.L().Warn("idempotency_prune_failed", "err", err)
				}
				n += int(removed)
			}
			if n > 0 {
				logger.L().Debug("idempotency_pruned", "removed", n)
			}
		}
	}
}
