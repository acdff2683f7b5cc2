// Package app assembles the processes from their adapters and runs
// their lifecycles.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"roadwatch/internal/config"
	"roadwatch/internal/infrastructure/storage"
	"roadwatch/internal/logging"
	"roadwatch/internal/metrics"
	"roadwatch/internal/ports"
	"roadwatch/internal/server"
	"roadwatch/internal/stream"
	"roadwatch/internal/usecase"
)

type closableStore interface {
	ports.RecordStore
	InitSchema(ctx context.Context) error
	Close() error
}

// StoreServer is the assembled store process: record store, stream
// registry, ingestion service, and HTTP listener.
type StoreServer struct {
	cfg    config.Config
	logger *slog.Logger
	store  closableStore
	http   *http.Server
}

// NewStoreServer opens the configured store backend, prepares the
// schema, and wires the HTTP surface.
func NewStoreServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*StoreServer, error) {
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}

	m := metrics.New()
	registry := stream.NewRegistry(logging.Component(logger, "stream"), m)
	ingestion := usecase.NewIngestion(usecase.IngestionDeps{
		Store:       store,
		Broadcaster: registry,
		Logger:      logging.Component(logger, "ingestion"),
		Metrics:     m,
	})
	handler := server.NewHandler(ingestion, registry, m, logging.Component(logger, "http"))

	return &StoreServer{
		cfg:    cfg,
		logger: logger,
		store:  store,
		http: &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: handler.Mux(),
		},
	}, nil
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *StoreServer) Run(ctx context.Context) error {
	defer s.store.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.logger.Info("store server listening", "addr", s.cfg.Server.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout())
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("store server stopped")
		return nil
	})

	return group.Wait()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (closableStore, error) {
	switch cfg.Driver {
	case "postgres", "":
		store, err := storage.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
