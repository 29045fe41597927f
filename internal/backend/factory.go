// Package backend opens the configured ledger store.
package backend

import (
	"context"
	"fmt"

	"carteira/internal/ledger"
	"carteira/internal/ledger/memory"
	"carteira/internal/log"
	"carteira/internal/storage"
	"carteira/internal/storage/postgres"
)

// Pinger is implemented by stores backed by a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Result is an opened store. Ping is nil for stores without a connection.
type Result struct {
	Store ledger.Store
	Ping  func(ctx context.Context) error
}

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Open creates the store selected by cfg and runs its migrations.
func (f *Factory) Open(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store ledger.Store
		err   error
	)
	switch cfg.Type {
	case SQLiteBackend:
		store, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Using SQLite ledger store", "path", cfg.SQLiteDBPath)
	case PostgresBackend:
		store, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		f.logger.InfoContext(ctx, "Using PostgreSQL ledger store")
	case MemoryBackend:
		store = memory.New()
		f.logger.WarnContext(ctx, "Using in-memory ledger store, data is lost on restart")
	}

	res := &Result{Store: store}
	if p, ok := store.(Pinger); ok {
		res.Ping = p.Ping
	}
	return res, nil
}
