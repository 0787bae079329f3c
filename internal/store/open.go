// Package store selects a persistence backend from configuration.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/listingest/internal/config"
	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/store/memory"
	"github.com/JonMunkholm/listingest/internal/store/postgres"
	"github.com/JonMunkholm/listingest/internal/store/sqlite"
)

// Backend is a store the binaries can open and close.
type Backend interface {
	core.Store
	core.Transactor
	AddWorker(ctx context.Context, name string) (core.Worker, error)
	Close() error
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.PoolConfig{
			URL:             cfg.URL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.DriverMemory:
		return memoryBackend{memory.New()}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

type memoryBackend struct {
	*memory.Store
}

func (memoryBackend) Close() error { return nil }
