// Package postgres implements core.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/listingest/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	q    *queries
}

var (
	_ core.Store      = (*Store)(nil)
	_ core.Transactor = (*Store)(nil)
)

// Open connects, pings and applies the schema.
func Open(ctx context.Context, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool without touching the schema.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: &queries{db: pool}}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx runs fn inside one transaction; any error rolls back every write.
func (s *Store) InTx(ctx context.Context, fn func(core.RecordStores) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&queries{db: tx})
	})
}

func (s *Store) AddWorker(ctx context.Context, name string) (core.Worker, error) {
	return s.q.AddWorker(ctx, name)
}

func (s *Store) ListWorkers(ctx context.Context) ([]core.Worker, error) {
	return s.q.ListWorkers(ctx)
}

func (s *Store) InsertList(ctx context.Context, list core.PersistedList) error {
	return s.q.InsertList(ctx, list)
}

func (s *Store) InsertContacts(ctx context.Context, contacts []core.PersistedContact) error {
	return s.q.InsertContacts(ctx, contacts)
}

func (s *Store) ListLists(ctx context.Context) ([]core.PersistedList, error) {
	return s.q.ListLists(ctx)
}

func (s *Store) ListListsByWorker(ctx context.Context, workerID core.WorkerID) ([]core.PersistedList, error) {
	return s.q.ListListsByWorker(ctx, workerID)
}

func (s *Store) CreateAttempt(ctx context.Context, a core.UploadAttempt) error {
	return s.q.CreateAttempt(ctx, a)
}

func (s *Store) UpdateAttemptStatus(ctx context.Context, id string, from, to core.UploadStatus, errMsg string) error {
	return s.q.UpdateAttemptStatus(ctx, id, from, to, errMsg)
}

func (s *Store) GetAttempt(ctx context.Context, id string) (core.UploadAttempt, error) {
	return s.q.GetAttempt(ctx, id)
}

func (s *Store) ListAttempts(ctx context.Context, ownerID string) ([]core.UploadAttempt, error) {
	return s.q.ListAttempts(ctx, ownerID)
}

func (s *Store) FailStaleAttempts(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	return s.q.FailStaleAttempts(ctx, olderThan, reason)
}
