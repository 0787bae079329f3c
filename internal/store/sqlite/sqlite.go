// Package sqlite implements core.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo). It backs the CLI and single-node servers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/listingest/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS workers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS upload_attempts (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	source_file_name TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	owner_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_upload_attempts_owner ON upload_attempts(owner_id, created_at);
CREATE TABLE IF NOT EXISTS lists (
	id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	tasks_json TEXT NOT NULL,
	source_file_name TEXT NOT NULL,
	upload_id TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lists_worker ON lists(worker_id);
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	upload_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// timeFormat is fixed width so stored timestamps compare lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeFormat, s) }

// Store is a core.Store backed by a single SQLite file.
type Store struct {
	db   *sql.DB
	path string
	q    *queries
}

var (
	_ core.Store      = (*Store)(nil)
	_ core.Transactor = (*Store)(nil)
)

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db, path: path, q: &queries{db: db}}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database file is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// InTx runs fn inside one transaction.
func (s *Store) InTx(ctx context.Context, fn func(core.RecordStores) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
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
	return s.InTx(ctx, func(rs core.RecordStores) error {
		return rs.InsertContacts(ctx, contacts)
	})
}

func (s *Store) ListLists(ctx context.Context) ([]core.PersistedList, error) {
	return s.q.listLists(ctx, `ORDER BY created_at, rowid`)
}

func (s *Store) ListListsByWorker(ctx context.Context, workerID core.WorkerID) ([]core.PersistedList, error) {
	return s.q.listLists(ctx, `WHERE worker_id = ? ORDER BY created_at, rowid`, string(workerID))
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

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func (q *queries) AddWorker(ctx context.Context, name string) (core.Worker, error) {
	w := core.Worker{ID: core.WorkerID(uuid.New().String()), Name: name, CreatedAt: time.Now().UTC()}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO workers (id, name, created_at) VALUES (?, ?, ?)`,
		string(w.ID), w.Name, formatTime(w.CreatedAt))
	if err != nil {
		return core.Worker{}, fmt.Errorf("insert worker: %w", err)
	}
	return w, nil
}

func (q *queries) ListWorkers(ctx context.Context) ([]core.Worker, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, created_at FROM workers ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []core.Worker
	for rows.Next() {
		var (
			w           core.Worker
			id, created string
		)
		if err := rows.Scan(&id, &w.Name, &created); err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		w.ID = core.WorkerID(id)
		if w.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse worker created_at: %w", err)
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (q *queries) InsertList(ctx context.Context, list core.PersistedList) error {
	tasks, err := json.Marshal(list.Tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO lists (id, worker_id, tasks_json, source_file_name, upload_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		list.ID, string(list.WorkerID), string(tasks), list.SourceFileName, list.UploadID, formatTime(list.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}
	return nil
}

func (q *queries) InsertContacts(ctx context.Context, contacts []core.PersistedContact) error {
	for _, c := range contacts {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO contacts (id, name, email, phone, notes, status, owner_id, upload_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Email, c.Phone, c.Notes, c.Status, c.OwnerID, c.UploadID,
			formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert contact: %w", err)
		}
	}
	return nil
}

func (q *queries) listLists(ctx context.Context, where string, args ...any) ([]core.PersistedList, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, worker_id, tasks_json, source_file_name, upload_id, created_at FROM lists `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []core.PersistedList
	for rows.Next() {
		var (
			l                        core.PersistedList
			workerID, tasks, created string
		)
		if err := rows.Scan(&l.ID, &workerID, &tasks, &l.SourceFileName, &l.UploadID, &created); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		l.WorkerID = core.WorkerID(workerID)
		if err := json.Unmarshal([]byte(tasks), &l.Tasks); err != nil {
			return nil, fmt.Errorf("decode tasks of list %s: %w", l.ID, err)
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse list created_at: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (q *queries) CreateAttempt(ctx context.Context, a core.UploadAttempt) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO upload_attempts (id, kind, source_file_name, size, status, error, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Kind), a.SourceFileName, a.Size, string(a.Status), a.Error, a.OwnerID,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert upload attempt: %w", err)
	}
	return nil
}

func (q *queries) UpdateAttemptStatus(ctx context.Context, id string, from, to core.UploadStatus, errMsg string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE upload_attempts SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), errMsg, formatTime(time.Now()), id, string(from))
	if err != nil {
		return fmt.Errorf("update upload attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}
	if _, err := q.GetAttempt(ctx, id); err != nil {
		return err
	}
	return core.ErrAttemptConflict
}

const attemptColumns = `id, kind, source_file_name, size, status, error, owner_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (core.UploadAttempt, error) {
	var (
		a                              core.UploadAttempt
		kind, status, created, updated string
	)
	if err := row.Scan(&a.ID, &kind, &a.SourceFileName, &a.Size, &status, &a.Error, &a.OwnerID, &created, &updated); err != nil {
		return a, err
	}
	a.Kind = core.RecordKind(kind)
	a.Status = core.UploadStatus(status)
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return a, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return a, fmt.Errorf("parse updated_at: %w", err)
	}
	return a, nil
}

func (q *queries) GetAttempt(ctx context.Context, id string) (core.UploadAttempt, error) {
	a, err := scanAttempt(q.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM upload_attempts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.UploadAttempt{}, core.ErrNotFound
	}
	if err != nil {
		return core.UploadAttempt{}, fmt.Errorf("get upload attempt: %w", err)
	}
	return a, nil
}

func (q *queries) ListAttempts(ctx context.Context, ownerID string) ([]core.UploadAttempt, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM upload_attempts
		 WHERE ? = '' OR owner_id = ?
		 ORDER BY created_at DESC, rowid DESC`, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list upload attempts: %w", err)
	}
	defer rows.Close()

	var attempts []core.UploadAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (q *queries) FailStaleAttempts(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE upload_attempts SET status = 'failed', error = ?, updated_at = ?
		 WHERE status IN ('pending', 'processing') AND updated_at < ?`,
		reason, formatTime(time.Now()), formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("fail stale upload attempts: %w", err)
	}
	return res.RowsAffected()
}
