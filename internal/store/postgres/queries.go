package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/listingest/internal/core"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same queries
// run inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type queries struct {
	db DBTX
}

func (q *queries) AddWorker(ctx context.Context, name string) (core.Worker, error) {
	w := core.Worker{ID: core.WorkerID(uuid.New().String()), Name: name, CreatedAt: time.Now().UTC()}
	_, err := q.db.Exec(ctx,
		`INSERT INTO workers (id, name, created_at) VALUES ($1, $2, $3)`,
		string(w.ID), w.Name, w.CreatedAt)
	if err != nil {
		return core.Worker{}, fmt.Errorf("insert worker: %w", err)
	}
	return w, nil
}

func (q *queries) ListWorkers(ctx context.Context) ([]core.Worker, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, created_at FROM workers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Worker, error) {
		var w core.Worker
		var id string
		err := row.Scan(&id, &w.Name, &w.CreatedAt)
		w.ID = core.WorkerID(id)
		return w, err
	})
}

func (q *queries) InsertList(ctx context.Context, list core.PersistedList) error {
	tasks, err := json.Marshal(list.Tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	_, err = q.db.Exec(ctx,
		`INSERT INTO lists (id, worker_id, tasks, source_file_name, upload_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		list.ID, string(list.WorkerID), tasks, list.SourceFileName, list.UploadID, list.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}
	return nil
}

// InsertContacts loads the batch with the COPY protocol.
func (q *queries) InsertContacts(ctx context.Context, contacts []core.PersistedContact) error {
	columns := []string{"id", "name", "email", "phone", "notes", "status", "owner_id", "upload_id", "created_at", "updated_at"}
	n, err := q.db.CopyFrom(ctx, pgx.Identifier{"contacts"}, columns,
		pgx.CopyFromSlice(len(contacts), func(i int) ([]any, error) {
			c := contacts[i]
			return []any{c.ID, c.Name, c.Email, c.Phone, c.Notes, c.Status, c.OwnerID, c.UploadID, c.CreatedAt, c.UpdatedAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy contacts: %w", err)
	}
	if int(n) != len(contacts) {
		return fmt.Errorf("copy contacts: wrote %d of %d rows", n, len(contacts))
	}
	return nil
}

const listColumns = `id, worker_id, tasks, source_file_name, upload_id, created_at`

func scanList(row pgx.CollectableRow) (core.PersistedList, error) {
	var (
		l        core.PersistedList
		workerID string
		tasks    []byte
	)
	if err := row.Scan(&l.ID, &workerID, &tasks, &l.SourceFileName, &l.UploadID, &l.CreatedAt); err != nil {
		return l, err
	}
	l.WorkerID = core.WorkerID(workerID)
	if err := json.Unmarshal(tasks, &l.Tasks); err != nil {
		return l, fmt.Errorf("decode tasks of list %s: %w", l.ID, err)
	}
	return l, nil
}

func (q *queries) ListLists(ctx context.Context) ([]core.PersistedList, error) {
	rows, err := q.db.Query(ctx, `SELECT `+listColumns+` FROM lists ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	return pgx.CollectRows(rows, scanList)
}

func (q *queries) ListListsByWorker(ctx context.Context, workerID core.WorkerID) ([]core.PersistedList, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+listColumns+` FROM lists WHERE worker_id = $1 ORDER BY created_at, id`, string(workerID))
	if err != nil {
		return nil, fmt.Errorf("list lists by worker: %w", err)
	}
	return pgx.CollectRows(rows, scanList)
}

func (q *queries) CreateAttempt(ctx context.Context, a core.UploadAttempt) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO upload_attempts (id, kind, source_file_name, size, status, error, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, string(a.Kind), a.SourceFileName, a.Size, string(a.Status), a.Error, a.OwnerID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert upload attempt: %w", err)
	}
	return nil
}

// UpdateAttemptStatus applies only when the row is still in status from.
func (q *queries) UpdateAttemptStatus(ctx context.Context, id string, from, to core.UploadStatus, errMsg string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE upload_attempts SET status = $3, error = $4, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), errMsg)
	if err != nil {
		return fmt.Errorf("update upload attempt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := q.GetAttempt(ctx, id); err != nil {
		return err
	}
	return core.ErrAttemptConflict
}

const attemptColumns = `id, kind, source_file_name, size, status, error, owner_id, created_at, updated_at`

func scanAttempt(row pgx.Row) (core.UploadAttempt, error) {
	var (
		a            core.UploadAttempt
		kind, status string
	)
	err := row.Scan(&a.ID, &kind, &a.SourceFileName, &a.Size, &status, &a.Error, &a.OwnerID, &a.CreatedAt, &a.UpdatedAt)
	a.Kind = core.RecordKind(kind)
	a.Status = core.UploadStatus(status)
	return a, err
}

func (q *queries) GetAttempt(ctx context.Context, id string) (core.UploadAttempt, error) {
	a, err := scanAttempt(q.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM upload_attempts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.UploadAttempt{}, core.ErrNotFound
	}
	if err != nil {
		return core.UploadAttempt{}, fmt.Errorf("get upload attempt: %w", err)
	}
	return a, nil
}

func (q *queries) ListAttempts(ctx context.Context, ownerID string) ([]core.UploadAttempt, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM upload_attempts
		 WHERE $1 = '' OR owner_id = $1
		 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list upload attempts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.UploadAttempt, error) {
		return scanAttempt(row)
	})
}

func (q *queries) FailStaleAttempts(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE upload_attempts SET status = 'failed', error = $2, updated_at = now()
		 WHERE status IN ('pending', 'processing') AND updated_at < $1`,
		olderThan, reason)
	if err != nil {
		return 0, fmt.Errorf("fail stale upload attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
