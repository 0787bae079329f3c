package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/listingest/internal/core"
)

// openTestStore connects to TEST_DATABASE_URL and skips when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, PoolConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, `TRUNCATE contacts, lists, upload_attempts, workers`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newAttempt(owner string) core.UploadAttempt {
	now := time.Now().UTC()
	return core.UploadAttempt{
		ID:             uuid.New().String(),
		Kind:           core.KindTask,
		SourceFileName: "list.csv",
		Size:           10,
		Status:         core.StatusPending,
		OwnerID:        owner,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestStore_AttemptLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := newAttempt("owner-1")
	require.NoError(t, s.CreateAttempt(ctx, a))
	require.NoError(t, s.UpdateAttemptStatus(ctx, a.ID, core.StatusPending, core.StatusProcessing, ""))

	err := s.UpdateAttemptStatus(ctx, a.ID, core.StatusPending, core.StatusFailed, "late")
	assert.ErrorIs(t, err, core.ErrAttemptConflict)

	err = s.UpdateAttemptStatus(ctx, "missing", core.StatusPending, core.StatusFailed, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := s.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, got.Status)

	attempts, err := s.ListAttempts(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	n, err := s.FailStaleAttempts(ctx, time.Now().Add(time.Hour), core.AbandonedReason)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStore_ListsAndContacts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	w, err := s.AddWorker(ctx, "agent")
	require.NoError(t, err)
	workers, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)

	a := newAttempt("owner-1")
	require.NoError(t, s.CreateAttempt(ctx, a))

	list := core.PersistedList{
		ID:             uuid.New().String(),
		WorkerID:       w.ID,
		Tasks:          []core.Task{{FirstName: "Jane", Phone: "+15551234567"}},
		SourceFileName: "list.csv",
		UploadID:       a.ID,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.InsertList(ctx, list))

	lists, err := s.ListListsByWorker(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, list.Tasks, lists[0].Tasks)

	now := time.Now().UTC()
	contacts := []core.PersistedContact{
		{ID: uuid.New().String(), Name: "Ann", Email: "a@b.co", Phone: "+15551234567", Status: core.ContactActive, OwnerID: "owner-1", UploadID: a.ID, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), Name: "Ben", Email: "b@b.co", Phone: "+15551234568", Status: core.ContactActive, OwnerID: "owner-1", UploadID: a.ID, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, s.InsertContacts(ctx, contacts))
}

func TestStore_InTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := newAttempt("owner-1")
	require.NoError(t, s.CreateAttempt(ctx, a))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx core.RecordStores) error {
		if err := tx.InsertList(ctx, core.PersistedList{
			ID: uuid.New().String(), WorkerID: "w", UploadID: a.ID, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	lists, err := s.ListLists(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists)
}
