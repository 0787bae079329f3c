package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/listingest/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_WorkersKeepOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var want []core.WorkerID
	for _, name := range []string{"a", "b", "c"} {
		w, err := s.AddWorker(ctx, name)
		require.NoError(t, err)
		want = append(want, w.ID)
	}

	workers, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	var got []core.WorkerID
	for _, w := range workers {
		got = append(got, w.ID)
	}
	assert.Equal(t, want, got)
}

func TestStore_AttemptTransitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tracker := core.NewTracker(s)
	a, err := tracker.Begin(ctx, core.KindContact, "c.csv", 12, "owner-1")
	require.NoError(t, err)
	require.NoError(t, a.Processing(ctx))

	err = s.UpdateAttemptStatus(ctx, a.ID(), core.StatusPending, core.StatusFailed, "x")
	assert.ErrorIs(t, err, core.ErrAttemptConflict)

	_, err = s.GetAttempt(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, a.Fail(ctx, errors.New("bad file")))
	got, err := s.GetAttempt(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "bad file", got.Error)
	assert.Equal(t, int64(12), got.Size)

	other, err := tracker.Begin(ctx, core.KindTask, "l.csv", 1, "owner-2")
	require.NoError(t, err)

	mine, err := s.ListAttempts(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	all, err := s.ListAttempts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, other.ID(), all[0].ID)
}

func TestStore_FailStaleAttempts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := core.NewTracker(s).Begin(ctx, core.KindTask, "l.csv", 1, "o")
	require.NoError(t, err)

	n, err := s.FailStaleAttempts(ctx, time.Now().Add(-time.Hour), core.AbandonedReason)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = s.FailStaleAttempts(ctx, time.Now().Add(time.Hour), core.AbandonedReason)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetAttempt(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, core.AbandonedReason, got.Error)
}

func TestStore_EngineRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		_, err := s.AddWorker(ctx, name)
		require.NoError(t, err)
	}

	engine := core.NewEngine(s, core.EngineConfig{
		Decode:         core.DecodeOptions{StrictWidth: true},
		TargetPoolSize: 5,
		AtomicPersist:  true,
	})
	data := []byte("firstName,phone\nA,5550000001\nB,5550000002\nC,5550000003\n")
	res, err := engine.Ingest(ctx, core.IngestRequest{
		Kind: core.KindTask, FileName: "l.csv", Format: core.FormatCSV, Data: data, OwnerID: "o",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ListsCreated)

	lists, err := s.ListLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Len(t, lists[0].Tasks, 2)
	assert.Equal(t, "+15550000003", lists[1].Tasks[0].Phone)

	byWorker, err := s.ListListsByWorker(ctx, lists[1].WorkerID)
	require.NoError(t, err)
	assert.Len(t, byWorker, 1)
}

func TestStore_InTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx core.RecordStores) error {
		now := time.Now()
		require.NoError(t, tx.InsertContacts(ctx, []core.PersistedContact{{
			ID: uuid.New().String(), Name: "n", Email: "e@x.io", Phone: "+15550000000",
			Status: core.ContactActive, OwnerID: "o", UploadID: "u", CreatedAt: now, UpdatedAt: now,
		}}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&count))
	assert.Zero(t, count)
}
