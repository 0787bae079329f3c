package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/store/memory"
)

func TestTracker_HappyPath(t *testing.T) {
	store := memory.New()
	tracker := core.NewTracker(store)
	ctx := context.Background()

	a, err := tracker.Begin(ctx, core.KindTask, "list.csv", 42, "admin")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, attemptOf(t, store, a.ID()).Status)

	require.NoError(t, a.Processing(ctx))
	assert.Equal(t, core.StatusProcessing, attemptOf(t, store, a.ID()).Status)

	require.NoError(t, a.Complete(ctx))
	got := attemptOf(t, store, a.ID())
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, "list.csv", got.SourceFileName)
}

func TestTracker_TerminalStatesAreFinal(t *testing.T) {
	store := memory.New()
	tracker := core.NewTracker(store)
	ctx := context.Background()

	a, err := tracker.Begin(ctx, core.KindContact, "c.csv", 1, "o")
	require.NoError(t, err)
	require.NoError(t, a.Fail(ctx, errors.New("boom")))

	assert.Error(t, a.Processing(ctx))
	assert.Error(t, a.Complete(ctx))
	assert.Error(t, a.Fail(ctx, errors.New("again")))

	got := attemptOf(t, store, a.ID())
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestTracker_PendingCannotComplete(t *testing.T) {
	store := memory.New()
	a, err := core.NewTracker(store).Begin(context.Background(), core.KindTask, "l.csv", 1, "o")
	require.NoError(t, err)

	assert.Error(t, a.Complete(context.Background()))
	assert.Equal(t, core.StatusPending, attemptOf(t, store, a.ID()).Status)
}

func TestTracker_ConflictWithSweeper(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	a, err := core.NewTracker(store).Begin(ctx, core.KindTask, "l.csv", 1, "o")
	require.NoError(t, err)
	require.NoError(t, a.Processing(ctx))

	n, err := store.FailStaleAttempts(ctx, time.Now().Add(time.Hour), core.AbandonedReason)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	err = a.Complete(ctx)
	assert.ErrorIs(t, err, core.ErrAttemptConflict)
	assert.Equal(t, core.StatusFailed, attemptOf(t, store, a.ID()).Status)
}

func TestSweeper_SweepOnce(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	tracker := core.NewTracker(store)

	stuck, err := tracker.Begin(ctx, core.KindTask, "stuck.csv", 1, "o")
	require.NoError(t, err)
	done, err := tracker.Begin(ctx, core.KindTask, "done.csv", 1, "o")
	require.NoError(t, err)
	require.NoError(t, done.Processing(ctx))
	require.NoError(t, done.Complete(ctx))

	fresh := core.NewSweeper(store, core.SweepConfig{Interval: time.Hour, MaxAge: time.Hour})
	assert.EqualValues(t, 0, fresh.SweepOnce(ctx))
	assert.Equal(t, core.StatusPending, attemptOf(t, store, stuck.ID()).Status)

	time.Sleep(5 * time.Millisecond)
	eager := core.NewSweeper(store, core.SweepConfig{Interval: time.Hour, MaxAge: time.Millisecond})
	assert.EqualValues(t, 1, eager.SweepOnce(ctx))

	got := attemptOf(t, store, stuck.ID())
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, core.AbandonedReason, got.Error)
	assert.Equal(t, core.StatusCompleted, attemptOf(t, store, done.ID()).Status)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	store := memory.New()
	sweeper := core.NewSweeper(store, core.SweepConfig{Interval: 5 * time.Millisecond, MaxAge: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- sweeper.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-errc)
}
