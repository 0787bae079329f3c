package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadLimiter_AcquireRelease(t *testing.T) {
	limiter := NewUploadLimiter(2, time.Second)
	ctx := context.Background()

	a, err := limiter.Acquire(ctx)
	require.NoError(t, err)
	b, err := limiter.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, UploadLimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}, limiter.Status())

	a.Release()
	a.Release() // second release is a no-op
	assert.Equal(t, 1, limiter.ActiveCount())

	b.Release()
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestUploadLimiter_BlocksWhenFull(t *testing.T) {
	limiter := NewUploadLimiter(1, 50*time.Millisecond)

	slot, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	defer slot.Release()

	start := time.Now()
	_, err = limiter.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTooManyUploads)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	assert.Nil(t, limiter.TryAcquire())
}

func TestUploadLimiter_ContextCancellation(t *testing.T) {
	limiter := NewUploadLimiter(1, time.Minute)
	slot := limiter.TryAcquire()
	require.NotNil(t, slot)
	defer slot.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUploadLimiter_UnblocksWaiter(t *testing.T) {
	limiter := NewUploadLimiter(1, time.Second)
	slot := limiter.TryAcquire()
	require.NotNil(t, slot)

	done := make(chan error, 1)
	go func() {
		s, err := limiter.Acquire(context.Background())
		if err == nil {
			s.Release()
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	slot.Release()
	require.NoError(t, <-done)
}

func TestUploadLimiter_WaitForDrain(t *testing.T) {
	limiter := NewUploadLimiter(4, time.Second)

	// Idle limiter drains immediately.
	require.NoError(t, limiter.WaitForDrain(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		slot := limiter.TryAcquire()
		require.NotNil(t, slot)
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
			slot.Release()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, limiter.WaitForDrain(ctx))
	assert.Equal(t, 0, limiter.ActiveCount())
	wg.Wait()
}

func TestUploadLimiter_WaitForDrainTimeout(t *testing.T) {
	limiter := NewUploadLimiter(1, time.Second)
	slot := limiter.TryAcquire()
	require.NotNil(t, slot)
	defer slot.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.WaitForDrain(ctx), context.DeadlineExceeded)
}

func TestUploadLimiter_DefaultValues(t *testing.T) {
	limiter := NewUploadLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrentUploads, limiter.MaxConcurrent())
}
