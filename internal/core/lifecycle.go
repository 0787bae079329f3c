package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tracker records the lifecycle of upload attempts:
//
//	pending -> processing -> completed
//	   |            |
//	   +------------+-----> failed
//
// completed and failed are terminal. A failed attempt is never retried.
type Tracker struct {
	store AttemptStore
	now   func() time.Time
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store AttemptStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Attempt is a handle on one tracked upload. Its methods move the stored
// attempt through the lifecycle; illegal transitions return an error and
// leave the stored state untouched.
type Attempt struct {
	tracker *Tracker
	record  UploadAttempt
}

// Begin creates a pending attempt for a file accepted for processing.
func (t *Tracker) Begin(ctx context.Context, kind RecordKind, fileName string, size int64, ownerID string) (*Attempt, error) {
	now := t.now().UTC()
	rec := UploadAttempt{
		ID:             uuid.New().String(),
		Kind:           kind,
		SourceFileName: fileName,
		Size:           size,
		Status:         StatusPending,
		OwnerID:        ownerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := t.store.CreateAttempt(ctx, rec); err != nil {
		return nil, fmt.Errorf("create upload attempt: %w", err)
	}
	return &Attempt{tracker: t, record: rec}, nil
}

// ID returns the attempt id.
func (a *Attempt) ID() string { return a.record.ID }

// Status returns the last recorded status.
func (a *Attempt) Status() UploadStatus { return a.record.Status }

// Record returns a copy of the attempt as last written.
func (a *Attempt) Record() UploadAttempt { return a.record }

// Processing marks the start of decoding.
func (a *Attempt) Processing(ctx context.Context) error {
	return a.transition(ctx, StatusProcessing, "")
}

// Complete marks every record as persisted.
func (a *Attempt) Complete(ctx context.Context) error {
	return a.transition(ctx, StatusCompleted, "")
}

// Fail records cause as the attempt's error.
func (a *Attempt) Fail(ctx context.Context, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return a.transition(ctx, StatusFailed, msg)
}

func (a *Attempt) transition(ctx context.Context, to UploadStatus, errMsg string) error {
	from := a.record.Status
	if !from.CanTransition(to) {
		return fmt.Errorf("upload %s: illegal transition %s -> %s", a.record.ID, from, to)
	}
	if err := a.tracker.store.UpdateAttemptStatus(ctx, a.record.ID, from, to, errMsg); err != nil {
		if errors.Is(err, ErrAttemptConflict) {
			return fmt.Errorf("upload %s: %s -> %s: %w", a.record.ID, from, to, err)
		}
		return fmt.Errorf("update upload %s status: %w", a.record.ID, err)
	}
	a.record.Status = to
	a.record.Error = errMsg
	a.record.UpdatedAt = a.tracker.now().UTC()
	return nil
}
