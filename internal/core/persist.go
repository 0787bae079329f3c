package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/listingest/internal/logging"
)

// WriteMeta carries the provenance stamped on every persisted record.
type WriteMeta struct {
	UploadID       string
	SourceFileName string
	OwnerID        string
	Now            time.Time
}

// Writer commits validated records to durable storage.
//
// By default commits are best-effort: lists are written one group at a time
// and a failure leaves earlier groups in place. With Atomic set and a store
// that implements Transactor, the whole upload is one transaction.
type Writer struct {
	stores RecordStores
	atomic bool
}

// NewWriter creates a Writer. atomic is ignored when stores is not a Transactor.
func NewWriter(stores RecordStores, atomic bool) *Writer {
	return &Writer{stores: stores, atomic: atomic}
}

// Atomic reports whether writes run in a single transaction.
func (w *Writer) Atomic() bool {
	_, ok := w.stores.(Transactor)
	return w.atomic && ok
}

// WriteLists persists one PersistedList per non-empty group and returns the
// number of lists committed.
func (w *Writer) WriteLists(ctx context.Context, plan DistributionPlan, meta WriteMeta) (int, error) {
	var created int
	write := func(stores RecordStores) error {
		created = 0
		for _, g := range plan.Groups {
			if len(g.Tasks) == 0 {
				continue
			}
			list := PersistedList{
				ID:             uuid.New().String(),
				WorkerID:       g.Worker,
				Tasks:          g.Tasks,
				SourceFileName: meta.SourceFileName,
				UploadID:       meta.UploadID,
				CreatedAt:      meta.Now,
			}
			if err := stores.InsertList(ctx, list); err != nil {
				return fmt.Errorf("insert list for worker %s: %w", g.Worker, err)
			}
			created++
		}
		return nil
	}

	err := w.run(ctx, write)
	if err != nil {
		if w.Atomic() {
			created = 0
		}
		logging.WithFields(ctx, "upload_id", meta.UploadID).Warn("list persistence failed",
			"lists_committed", created,
			"atomic", w.Atomic(),
			"error", err,
		)
		return created, PersistenceFailure("failed to save distributed lists", err)
	}
	return created, nil
}

// WriteContacts persists contacts as a single batch.
func (w *Writer) WriteContacts(ctx context.Context, contacts []Contact, meta WriteMeta) error {
	batch := make([]PersistedContact, len(contacts))
	for i, c := range contacts {
		batch[i] = PersistedContact{
			ID:        uuid.New().String(),
			Name:      c.Name,
			Email:     c.Email,
			Phone:     c.Phone,
			Notes:     c.Notes,
			Status:    c.Status,
			OwnerID:   meta.OwnerID,
			UploadID:  meta.UploadID,
			CreatedAt: meta.Now,
			UpdatedAt: meta.Now,
		}
	}

	err := w.run(ctx, func(stores RecordStores) error {
		return stores.InsertContacts(ctx, batch)
	})
	if err != nil {
		return PersistenceFailure("failed to save contacts", err)
	}
	return nil
}

func (w *Writer) run(ctx context.Context, fn func(RecordStores) error) error {
	if tx, ok := w.stores.(Transactor); ok && w.atomic {
		return tx.InTx(ctx, fn)
	}
	return fn(w.stores)
}
