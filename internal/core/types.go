// Package core provides the business logic for list ingestion.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"
)

// RecordKind selects which record shape an upload produces.
type RecordKind string

const (
	KindTask    RecordKind = "tasks"
	KindContact RecordKind = "contacts"
)

// Valid reports whether k is a known record kind.
func (k RecordKind) Valid() bool {
	return k == KindTask || k == KindContact
}

// Task is a validated record destined for worker assignment.
type Task struct {
	FirstName string `json:"firstName"`
	Phone     string `json:"phone"`
	Notes     string `json:"notes"`
}

// Contact is a validated record persisted independently of any worker.
type Contact struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Notes  string `json:"notes"`
	Status string `json:"status"`
}

// Contact statuses.
const (
	ContactActive   = "active"
	ContactInactive = "inactive"
)

// WorkerID is an opaque reference to an existing worker (agent).
type WorkerID string

// Worker is a worker as returned by the pool lookup.
type Worker struct {
	ID        WorkerID  `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// UploadStatus is the lifecycle state of an upload attempt.
type UploadStatus string

const (
	StatusPending    UploadStatus = "pending"
	StatusProcessing UploadStatus = "processing"
	StatusCompleted  UploadStatus = "completed"
	StatusFailed     UploadStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s UploadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal step.
func (s UploadStatus) CanTransition(next UploadStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// UploadAttempt is the durable, status-tracked record of one ingestion run.
type UploadAttempt struct {
	ID             string       `json:"id"`
	Kind           RecordKind   `json:"kind"`
	SourceFileName string       `json:"sourceFileName"`
	Size           int64        `json:"size"`
	Status         UploadStatus `json:"status"`
	Error          string       `json:"error,omitempty"`
	OwnerID        string       `json:"ownerId"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// PersistedList is the durable form of one distribution group.
type PersistedList struct {
	ID             string    `json:"id"`
	WorkerID       WorkerID  `json:"workerId"`
	Tasks          []Task    `json:"tasks"`
	SourceFileName string    `json:"sourceFileName"`
	UploadID       string    `json:"uploadId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PersistedContact is a normalized contact plus ownership and timestamps.
type PersistedContact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Notes     string    `json:"notes"`
	Status    string    `json:"status"`
	OwnerID   string    `json:"ownerId"`
	UploadID  string    `json:"uploadId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkerPool returns the current workers in pool order.
type WorkerPool interface {
	ListWorkers(ctx context.Context) ([]Worker, error)
}

// ListStore persists distribution groups.
type ListStore interface {
	InsertList(ctx context.Context, list PersistedList) error
}

// ContactStore persists contact batches.
type ContactStore interface {
	InsertContacts(ctx context.Context, contacts []PersistedContact) error
}

// AttemptStore persists upload attempts.
//
// UpdateAttemptStatus must only apply when the stored status equals from,
// and returns ErrAttemptConflict otherwise.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, attempt UploadAttempt) error
	UpdateAttemptStatus(ctx context.Context, id string, from, to UploadStatus, errMsg string) error
	GetAttempt(ctx context.Context, id string) (UploadAttempt, error)
	ListAttempts(ctx context.Context, ownerID string) ([]UploadAttempt, error)
	FailStaleAttempts(ctx context.Context, olderThan time.Time, reason string) (int64, error)
}

// ListReader reads back persisted lists.
type ListReader interface {
	ListLists(ctx context.Context) ([]PersistedList, error)
	ListListsByWorker(ctx context.Context, workerID WorkerID) ([]PersistedList, error)
}

// RecordStores are the write-side stores the Writer needs.
type RecordStores interface {
	ListStore
	ContactStore
}

// Transactor runs fn against stores bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(RecordStores) error) error
}

// Store is the full persistence surface used by the engine and transports.
type Store interface {
	WorkerPool
	RecordStores
	AttemptStore
	ListReader
}

// IngestRequest describes one file handed to the engine.
type IngestRequest struct {
	Kind     RecordKind
	FileName string
	Size     int64
	Format   Format
	Data     []byte
	OwnerID  string
}

// IngestResult summarises a successful ingestion.
type IngestResult struct {
	UploadID         string        `json:"uploadId"`
	Kind             RecordKind    `json:"kind"`
	RecordsProcessed int           `json:"recordsProcessed"`
	RowsDropped      int           `json:"rowsDropped"`
	WorkersAssigned  int           `json:"workersAssigned,omitempty"`
	ListsCreated     int           `json:"listsCreated,omitempty"`
	Duration         time.Duration `json:"-"`
}
