// Package memory is an in-process core.Store used by tests and by the
// server when STORE_DRIVER=memory. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/listingest/internal/core"
)

// Store keeps workers, lists, contacts and attempts in memory.
type Store struct {
	mu       sync.Mutex
	workers  []core.Worker
	lists    []core.PersistedList
	contacts []core.PersistedContact
	attempts map[string]core.UploadAttempt

	listCalls       int
	listHook        func(call int, list core.PersistedList) error
	contactsHook    func(batch []core.PersistedContact) error
	listWorkersHook func() error
}

var (
	_ core.Store      = (*Store)(nil)
	_ core.Transactor = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{attempts: make(map[string]core.UploadAttempt)}
}

// OnInsertList installs a hook run before every InsertList. call counts
// from 1 across the life of the store. A non-nil error fails the insert.
func (s *Store) OnInsertList(hook func(call int, list core.PersistedList) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listHook = hook
}

// OnInsertContacts installs a hook run before every InsertContacts.
func (s *Store) OnInsertContacts(hook func(batch []core.PersistedContact) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contactsHook = hook
}

// OnListWorkers installs a hook that can fail the worker lookup.
func (s *Store) OnListWorkers(hook func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listWorkersHook = hook
}

// AddWorker appends a worker to the pool.
func (s *Store) AddWorker(ctx context.Context, name string) (core.Worker, error) {
	w := core.Worker{
		ID:        core.WorkerID(uuid.New().String()),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, w)
	return w, nil
}

// SetWorkers replaces the pool.
func (s *Store) SetWorkers(workers ...core.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append([]core.Worker(nil), workers...)
}

// ListWorkers returns the pool in insertion order.
func (s *Store) ListWorkers(ctx context.Context) ([]core.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listWorkersHook != nil {
		if err := s.listWorkersHook(); err != nil {
			return nil, err
		}
	}
	return append([]core.Worker(nil), s.workers...), nil
}

// InsertList stores one list.
func (s *Store) InsertList(ctx context.Context, list core.PersistedList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkList(list); err != nil {
		return err
	}
	s.lists = append(s.lists, list)
	return nil
}

// InsertContacts stores a batch of contacts.
func (s *Store) InsertContacts(ctx context.Context, batch []core.PersistedContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkContacts(batch); err != nil {
		return err
	}
	s.contacts = append(s.contacts, batch...)
	return nil
}

func (s *Store) checkList(list core.PersistedList) error {
	s.listCalls++
	if s.listHook != nil {
		return s.listHook(s.listCalls, list)
	}
	return nil
}

func (s *Store) checkContacts(batch []core.PersistedContact) error {
	if s.contactsHook != nil {
		return s.contactsHook(batch)
	}
	return nil
}

// InTx stages writes made by fn and applies them only if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(core.RecordStores) error) error {
	tx := &txStores{s: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = append(s.lists, tx.lists...)
	s.contacts = append(s.contacts, tx.contacts...)
	return nil
}

type txStores struct {
	s        *Store
	lists    []core.PersistedList
	contacts []core.PersistedContact
}

func (t *txStores) InsertList(ctx context.Context, list core.PersistedList) error {
	t.s.mu.Lock()
	err := t.s.checkList(list)
	t.s.mu.Unlock()
	if err != nil {
		return err
	}
	t.lists = append(t.lists, list)
	return nil
}

func (t *txStores) InsertContacts(ctx context.Context, batch []core.PersistedContact) error {
	t.s.mu.Lock()
	err := t.s.checkContacts(batch)
	t.s.mu.Unlock()
	if err != nil {
		return err
	}
	t.contacts = append(t.contacts, batch...)
	return nil
}

// ListLists returns every list in insertion order.
func (s *Store) ListLists(ctx context.Context) ([]core.PersistedList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.PersistedList(nil), s.lists...), nil
}

// ListListsByWorker returns the lists assigned to one worker.
func (s *Store) ListListsByWorker(ctx context.Context, workerID core.WorkerID) ([]core.PersistedList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.PersistedList
	for _, l := range s.lists {
		if l.WorkerID == workerID {
			out = append(out, l)
		}
	}
	return out, nil
}

// Contacts returns every stored contact.
func (s *Store) Contacts() []core.PersistedContact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.PersistedContact(nil), s.contacts...)
}

// CreateAttempt stores a new attempt.
func (s *Store) CreateAttempt(ctx context.Context, a core.UploadAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.attempts[a.ID]; exists {
		return fmt.Errorf("upload attempt %s: duplicate key", a.ID)
	}
	s.attempts[a.ID] = a
	return nil
}

// UpdateAttemptStatus moves an attempt from one status to another.
func (s *Store) UpdateAttemptStatus(ctx context.Context, id string, from, to core.UploadStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return core.ErrNotFound
	}
	if a.Status != from {
		return core.ErrAttemptConflict
	}
	a.Status = to
	a.Error = errMsg
	a.UpdatedAt = time.Now().UTC()
	s.attempts[id] = a
	return nil
}

// GetAttempt returns one attempt or core.ErrNotFound.
func (s *Store) GetAttempt(ctx context.Context, id string) (core.UploadAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return core.UploadAttempt{}, core.ErrNotFound
	}
	return a, nil
}

// ListAttempts returns attempts newest first. An empty ownerID lists all.
func (s *Store) ListAttempts(ctx context.Context, ownerID string) ([]core.UploadAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.UploadAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		if ownerID == "" || a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FailStaleAttempts fails non-terminal attempts last updated before olderThan.
func (s *Store) FailStaleAttempts(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for id, a := range s.attempts {
		if a.Status.Terminal() || !a.UpdatedAt.Before(olderThan) {
			continue
		}
		a.Status = core.StatusFailed
		a.Error = reason
		a.UpdatedAt = now
		s.attempts[id] = a
		n++
	}
	return n, nil
}
