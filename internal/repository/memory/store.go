// Package memory provides in-process implementations of the repository
// interfaces with the same locking and versioning contract as postgres.
package memory

import (
	"context"
	"sync"
	"time"
)

type txKey struct{}

type tx struct {
	held map[string]chan struct{}
	undo []func()
}

// Store holds every table. Row locks are per-key semaphores held until the
// owning transaction ends.
type Store struct {
	mu          sync.Mutex
	complaints  map[string]complaintRow
	attachments map[string]attachmentRow
	history     []historyRow
	requests    map[string]requestRow
	rowLocks    map[string]chan struct{}
	seq         int64
	now         func() time.Time
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		complaints:  make(map[string]complaintRow),
		attachments: make(map[string]attachmentRow),
		requests:    make(map[string]requestRow),
		rowLocks:    make(map[string]chan struct{}),
		now:         time.Now,
	}
}

// RunInTx executes fn as one unit of work. Writes are rolled back when fn
// returns an error; row locks are released either way.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}
	t := &tx{held: make(map[string]chan struct{})}
	defer s.release(t)

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		s.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) release(t *tx) {
	for _, sem := range t.held {
		<-sem
	}
}

// lockRow blocks until the row lock is granted or ctx is done. Outside a
// transaction it is a no-op, matching a plain autocommit read.
func (s *Store) lockRow(ctx context.Context, key string) error {
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok {
		return nil
	}
	if _, held := t.held[key]; held {
		return nil
	}
	s.mu.Lock()
	sem, exists := s.rowLocks[key]
	if !exists {
		sem = make(chan struct{}, 1)
		s.rowLocks[key] = sem
	}
	s.mu.Unlock()

	select {
	case sem <- struct{}{}:
		t.held[key] = sem
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onRollback registers an undo step; callers must hold s.mu.
func (s *Store) onRollback(ctx context.Context, fn func()) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		t.undo = append(t.undo, fn)
	}
}
