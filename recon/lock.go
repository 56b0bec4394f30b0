package recon

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// lockTable serializes apply units per invoice within this process. The row
// lock inside the transaction is the cross-process guard; this keeps local
// contenders from piling onto the database and gives them a bounded wait.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// lockEntry is a one-slot semaphore plus a count of holders and waiters.
// Entries are evicted once unreferenced, so the table grows with current
// contention rather than with every invoice ever touched.
type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

func invoiceKey(tenantID string, invoiceID uint) string {
	return fmt.Sprintf("%s/%d", tenantID, invoiceID)
}

// acquire takes the named lock, waiting at most wait. Returns
// ErrResourceBusy on timeout so the caller can retry or requeue.
func (t *lockTable) acquire(ctx context.Context, key string, wait time.Duration) error {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-timer.C:
		t.unref(key, e)
		return fmt.Errorf("%w: %s", ErrResourceBusy, key)
	case <-ctx.Done():
		t.unref(key, e)
		return ctx.Err()
	}
}

// release drops the lock taken by a successful acquire. The holder's
// reference keeps the entry in the table until this point.
func (t *lockTable) release(key string) {
	t.mu.Lock()
	e, ok := t.locks[key]
	t.mu.Unlock()
	if !ok {
		return
	}
	<-e.ch
	t.unref(key, e)
}

func (t *lockTable) unref(key string, e *lockEntry) {
	t.mu.Lock()
	e.refs--
	if e.refs == 0 && t.locks[key] == e {
		delete(t.locks, key)
	}
	t.mu.Unlock()
}
