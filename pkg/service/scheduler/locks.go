package scheduler

import (
	"sync"

	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// lockRegistry hands out per-reminder advisory locks so the dispatch sweep
// and the deadline sweep never process the same reminder simultaneously.
type lockRegistry struct {
	mu     sync.Mutex
	locked map[types.ReminderID]struct{}
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{
		locked: make(map[types.ReminderID]struct{}),
	}
}

// TryAcquire claims the lock for a reminder without blocking. It returns
// false when another sweep already holds it.
func (r *lockRegistry) TryAcquire(id types.ReminderID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.locked[id]; held {
		return false
	}
	r.locked[id] = struct{}{}
	return true
}

// Release frees the lock for a reminder
func (r *lockRegistry) Release(id types.ReminderID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locked, id)
}
