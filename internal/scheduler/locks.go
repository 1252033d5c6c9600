package scheduler

import (
	"slices"
	"sync"
)

// ResourceLockManager serializes tasks of the same round that touch the same
// external resource. Each resource key gets its own mutex, so tasks on distinct
// keys still run in parallel.
type ResourceLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-resource mutexes
}

// NewResourceLockManager creates a new ResourceLockManager.
func NewResourceLockManager() *ResourceLockManager {
	return &ResourceLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for key, creating it on first use.
func (r *ResourceLockManager) Lock(key string) {
	r.mu.Lock()
	keyLock, exists := r.locks[key]
	if !exists {
		keyLock = &sync.Mutex{}
		r.locks[key] = keyLock
	}
	r.mu.Unlock()

	// Block outside the manager lock so other keys stay available
	keyLock.Lock()
}

// Unlock releases the mutex for key.
func (r *ResourceLockManager) Unlock(key string) {
	r.mu.Lock()
	keyLock, exists := r.locks[key]
	r.mu.Unlock()

	if exists {
		keyLock.Unlock()
	}
}

// LockAll acquires every key in lexical order, so two tasks sharing keys
// can never hold them in opposite orders. Duplicate keys are locked once.
func (r *ResourceLockManager) LockAll(keys []string) {
	for _, key := range normalizeKeys(keys) {
		r.Lock(key)
	}
}

// UnlockAll releases every key in reverse lexical order.
func (r *ResourceLockManager) UnlockAll(keys []string) {
	sorted := normalizeKeys(keys)
	for i := len(sorted) - 1; i >= 0; i-- {
		r.Unlock(sorted[i])
	}
}

func normalizeKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}
