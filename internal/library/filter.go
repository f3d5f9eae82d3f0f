package library

import (
	"sync"
	"time"
)

// expectTTL bounds how long a registered path stays ignored. fsnotify
// delivers rename events within milliseconds of the syscall; the TTL only
// has to outlive that delivery, not the rebuild debounce.
const expectTTL = 2 * time.Second

// ChangeFilter tracks paths the rename coordinator is about to touch, so the
// watcher can tell planned moves from external edits. Without it a committed
// plan's own file moves would schedule a rebuild, bumping the index
// generation and invalidating sibling plans still waiting in the batch.
type ChangeFilter struct {
	mu    sync.Mutex
	paths map[string]time.Time // path relative to library root → registered at
	now   func() time.Time
}

// NewChangeFilter creates an empty filter.
func NewChangeFilter() *ChangeFilter {
	return &ChangeFilter{paths: make(map[string]time.Time), now: time.Now}
}

// Expect registers paths (relative to the library root) as coordinator-owned
// for the next expectTTL. Re-registering a path refreshes its deadline.
func (f *ChangeFilter) Expect(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at := f.now()
	for _, p := range paths {
		f.paths[p] = at
	}
}

// Ignore reports whether an event for path should be dropped because the
// coordinator announced it. Expired registrations are pruned as a side
// effect.
func (f *ChangeFilter) Ignore(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.paths[path]
	if !ok {
		return false
	}
	if f.now().Sub(at) > expectTTL {
		delete(f.paths, path)
		return false
	}
	return true
}
