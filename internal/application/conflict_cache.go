package application

import (
	"strings"
	"sync"
	"time"

	"github.com/example/campus-scheduler/internal/timetable"
)

// conflictCache stores recently computed conflict probes to avoid repeated
// detector execution for identical queries while the committed schedule
// remains unchanged. Any commit invalidates the whole cache.
type conflictCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]conflictCacheEntry
}

type conflictCacheEntry struct {
	conflicts []timetable.Conflict
	expiresAt time.Time
}

func newConflictCache(ttl time.Duration, maxEntries int, now func() time.Time) *conflictCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &conflictCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]conflictCacheEntry),
	}
}

func (c *conflictCache) Get(key string) ([]timetable.Conflict, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneConflicts(entry.conflicts), true
}

func (c *conflictCache) Store(key string, conflicts []timetable.Conflict) {
	if c == nil {
		return
	}
	cloned := cloneConflicts(conflicts)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = conflictCacheEntry{conflicts: cloned, expiresAt: expiry}
}

func (c *conflictCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]conflictCacheEntry)
	c.mu.Unlock()
}

func (c *conflictCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *conflictCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneConflicts(conflicts []timetable.Conflict) []timetable.Conflict {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]timetable.Conflict, len(conflicts))
	copy(out, conflicts)
	return out
}

func buildConflictCacheKey(probe ConflictProbe, w timetable.Window) string {
	participants := sortStrings(uniqueStrings(probe.ParticipantIDs))

	builder := strings.Builder{}
	builder.WriteString(probe.RoomID)
	builder.WriteString("|")
	builder.WriteString(strings.Join(participants, ","))
	builder.WriteString("|")
	builder.WriteString(w.Start.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(w.End.UTC().Format(time.RFC3339Nano))
	return builder.String()
}
