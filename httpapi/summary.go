package httpapi

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rkvdev/pnix/runtime"
)

// psCache coalesces and TTL-caches GET /api/ps snapshots: a busy runtime
// can have many pollers hitting the process list every tick, and
// assembling a snapshot walks every resident process, so concurrent
// requests within one TTL window should share a single pass over the
// table instead of each re-walking it.
type psCache struct {
	rt  *runtime.Runtime
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	cache   []processSummary
	expires time.Time

	sg singleflight.Group
}

func newPSCache(rt *runtime.Runtime, ttl time.Duration) *psCache {
	if ttl <= 0 {
		ttl = 100 * time.Millisecond
	}
	return &psCache{rt: rt, ttl: ttl, now: time.Now}
}

// Get returns the cached snapshot, refreshing it (once, even under
// concurrent callers) if the TTL has lapsed.
func (c *psCache) Get() []processSummary {
	c.mu.RLock()
	if c.cache != nil && c.now().Before(c.expires) {
		out := c.cache
		c.mu.RUnlock()
		return out
	}
	c.mu.RUnlock()

	v, _, _ := c.sg.Do("ps-refresh", func() (any, error) {
		c.mu.RLock()
		if c.cache != nil && c.now().Before(c.expires) {
			out := c.cache
			c.mu.RUnlock()
			return out, nil
		}
		c.mu.RUnlock()

		procs := c.rt.Processes()
		out := make([]processSummary, len(procs))
		for i, p := range procs {
			out[i] = newProcessSummary(p)
		}

		c.mu.Lock()
		c.cache = out
		c.expires = c.now().Add(c.ttl)
		c.mu.Unlock()
		return out, nil
	})
	return v.([]processSummary)
}

// Invalidate forces the next Get to refresh, used right after a mutating
// call (spawn, kill, signal) so the caller's own follow-up GET /api/ps
// doesn't see a stale snapshot for up to a full TTL window.
func (c *psCache) Invalidate() {
	c.mu.Lock()
	c.cache = nil
	c.expires = time.Time{}
	c.mu.Unlock()
}
