package chainstore

import (
	"container/list"
	"sync"

	"github.com/nullbyte-labs/chainstore/chain"
)

// cacheEntry is one live chain handle plus its reference count. elem is its
// position in the zero-ref LRU list; it is nil while refs > 0 (pinned
// entries are not LRU-tracked at all — they live only in the entries map).
type cacheEntry struct {
	chain chain.Chain
	refs  uint32
	elem  *list.Element
}

// chainCache is a reference-counted LRU: a map from hex(discovery key) to a
// live chain handle, threaded through a doubly-linked list (container/list)
// of the zero-ref entries only, so eviction never has to consider pinned
// entries. It is safe for concurrent use, since multiple goroutines (the
// engine's watch loop, the replicator, and every namespaced view) can reach
// it at once.
type chainCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*cacheEntry
	lru      *list.List // element value: string id; front = least recently used

	// onEvict is invoked (outside the lock) for every chain the cache
	// closes during eviction, so the engine can report close errors on its
	// own error channel without cache.go needing to know about it.
	onEvict func(id string, err error)

	// onSaturated is invoked when capacity is exceeded but no entry is
	// evictable (every entry other than the one just inserted is pinned) — a
	// permitted soft-overflow condition rather than a hard error.
	onSaturated func(size int)
}

func newChainCache(capacity int) *chainCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &chainCache{
		capacity: capacity,
		entries:  make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

func (c *chainCache) get(id string) (chain.Chain, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if e.elem != nil {
		c.lru.MoveToBack(e.elem)
	}
	return e.chain, true
}

func (c *chainCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// entry returns a snapshot (chain, refs) for id.
func (c *chainCache) entry(id string) (chain.Chain, uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, 0, false
	}
	return e.chain, e.refs, true
}

// set inserts ch under id with refs=0. If id is already present this is a
// no-op — callers (engine.Get) are expected to have checked has(id) first
// inside the same critical section conceptually; set tolerates the race
// anyway rather than clobbering a concurrently-inserted entry.
func (c *chainCache) set(id string, ch chain.Chain) {
	c.mu.Lock()
	if _, exists := c.entries[id]; exists {
		c.mu.Unlock()
		return
	}

	e := &cacheEntry{chain: ch}
	e.elem = c.lru.PushBack(id)
	c.entries[id] = e

	var evictID string
	var evictChain chain.Chain
	evict := false
	if len(c.entries) > c.capacity {
		// The entry just inserted is never its own eviction candidate: when
		// it is the only zero-ref entry, every other entry is pinned and the
		// cache overflows its soft cap instead.
		if front := c.lru.Front(); front != nil && front != e.elem {
			evictID = front.Value.(string)
			evictChain = c.entries[evictID].chain
			delete(c.entries, evictID)
			c.lru.Remove(front)
			evict = true
		} else if c.onSaturated != nil {
			size := len(c.entries)
			c.mu.Unlock()
			c.onSaturated(size)
			return
		}
	}
	c.mu.Unlock()

	if evict {
		err := evictChain.Close()
		if c.onEvict != nil {
			c.onEvict(evictID, err)
		}
	}
}

// increment pins id: a view now holds a ref on it, so it is removed from the
// LRU list until the ref count drops back to zero.
func (c *chainCache) increment(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return
	}
	if e.refs == 0 && e.elem != nil {
		c.lru.Remove(e.elem)
		e.elem = nil
	}
	e.refs++
}

// decrement unpins one ref on id. At refs==0 the entry becomes LRU-eligible
// again but is not evicted immediately.
func (c *chainCache) decrement(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.refs == 0 {
		return
	}
	e.refs--
	if e.refs == 0 {
		e.elem = c.lru.PushBack(id)
	}
}

// delete removes id unconditionally, tolerating an id that is already
// absent — required because closing an evicted chain can re-enter delete
// via the chain's own close observer.
func (c *chainCache) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return
	}
	if e.elem != nil {
		c.lru.Remove(e.elem)
	}
	delete(c.entries, id)
}

func (c *chainCache) snapshotRefd() map[string]chain.Chain {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]chain.Chain)
	for id, e := range c.entries {
		if e.refs > 0 {
			out[id] = e.chain
		}
	}
	return out
}

func (c *chainCache) all() map[string]chain.Chain {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]chain.Chain, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.chain
	}
	return out
}
