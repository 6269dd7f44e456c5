package trade

import (
	"sync"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

// Source is what the cache needs from a running simulation.
type Source interface {
	State() *model.GameState
	Content() *content.DB
	StateGeneration() uint64
	ContentGeneration() uint64
}

type cacheKey struct {
	stateGen, contentGen uint64
	opt                  Options
}

// Cache memoizes the last network per source generation and options. It is
// safe for concurrent readers as long as the source is not advancing.
type Cache struct {
	mu    sync.Mutex
	valid bool
	key   cacheKey
	net   Network
}

func (c *Cache) Get(src Source, opt Options) Network {
	k := cacheKey{stateGen: src.StateGeneration(), contentGen: src.ContentGeneration(), opt: opt}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.key == k {
		return c.net
	}
	c.net = Compute(src.State(), src.Content(), opt)
	c.key, c.valid = k, true
	return c.net
}

// Invalidate forces the next Get to recompute.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
