// Package blockcache holds a small FIFO window of recently fetched blocks.
//
// A Cache is owned by a single worker and is not safe for concurrent use.
package blockcache

import (
	"math/rand/v2"

	"github.com/gammazero/deque"

	"github.com/gateway-fm/nodeload/internal/rpc"
)

// DefaultCapacity is the number of blocks kept per worker.
const DefaultCapacity = 20

// Cache is a bounded ring of blocks. Pushing onto a full cache evicts the oldest block.
type Cache struct {
	blocks   *deque.Deque[rpc.Block]
	capacity int
}

// New creates a cache holding at most capacity blocks.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		blocks:   deque.New[rpc.Block](capacity),
		capacity: capacity,
	}
}

// Push appends a block, evicting the oldest one when the cache is full.
func (c *Cache) Push(b rpc.Block) {
	for c.blocks.Len() >= c.capacity {
		c.blocks.PopFront()
	}
	c.blocks.PushBack(b)
}

// Len returns the number of cached blocks.
func (c *Cache) Len() int {
	return c.blocks.Len()
}

// Cap returns the maximum number of cached blocks.
func (c *Cache) Cap() int {
	return c.capacity
}

// Empty reports whether the cache holds no blocks.
func (c *Cache) Empty() bool {
	return c.blocks.Len() == 0
}

// Random returns a uniformly chosen block. ok is false when the cache is empty.
func (c *Cache) Random(rng *rand.Rand) (b rpc.Block, ok bool) {
	n := c.blocks.Len()
	if n == 0 {
		return rpc.Block{}, false
	}
	return c.blocks.At(rng.IntN(n)), true
}

// Blocks returns the cached blocks from oldest to newest.
func (c *Cache) Blocks() []rpc.Block {
	out := make([]rpc.Block, c.blocks.Len())
	for i := range out {
		out[i] = c.blocks.At(i)
	}
	return out
}
