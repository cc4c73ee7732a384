package game

import (
	"sync"
	"time"
)

// Clock stamps calls with a block when the engine is not driven by a chain.
// Heights increase by one per call.
type Clock struct {
	mu     sync.Mutex
	height uint64
	now    func() time.Time
}

// NewClock starts after height. A nil now uses time.Now.
func NewClock(height uint64, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{height: height, now: now}
}

func (c *Clock) Next() Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height++
	return Block{Height: c.height, Time: c.now().UTC()}
}

// Height is the last height handed out.
func (c *Clock) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}
