// Package clock provides the block-height source used for timelock checks.
package clock

import (
	"sync"
	"time"
)

// HeightSource reports the current block height. Implementations must be
// monotonically non-decreasing across calls.
type HeightSource interface {
	CurrentHeight() uint64
}

// IntervalClock derives a height from wall time: the number of whole block
// intervals elapsed since genesis. Heights never decrease as long as the
// system clock does not jump backwards past genesis.
type IntervalClock struct {
	genesis  time.Time
	interval time.Duration

	mu   sync.Mutex
	last uint64
}

// NewIntervalClock creates a height source ticking once per interval,
// starting at height 0 at genesis.
func NewIntervalClock(genesis time.Time, interval time.Duration) *IntervalClock {
	if interval <= 0 {
		interval = DefaultBlockInterval
	}
	return &IntervalClock{genesis: genesis, interval: interval}
}

// DefaultBlockInterval is the default block time.
const DefaultBlockInterval = 10 * time.Minute

// CurrentHeight returns the current height. A wall-clock step backwards is
// clamped so the reported height never decreases.
func (c *IntervalClock) CurrentHeight() uint64 {
	elapsed := time.Since(c.genesis)
	var h uint64
	if elapsed > 0 {
		h = uint64(elapsed / c.interval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h < c.last {
		return c.last
	}
	c.last = h
	return h
}

// Interval returns the configured block interval.
func (c *IntervalClock) Interval() time.Duration {
	return c.interval
}

// Genesis returns the genesis timestamp.
func (c *IntervalClock) Genesis() time.Time {
	return c.genesis
}

// Manual is a height source advanced by hand. Used in tests.
type Manual struct {
	mu     sync.Mutex
	height uint64
}

// NewManual creates a manual height source starting at the given height.
func NewManual(height uint64) *Manual {
	return &Manual{height: height}
}

// CurrentHeight returns the current height.
func (m *Manual) CurrentHeight() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

// Advance moves the height forward by n blocks.
func (m *Manual) Advance(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += n
}

// Set sets the height. Attempts to move backwards are ignored.
func (m *Manual) Set(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if height > m.height {
		m.height = height
	}
}
