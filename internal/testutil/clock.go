package testutil

import (
	"sync"
	"time"

	"themesync/internal/themesync"
)

// Epoch is the instant every ManualClock starts at.
var Epoch = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

// ManualClock is a themesync.Clock that only moves when a test moves it,
// so rows written by consecutive syncs share a timestamp unless the test
// advances between them.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock() *ManualClock {
	return &ManualClock{now: Epoch}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, e.g. between two syncs whose
// batches must order by creation time.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var _ themesync.Clock = (*ManualClock)(nil)
