package themesync

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so sync and activation timestamps are
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts row ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
