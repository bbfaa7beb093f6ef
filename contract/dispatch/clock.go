package dispatch

import "time"

// Clock supplies timestamps and correlation identifiers to the buses.
// NewCorrelationID must be collision-resistant across the process lifetime.
// Implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
	NewCorrelationID() string
}
