package dispatch

import "time"

// ExecutionResult is the uniform envelope returned by every dispatch.
// Exactly one of Data/Error is meaningful: Data when Success is true,
// Error when it is false. Callers inspect Success rather than relying on
// errors escaping the bus; none do.
type ExecutionResult struct {
	Success       bool
	Data          any
	Error         string
	CorrelationID string
	ExecutionTime time.Duration
}
