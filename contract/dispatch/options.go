package dispatch

import "time"

// QueryOptions configure one query handler registration.
type QueryOptions struct {
	// TTL bounds cache entries produced by this query type.
	// Zero applies the dispatcher's default TTL.
	TTL time.Duration

	// NoCache disables result caching for this query type entirely.
	NoCache bool
}
