package dispatch

// Command expresses intent to change state. Type names the single handler
// that serves it; Payload is opaque to the dispatch core.
// A Command is immutable once constructed and consumed exactly once.
type Command struct {
	Type    string
	Payload any
}

// Query expresses intent to read state. Queries share the Command shape but
// are routed through the query bus and are eligible for result caching.
type Query struct {
	Type    string
	Payload any
}
