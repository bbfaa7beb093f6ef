package dispatcher

import (
	"fmt"
	"sort"
	"sync"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

// Registry maps message type names to handlers, one handler per name.
// Registrations are expected at startup; reads dominate afterwards, so the
// maps are guarded by an RWMutex.
//
// Registry is concurrency-safe and contains no global state.
type Registry struct {
	mu  sync.RWMutex
	cmd map[string]cdsp.Handler
	qry map[string]queryBinding
}

type queryBinding struct {
	handler cdsp.Handler
	opts    cdsp.QueryOptions
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		cmd: make(map[string]cdsp.Handler),
		qry: make(map[string]queryBinding),
	}
}

// BindCommand registers a command handler under name.
// Duplicate bindings are rejected, never silently overwritten.
func (r *Registry) BindCommand(name string, h cdsp.Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("bind command: name and handler required: %w", derr.ErrInvalidMessage)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cmd[name]; exists {
		return fmt.Errorf("bind command %s: %w", name, derr.ErrHandlerExists)
	}

	r.cmd[name] = h

	return nil
}

// BindQuery registers a query handler under name with caching options.
// Duplicate bindings are rejected, never silently overwritten.
func (r *Registry) BindQuery(name string, h cdsp.Handler, opts cdsp.QueryOptions) error {
	if name == "" || h == nil {
		return fmt.Errorf("bind query: name and handler required: %w", derr.ErrInvalidMessage)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.qry[name]; exists {
		return fmt.Errorf("bind query %s: %w", name, derr.ErrHandlerExists)
	}

	r.qry[name] = queryBinding{handler: h, opts: opts}

	return nil
}

// Command resolves the handler bound to a command type name.
func (r *Registry) Command(name string) (cdsp.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.cmd[name]

	return h, ok
}

// Query resolves the handler and options bound to a query type name.
func (r *Registry) Query(name string) (cdsp.Handler, cdsp.QueryOptions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.qry[name]

	return b.handler, b.opts, ok
}

// CommandTypes lists registered command type names in sorted order.
func (r *Registry) CommandTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.cmd)
}

// QueryTypes lists registered query type names in sorted order.
func (r *Registry) QueryTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.qry)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
