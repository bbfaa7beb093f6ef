package dispatch

import "context"

// Handler executes one command or query type.
// Implementations must be safe for concurrent use by multiple goroutines.
type Handler interface {
	Handle(ctx context.Context, payload any) (any, error)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, payload any) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, payload any) (any, error) { return f(ctx, payload) }
