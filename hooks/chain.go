package hooks

import (
	"context"
	"errors"
	"sync"
)

// ErrChainFrozen is returned by [Chain.Append] after [Chain.Freeze].
var ErrChainFrozen = errors.New("hook chain frozen")

// Handler observes or rewrites a value at an extension point.
type Handler[T any] interface {
	Handle(ctx context.Context, in T) (T, error)
}

// HandlerFunc adapts a plain function to [Handler].
type HandlerFunc[T any] func(ctx context.Context, in T) (T, error)

// Handle calls f(ctx, in).
func (f HandlerFunc[T]) Handle(ctx context.Context, in T) (T, error) {
	return f(ctx, in)
}

// Observer adapts a side-effect-only function to [Handler]. The input is
// passed through unchanged when fn succeeds.
func Observer[T any](fn func(ctx context.Context, in T) error) Handler[T] {
	return HandlerFunc[T](func(ctx context.Context, in T) (T, error) {
		if err := fn(ctx, in); err != nil {
			return in, err
		}
		return in, nil
	})
}

// Chain is an ordered list of handlers. It is safe for concurrent Run calls;
// Append must happen before the chain is frozen.
type Chain[T any] struct {
	mu       sync.RWMutex
	handlers []Handler[T]
	frozen   bool
}

// NewChain creates a chain with the given handlers in order.
func NewChain[T any](handlers ...Handler[T]) *Chain[T] {
	c := &Chain[T]{}
	for _, h := range handlers {
		if h != nil {
			c.handlers = append(c.handlers, h)
		}
	}
	return c
}

// Append adds handlers to the end of the chain. Nil handlers are ignored.
func (c *Chain[T]) Append(handlers ...Handler[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrChainFrozen
	}
	for _, h := range handlers {
		if h != nil {
			c.handlers = append(c.handlers, h)
		}
	}
	return nil
}

// Freeze rejects further Append calls.
func (c *Chain[T]) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Len reports the number of registered handlers.
func (c *Chain[T]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// Run passes in through every handler. A nil chain returns in unchanged.
func (c *Chain[T]) Run(ctx context.Context, in T) (T, error) {
	if c == nil {
		return in, nil
	}

	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()

	cur := in
	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return cur, err
		}
		next, err := h.Handle(ctx, cur)
		if err != nil {
			return cur, err
		}
		cur = next
	}
	return cur, nil
}
