package broker

import (
	"context"
	"sync"
)

// Local delivers in-process, synchronously on the publishing goroutine.
type Local struct {
	mu       sync.RWMutex
	handlers []Handler
	closed   bool
}

func NewLocal() *Local { return &Local{} }

func (l *Local) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	for _, h := range l.handlers {
		h(env)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.handlers = append(l.handlers, h)
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.handlers = nil
	return nil
}
