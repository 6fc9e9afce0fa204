// Package shutdown provides the run-wide broadcast used by every
// background task (blockhash refresher, WS workers, confirmation drains,
// in-flight completions) to observe process shutdown at their next
// suspension point. Go's context.Context is already the idiomatic
// broadcast-cancellation primitive, so this package is a thin wrapper
// naming the two triggers: SIGINT/SIGTERM and an explicit Shutdown call.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Broadcaster owns the root context every engine and background task
// derives its own ctx from.
type Broadcaster struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New returns a Broadcaster wired to SIGINT/SIGTERM.
func New() *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{ctx: ctx, cancel: cancel}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			b.Shutdown()
		case <-ctx.Done():
		}
	}()
	return b
}

// Context returns the root context; derive per-engine contexts from it with
// context.WithCancel if an engine needs to stop independently.
func (b *Broadcaster) Context() context.Context { return b.ctx }

// Shutdown triggers the broadcast exactly once.
func (b *Broadcaster) Shutdown() {
	b.once.Do(b.cancel)
}

// Done reports whether shutdown has been triggered.
func (b *Broadcaster) Done() <-chan struct{} { return b.ctx.Done() }
