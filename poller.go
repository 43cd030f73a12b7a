package statekit

import (
	"context"
	"sync"
	"time"
)

// Poller is a cancellable polling task. Stop is the explicit teardown for
// what would otherwise be an unbounded timer; stopping twice is safe.
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// newPoller starts a goroutine invoking tick every interval until Stop.
//
// The poller runs on its own background-derived context so that the
// cancellation of the context used for the initial fetch does not silently
// kill subsequent ticks; Stop is the single teardown path.
func newPoller(interval time.Duration, tick func(ctx context.Context)) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				tick(ctx)
			}
		}
	}()

	return p
}

// Stop cancels the polling task and waits for the in-flight tick, if any,
// to return.
func (p *Poller) Stop() {
	p.once.Do(p.cancel)
	<-p.done
}
