package poller

import (
	"context"
	"sync"
	"time"
)

// Poller runs a function on a fixed interval until it is stopped or its parent
// context ends. Stop blocks until the loop goroutine has returned, so nothing the
// function does can happen after Stop.
type Poller struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// Start runs fn once right away and then on every tick. fn receives a context that
// is cancelled on Stop. Returning false from fn ends the loop.
func Start(ctx context.Context, interval time.Duration, fn func(ctx context.Context) bool) *Poller {
	loopCtx, cancel := context.WithCancel(ctx)
	p := &Poller{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		defer cancel()

		if !fn(loopCtx) {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if loopCtx.Err() != nil {
					return
				}
				if !fn(loopCtx) {
					return
				}
			}
		}
	}()

	return p
}

func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	<-p.done
}

// Done is closed once the loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
