package poll

import (
	"context"
	"sync"

	"github.com/dkeye/Interview/internal/domain"
)

type watchHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry keeps at most one running watch per (session, kind).
type Registry struct {
	mu      sync.Mutex
	watches map[domain.WatchKey]*watchHandle
	ctx     context.Context
	stop    context.CancelFunc
}

func NewRegistry(ctx context.Context) *Registry {
	ctx, stop := context.WithCancel(ctx)
	return &Registry{
		watches: make(map[domain.WatchKey]*watchHandle),
		ctx:     ctx,
		stop:    stop,
	}
}

// Start cancels and awaits any prior watch for key, then runs fn in its own
// goroutine. The returned channel is closed when fn returns.
func (r *Registry) Start(key domain.WatchKey, fn func(ctx context.Context)) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.watches[key]; ok {
		prev.cancel()
		<-prev.done
	}

	ctx, cancel := context.WithCancel(r.ctx)
	h := &watchHandle{cancel: cancel, done: make(chan struct{})}
	r.watches[key] = h

	go func() {
		defer func() {
			close(h.done)
			r.mu.Lock()
			if r.watches[key] == h {
				delete(r.watches, key)
			}
			r.mu.Unlock()
			cancel()
		}()
		fn(ctx)
	}()
	return h.done
}

// Cancel stops the watch for key and waits for it to return.
func (r *Registry) Cancel(key domain.WatchKey) {
	r.mu.Lock()
	h, ok := r.watches[key]
	r.mu.Unlock()
	if !ok {
		return
	}
	h.cancel()
	<-h.done
}

func (r *Registry) Active(key domain.WatchKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watches[key]
	return ok
}

// Close cancels every watch and waits for all of them.
func (r *Registry) Close() {
	r.stop()
	r.mu.Lock()
	handles := make([]*watchHandle, 0, len(r.watches))
	for _, h := range r.watches {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	for _, h := range handles {
		<-h.done
	}
}
