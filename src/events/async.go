package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrQueueFull is returned when an Async publisher cannot take another event.
var ErrQueueFull = errors.New("events: queue full")

const asyncPublishTimeout = 15 * time.Second

// Async hands events to a background worker so a slow sink does not hold up
// the caller. Events that do not fit in the queue are dropped.
type Async struct {
	name string
	next Publisher

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

func NewAsync(name string, next Publisher, size int) *Async {
	if size <= 0 {
		size = 64
	}
	a := &Async{
		name:  name,
		next:  next,
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops taking events and waits for the queue to drain or ctx to end.
func (a *Async) Close(ctx context.Context) {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-ctx.Done():
		log.Printf("events: %s: %d event(s) not delivered before shutdown", a.name, len(a.queue))
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		if err := a.next.Publish(ctx, ev); err != nil {
			log.Printf("events: %s: publish %s: %v", a.name, ev.Kind, err)
		}
		cancel()
	}
}
