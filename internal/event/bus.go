package event

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HistorySize is the number of recent events retained for debugging queries.
const HistorySize = 1000

// Handler processes a single event. Handlers run on the bus consumer
// goroutine unless registered with SubscribeAsync; a handler that needs
// parallelism must spawn its own work.
type Handler func(Event)

type registration struct {
	id    int
	fn    Handler
	async bool
}

// Bus is a typed publish/subscribe channel with queued delivery.
//
// Publish enqueues into an unbounded FIFO; a single consumer goroutine
// dispatches each event to that kind's subscribers in registration order.
// Handler panics are logged and never abort the loop or later handlers.
type Bus struct {
	logger *zap.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	handlers map[Kind][]registration
	nextID   int

	history  [HistorySize]Event
	histNext int
	histLen  int

	running  bool
	stopping bool
	done     chan struct{}
}

// NewBus creates a stopped Bus.
//
// Precondition: logger must be non-nil.
func NewBus(logger *zap.Logger) *Bus {
	b := &Bus{
		logger:   logger,
		handlers: make(map[Kind][]registration),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Subscribe registers a synchronous handler for kind and returns a token
// for Unsubscribe. Handlers for a kind run serially in registration order.
//
// Precondition: fn must be non-nil.
func (b *Bus) Subscribe(kind Kind, fn Handler) int {
	return b.subscribe(kind, fn, false)
}

// SubscribeAsync registers a handler that runs on its own goroutine per
// event. Delivery order to a single async handler is not guaranteed.
//
// Precondition: fn must be non-nil.
func (b *Bus) SubscribeAsync(kind Kind, fn Handler) int {
	return b.subscribe(kind, fn, true)
}

func (b *Bus) subscribe(kind Kind, fn Handler, async bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], registration{id: b.nextID, fn: fn, async: async})
	return b.nextID
}

// Unsubscribe removes the handler registered under token for kind.
//
// Postcondition: Returns an error if no such registration exists.
func (b *Bus) Unsubscribe(kind Kind, token int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[kind]
	for i, r := range regs {
		if r.id == token {
			b.handlers[kind] = append(regs[:i], regs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no subscription %d for kind %q", token, kind)
}

// Publish enqueues an event for delivery. Never blocks: the queue is
// unbounded. Events published after Stop has drained are dropped.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.queue = append(b.queue, e)
	b.history[b.histNext] = e
	b.histNext = (b.histNext + 1) % HistorySize
	if b.histLen < HistorySize {
		b.histLen++
	}
	b.cond.Signal()
}

// Start launches the consumer goroutine.
//
// Precondition: The bus must not already be running.
func (b *Bus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.stopping = false
	b.done = make(chan struct{})
	go b.consume()
}

// Stop publishes ServerStopping, drains all in-flight events, and stops
// the consumer. Blocks until the queue is empty.
//
// Postcondition: The bus is no longer running; every queued event was delivered.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	stop := New(ServerStopping)
	b.queue = append(b.queue, stop)
	b.history[b.histNext] = stop
	b.histNext = (b.histNext + 1) % HistorySize
	if b.histLen < HistorySize {
		b.histLen++
	}
	b.stopping = true
	done := b.done
	b.cond.Signal()
	b.mu.Unlock()

	<-done
}

// consume is the single dispatcher loop.
func (b *Bus) consume() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.stopping {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.stopping {
			b.running = false
			done := b.done
			b.mu.Unlock()
			close(done)
			return
		}
		e := b.queue[0]
		b.queue = b.queue[1:]
		regs := append([]registration(nil), b.handlers[e.Kind]...)
		b.mu.Unlock()

		for _, r := range regs {
			if r.async {
				go b.invoke(r, e)
			} else {
				b.invoke(r, e)
			}
		}
	}
}

// invoke runs one handler, isolating panics so one bad subscriber never
// blocks the others.
func (b *Bus) invoke(r registration, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("event handler panicked",
				zap.String("kind", string(e.Kind)),
				zap.String("event_id", e.ID),
				zap.Any("panic", rec),
			)
		}
	}()
	r.fn(e)
}

// History returns the most recent events, oldest first, up to HistorySize.
//
// Postcondition: Returns a copy; mutating it does not affect the bus.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, 0, b.histLen)
	start := (b.histNext - b.histLen + HistorySize) % HistorySize
	for i := 0; i < b.histLen; i++ {
		out = append(out, b.history[(start+i)%HistorySize])
	}
	return out
}

// IsRunning reports whether the consumer is active.
func (b *Bus) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}
