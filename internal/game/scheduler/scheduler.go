// Package scheduler provides the wall-clock-aligned tick dispatcher and
// the day/night cycle. Ticks fire on the seconds {0, 15, 30, 45} of every
// minute so cadence is predictable and auditable in the logs.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/event"
)

// tickSeconds are the wall-clock seconds the dispatcher fires on.
var tickSeconds = [4]int{0, 15, 30, 45}

// EventHandler runs a named event's work for one tick.
type EventHandler func(now time.Time) error

// NamedEvent is a registered periodic job with admin-visible counters.
type NamedEvent struct {
	// Name identifies the event for the admin surface.
	Name string
	// Intervals are the tick seconds this event subscribes to.
	Intervals []int
	// Enabled events run on their intervals; disabled ones are skipped
	// but keep their registration and counters.
	Enabled bool
	// RunCount and ErrorCount track executions.
	RunCount   int64
	ErrorCount int64
	// LastRun is the last execution time, zero if never run.
	LastRun time.Time

	handler EventHandler
}

// Scheduler owns the tick loop and the named event registry.
type Scheduler struct {
	bus    *event.Bus
	logger *zap.Logger

	mu     sync.RWMutex
	events map[string]*NamedEvent

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// New creates a stopped Scheduler.
//
// Precondition: bus and logger must be non-nil.
func New(bus *event.Bus, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		bus:    bus,
		logger: logger,
		events: make(map[string]*NamedEvent),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a named event subscribed to the given tick seconds.
// Events start enabled.
//
// Postcondition: Returns an error on a duplicate name or an interval
// outside {0, 15, 30, 45}.
func (s *Scheduler) Register(name string, intervals []int, handler EventHandler) error {
	if name == "" || handler == nil {
		return fmt.Errorf("named event must have a name and a handler")
	}
	for _, iv := range intervals {
		if iv != 0 && iv != 15 && iv != 30 && iv != 45 {
			return fmt.Errorf("interval %d is not a tick second", iv)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[name]; ok {
		return fmt.Errorf("named event %q already registered", name)
	}
	s.events[name] = &NamedEvent{
		Name:      name,
		Intervals: append([]int(nil), intervals...),
		Enabled:   true,
		handler:   handler,
	}
	s.logger.Info("scheduler event registered",
		zap.String("event", name),
		zap.Ints("intervals", intervals),
	)
	return nil
}

// SetEnabled enables or disables a named event.
//
// Postcondition: Returns an error if the event is unknown.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[name]
	if !ok {
		return fmt.Errorf("named event %q not found", name)
	}
	ev.Enabled = enabled
	s.logger.Info("scheduler event toggled",
		zap.String("event", name),
		zap.Bool("enabled", enabled),
	)
	return nil
}

// Info returns a copy of a named event's state.
func (s *Scheduler) Info(name string) (NamedEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[name]
	if !ok {
		return NamedEvent{}, false
	}
	return *ev, true
}

// List returns copies of all named events sorted by name.
func (s *Scheduler) List() []NamedEvent {
	s.mu.RLock()
	out := make([]NamedEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, *ev)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches the tick loop.
func (s *Scheduler) Start() error {
	go s.loop()
	return nil
}

// Stop terminates the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}

// loop sleeps until the next tick second, fires, and repeats.
func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		wait := durationToNextTick(time.Now())
		timer := time.NewTimer(wait)
		select {
		case <-s.quit:
			timer.Stop()
			return
		case now := <-timer.C:
			s.fire(now)
		}
	}
}

// fire publishes the tick event and runs subscribed named events.
func (s *Scheduler) fire(now time.Time) {
	interval := nearestTickSecond(now)
	s.bus.Publish(event.New(event.SchedulerTick).WithData("interval", interval))

	s.mu.RLock()
	var due []*NamedEvent
	for _, ev := range s.events {
		if !ev.Enabled {
			continue
		}
		for _, iv := range ev.Intervals {
			if iv == interval {
				due = append(due, ev)
				break
			}
		}
	}
	s.mu.RUnlock()

	for _, ev := range due {
		s.runEvent(ev, now)
	}
}

// runEvent executes one named event, isolating panics and recording
// counters.
func (s *Scheduler) runEvent(ev *NamedEvent, now time.Time) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		err = ev.handler(now)
	}()

	s.mu.Lock()
	ev.RunCount++
	ev.LastRun = now
	if err != nil {
		ev.ErrorCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduler event failed",
			zap.String("event", ev.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("scheduler event ran",
		zap.String("event", ev.Name),
		zap.Duration("duration", time.Since(start)),
	)
}

// durationToNextTick computes the sleep until the next second in the
// tick set, always at least 1ms to avoid double-firing on the boundary.
func durationToNextTick(now time.Time) time.Duration {
	sec := now.Second()
	next := 60
	for _, t := range tickSeconds {
		if t > sec {
			next = t
			break
		}
	}
	target := now.Truncate(time.Minute).Add(time.Duration(next) * time.Second)
	d := target.Sub(now)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// nearestTickSecond snaps a firing time to its tick second.
func nearestTickSecond(now time.Time) int {
	sec := now.Second()
	nearest := 0
	best := 60
	for _, t := range tickSeconds {
		diff := sec - t
		if diff < 0 {
			diff = -diff
		}
		if diff < best {
			best = diff
			nearest = t
		}
	}
	return nearest
}
