package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase is the in-game time of day. Wall-clock minutes map to phases:
// minutes 0-4 of every ten are night, minutes 5-9 are day.
type Phase string

const (
	PhaseDay   Phase = "day"
	PhaseNight Phase = "night"
)

// PhaseAt returns the phase for a wall-clock time.
func PhaseAt(t time.Time) Phase {
	if t.Minute()%10 < 5 {
		return PhaseNight
	}
	return PhaseDay
}

// PhaseListener is notified on every day/night transition.
type PhaseListener func(phase Phase)

// DayNight watches the wall clock and fires listeners on phase
// transitions. It also answers the current phase for room views.
type DayNight struct {
	logger *zap.Logger

	mu        sync.RWMutex
	phase     Phase
	listeners []PhaseListener

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// NewDayNight creates a stopped DayNight initialized to the current
// wall-clock phase.
//
// Precondition: logger must be non-nil.
func NewDayNight(logger *zap.Logger) *DayNight {
	return &DayNight{
		logger: logger,
		phase:  PhaseAt(time.Now()),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Current returns the phase as of the last observation.
func (d *DayNight) Current() Phase {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.phase
}

// OnTransition registers a listener for dawn/dusk. Listeners run on the
// watcher goroutine.
func (d *DayNight) OnTransition(fn PhaseListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Start launches the minute watcher.
func (d *DayNight) Start() error {
	go d.loop()
	return nil
}

// Stop terminates the watcher and waits for it to exit.
func (d *DayNight) Stop() {
	d.once.Do(func() { close(d.quit) })
	<-d.done
}

func (d *DayNight) loop() {
	defer close(d.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-d.quit:
			return
		case now := <-ticker.C:
			d.observe(now)
		}
	}
}

// observe compares the wall-clock phase to the last one and fires
// listeners on a change.
func (d *DayNight) observe(now time.Time) {
	next := PhaseAt(now)

	d.mu.Lock()
	if next == d.phase {
		d.mu.Unlock()
		return
	}
	d.phase = next
	listeners := append([]PhaseListener(nil), d.listeners...)
	d.mu.Unlock()

	d.logger.Info("day/night transition", zap.String("phase", string(next)))
	for _, fn := range listeners {
		fn(next)
	}
}
