package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/event"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	logger := zap.NewNop()
	bus := event.NewBus(logger)
	bus.Start()
	t.Cleanup(bus.Stop)
	return New(bus, logger)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestScheduler(t)
	handler := func(time.Time) error { return nil }

	require.NoError(t, s.Register("spawn", []int{0, 30}, handler))
	require.Error(t, s.Register("spawn", []int{0}, handler), "duplicate name")
	require.Error(t, s.Register("", []int{0}, handler))
	require.Error(t, s.Register("bad", []int{7}, handler), "7 is not a tick second")
	require.Error(t, s.Register("nil", []int{0}, nil))
}

func TestFireRunsDueEvents(t *testing.T) {
	s := newTestScheduler(t)
	ran := map[string]int{}
	require.NoError(t, s.Register("every-tick", []int{0, 15, 30, 45}, func(time.Time) error {
		ran["every-tick"]++
		return nil
	}))
	require.NoError(t, s.Register("half-minute", []int{0, 30}, func(time.Time) error {
		ran["half-minute"]++
		return nil
	}))

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s.fire(base.Add(15 * time.Second))
	assert.Equal(t, 1, ran["every-tick"])
	assert.Equal(t, 0, ran["half-minute"])

	s.fire(base.Add(30 * time.Second))
	assert.Equal(t, 2, ran["every-tick"])
	assert.Equal(t, 1, ran["half-minute"])
}

func TestDisabledEventSkipped(t *testing.T) {
	s := newTestScheduler(t)
	ran := 0
	require.NoError(t, s.Register("spawn", []int{0}, func(time.Time) error {
		ran++
		return nil
	}))
	require.NoError(t, s.SetEnabled("spawn", false))

	s.fire(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	assert.Zero(t, ran)

	require.NoError(t, s.SetEnabled("spawn", true))
	s.fire(time.Date(2026, 8, 24, 12, 1, 0, 0, time.UTC))
	assert.Equal(t, 1, ran)

	require.Error(t, s.SetEnabled("ghost", true))
}

func TestCountersAndInfo(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.Register("flaky", []int{0}, func(time.Time) error {
		return errors.New("boom")
	}))
	require.NoError(t, s.Register("panicky", []int{0}, func(time.Time) error {
		panic("much worse")
	}))

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s.fire(now)

	info, ok := s.Info("flaky")
	require.True(t, ok)
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, int64(1), info.ErrorCount)
	assert.Equal(t, now, info.LastRun)

	info, ok = s.Info("panicky")
	require.True(t, ok)
	assert.Equal(t, int64(1), info.ErrorCount, "panics count as errors and do not kill the loop")

	_, ok = s.Info("ghost")
	assert.False(t, ok)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "flaky", list[0].Name)
	assert.Equal(t, "panicky", list[1].Name)
}

func TestDurationToNextTick(t *testing.T) {
	tests := []struct {
		second int
		want   time.Duration
	}{
		{1, 14 * time.Second},
		{14, time.Second},
		{15, 15 * time.Second},
		{44, time.Second},
		{59, time.Second},
	}
	for _, tt := range tests {
		now := time.Date(2026, 8, 24, 12, 0, tt.second, 0, time.UTC)
		assert.Equal(t, tt.want, durationToNextTick(now), "second %d", tt.second)
	}
}

func TestNearestTickSecond(t *testing.T) {
	tests := []struct {
		second int
		want   int
	}{
		{0, 0},
		{1, 0},
		{14, 15},
		{16, 15},
		{29, 30},
		{46, 45},
		{59, 0},
	}
	for _, tt := range tests {
		now := time.Date(2026, 8, 24, 12, 0, tt.second, 0, time.UTC)
		assert.Equal(t, tt.want, nearestTickSecond(now), "second %d", tt.second)
	}
}

func TestPhaseAt(t *testing.T) {
	tests := []struct {
		minute int
		want   Phase
	}{
		{0, PhaseNight},
		{4, PhaseNight},
		{5, PhaseDay},
		{9, PhaseDay},
		{10, PhaseNight},
		{15, PhaseDay},
		{30, PhaseNight},
		{55, PhaseDay},
	}
	for _, tt := range tests {
		at := time.Date(2026, 8, 24, 12, tt.minute, 0, 0, time.UTC)
		assert.Equal(t, tt.want, PhaseAt(at), "minute %d", tt.minute)
	}
}

func TestDayNightTransition(t *testing.T) {
	d := NewDayNight(zap.NewNop())
	var fired []Phase
	d.OnTransition(func(p Phase) { fired = append(fired, p) })

	night := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	day := time.Date(2026, 8, 24, 12, 5, 0, 0, time.UTC)

	d.observe(night)
	d.observe(night.Add(time.Second))
	d.observe(day)
	d.observe(day.Add(time.Second))
	d.observe(night.Add(10 * time.Minute))

	// Listeners fire only on actual transitions.
	assert.Equal(t, []Phase{PhaseDay, PhaseNight}, fired[len(fired)-2:])
	assert.Equal(t, PhaseNight, d.Current())
}
