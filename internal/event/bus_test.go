package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b := NewBus(zap.NewNop())
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

// collector gathers delivered events behind a mutex so tests can poll.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) get(i int) Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[i]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPublishDelivers(t *testing.T) {
	b := newTestBus(t)
	var c collector
	b.Subscribe(PlayerMoved, c.handle)

	b.Publish(New(PlayerMoved).WithSource("sess-1").WithCoord(2, 3))

	waitFor(t, func() bool { return c.len() == 1 })
	e := c.get(0)
	assert.Equal(t, "sess-1", e.Source)
	require.True(t, e.HasCoord)
	assert.Equal(t, 2, e.X)
	assert.Equal(t, 3, e.Y)
}

func TestDeliveryOrderPerKind(t *testing.T) {
	b := newTestBus(t)
	var c collector
	b.Subscribe(PlayerCommand, c.handle)

	for i := 0; i < 50; i++ {
		b.Publish(New(PlayerCommand).WithData("seq", i))
	}

	waitFor(t, func() bool { return c.len() == 50 })
	for i := 0; i < 50; i++ {
		assert.Equal(t, i, c.get(i).Data["seq"])
	}
}

func TestUnsubscribe(t *testing.T) {
	b := newTestBus(t)
	var c collector
	token := b.Subscribe(PlayerLogin, c.handle)

	require.NoError(t, b.Unsubscribe(PlayerLogin, token))
	assert.Error(t, b.Unsubscribe(PlayerLogin, token))

	b.Publish(New(PlayerLogin))
	b.Publish(New(PlayerLogout))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, c.len())
}

func TestPublishWhenStoppedIsDropped(t *testing.T) {
	b := NewBus(zap.NewNop())
	var c collector
	b.Subscribe(PlayerLogin, c.handle)

	// Never started: nothing may be queued or delivered.
	b.Publish(New(PlayerLogin))
	assert.Zero(t, c.len())
	assert.Empty(t, b.History())
}

func TestStopDrainsAndPublishesServerStopping(t *testing.T) {
	b := NewBus(zap.NewNop())
	b.Start()

	var c, stopping collector
	b.Subscribe(PlayerCommand, c.handle)
	b.Subscribe(ServerStopping, stopping.handle)

	for i := 0; i < 100; i++ {
		b.Publish(New(PlayerCommand))
	}
	b.Stop()

	// Stop blocks until the queue drains, so every event is in by now.
	assert.Equal(t, 100, c.len())
	assert.Equal(t, 1, stopping.len())
	assert.False(t, b.IsRunning())
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	b := newTestBus(t)
	var c collector
	b.Subscribe(PlayerLogin, func(Event) { panic("bad handler") })
	b.Subscribe(PlayerLogin, c.handle)

	b.Publish(New(PlayerLogin))
	b.Publish(New(PlayerLogin))

	waitFor(t, func() bool { return c.len() == 2 })
}

func TestHistory(t *testing.T) {
	b := newTestBus(t)

	b.Publish(New(PlayerLogin).WithSource("a"))
	b.Publish(New(PlayerLogout).WithSource("b"))

	waitFor(t, func() bool { return len(b.History()) == 2 })
	hist := b.History()
	assert.Equal(t, PlayerLogin, hist[0].Kind)
	assert.Equal(t, PlayerLogout, hist[1].Kind)
}

func TestEventBuildersReturnCopies(t *testing.T) {
	base := New(PlayerMoved)
	derived := base.WithTarget("t").WithCoord(1, 1)

	assert.Empty(t, base.Target)
	assert.False(t, base.HasCoord)
	assert.Equal(t, "t", derived.Target)
	assert.True(t, derived.HasCoord)
	assert.Equal(t, base.ID, derived.ID)
}
