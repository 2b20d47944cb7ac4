// Package event provides the typed publish/subscribe bus that decouples
// world mutations from their observers. Events flow through an unbounded
// FIFO queue drained by a single consumer goroutine, which removes
// intra-bus races while keeping publishers lock-free in the fast path.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies an event type.
type Kind string

// All event kinds published by the core.
const (
	PlayerConnected    Kind = "player.connected"
	PlayerDisconnected Kind = "player.disconnected"
	PlayerLogin        Kind = "player.login"
	PlayerLogout       Kind = "player.logout"
	PlayerCommand      Kind = "player.command"
	PlayerMoved        Kind = "player.moved"
	RoomEntered        Kind = "room.entered"
	RoomLeft           Kind = "room.left"
	RoomBroadcast      Kind = "room.broadcast"
	PlayerEmote        Kind = "player.emote"
	PlayerGive         Kind = "player.give"
	PlayerFollow       Kind = "player.follow"
	ObjectPickedUp     Kind = "object.picked_up"
	ObjectDropped      Kind = "object.dropped"
	MonsterSpawned     Kind = "monster.spawned"
	MonsterDied        Kind = "monster.died"
	WorldUpdated       Kind = "world.updated"
	ServerStarted      Kind = "server.started"
	ServerStopping     Kind = "server.stopping"
	SchedulerTick      Kind = "scheduler.tick"
)

// Event is a single occurrence flowing through the bus.
type Event struct {
	// ID uniquely identifies this event.
	ID string
	// Kind is the event type.
	Kind Kind
	// Source is the originating session ID, if any.
	Source string
	// RoomID is the room this event concerns, if any.
	RoomID string
	// X, Y are the coordinates this event concerns when HasCoord is true.
	X, Y     int
	HasCoord bool
	// Target names the entity the event is directed at, if any.
	Target string
	// Data carries free-form event details.
	Data map[string]any
	// Timestamp is when the event was published.
	Timestamp time.Time
}

// New creates an Event of the given kind with a fresh ID and timestamp.
//
// Postcondition: ID is a new UUID; Timestamp is the current time.
func New(kind Kind) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// WithSource returns a copy of e with the source session set.
func (e Event) WithSource(sessionID string) Event {
	e.Source = sessionID
	return e
}

// WithRoom returns a copy of e with the room set.
func (e Event) WithRoom(roomID string) Event {
	e.RoomID = roomID
	return e
}

// WithCoord returns a copy of e with coordinates set.
func (e Event) WithCoord(x, y int) Event {
	e.X, e.Y, e.HasCoord = x, y, true
	return e
}

// WithTarget returns a copy of e with the target set.
func (e Event) WithTarget(target string) Event {
	e.Target = target
	return e
}

// WithData returns a copy of e with a data entry added.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any, 4)
	}
	e.Data[key] = value
	return e
}
