// Package broadcast fans messages out to sessions with per-recipient
// locale rendering. Messages travel as key+params structures and are
// rendered at the session boundary, so mixed-locale rooms each see their
// own language.
package broadcast

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/event"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
	"github.com/cory-johannsen/gridmud/internal/telnet"
)

// Router renders and delivers messages. It implements the narration
// interfaces of the monster lifecycle and the combat engine.
type Router struct {
	sessions *session.Manager
	rooms    *world.Store
	catalog  *i18n.Catalog
	bus      *event.Bus
	logger   *zap.Logger
}

// NewRouter creates a Router.
//
// Precondition: all collaborators must be non-nil.
func NewRouter(sessions *session.Manager, rooms *world.Store, catalog *i18n.Catalog, bus *event.Bus, logger *zap.Logger) *Router {
	return &Router{
		sessions: sessions,
		rooms:    rooms,
		catalog:  catalog,
		bus:      bus,
		logger:   logger,
	}
}

// Render produces the localized string of msg for one session.
func (r *Router) Render(sess *session.Session, msg i18n.Text) string {
	return r.catalog.Render(session.LocaleOf(sess, i18n.LocaleEN), msg)
}

// Send renders msg for a single session and writes it.
func (r *Router) Send(sess *session.Session, msg i18n.Text) {
	r.write(sess, r.Render(sess, msg))
}

// SendColored renders msg and wraps it in an ANSI color.
func (r *Router) SendColored(sess *session.Session, msg i18n.Text, color string) {
	r.write(sess, telnet.Colorize(color, r.Render(sess, msg)))
}

// BroadcastAt delivers msg to every authenticated session at a
// coordinate, excluding the listed session ids, and publishes a
// RoomBroadcast event.
func (r *Router) BroadcastAt(c world.Coord, msg i18n.Text, excludeSessionIDs ...string) {
	for _, sess := range r.sessions.AtCoord(c) {
		if excluded(sess.ID, excludeSessionIDs) {
			continue
		}
		r.Send(sess, msg)
	}

	ev := event.New(event.RoomBroadcast).
		WithCoord(c.X, c.Y).
		WithData("key", msg.Key)
	if room, ok := r.rooms.GetRoomAt(c); ok {
		ev = ev.WithRoom(room.ID)
	}
	r.bus.Publish(ev)
}

// BroadcastToRoom delivers msg to the sessions in a room through
// BroadcastAt, which also publishes the RoomBroadcast event.
//
// Postcondition: Unknown room ids deliver nothing and log a warning.
func (r *Router) BroadcastToRoom(roomID string, msg i18n.Text, excludeSessionIDs ...string) {
	room, ok := r.rooms.GetRoom(roomID)
	if !ok {
		r.logger.Warn("broadcast to unknown room", zap.String("room_id", roomID))
		return
	}
	r.BroadcastAt(room.Coord, msg, excludeSessionIDs...)
}

// BroadcastToAll delivers msg to every authenticated session.
func (r *Router) BroadcastToAll(msg i18n.Text, excludeSessionIDs ...string) {
	for _, sess := range r.sessions.Authenticated() {
		if excluded(sess.ID, excludeSessionIDs) {
			continue
		}
		r.Send(sess, msg)
	}
}

// BroadcastToAllColored is BroadcastToAll with an ANSI color wrap, used
// for the dawn/dusk lines.
func (r *Router) BroadcastToAllColored(msg i18n.Text, color string) {
	for _, sess := range r.sessions.Authenticated() {
		r.SendColored(sess, msg, color)
	}
}

func (r *Router) write(sess *session.Session, line string) {
	if err := sess.WriteLine(line); err != nil {
		r.logger.Debug("broadcast write failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

func excluded(id string, exclude []string) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}
