package gameserver

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/event"
	"github.com/cory-johannsen/gridmud/internal/game/command"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// MovePlayer moves a session one room in the given direction: combat
// gate, derived-exit resolution, position update, leave/enter narration,
// follower propagation, room view, and the aggro check on arrival.
//
// skipFollowers stops the depth-1 follower recursion from re-scanning,
// so a follow cycle cannot loop.
//
// Postcondition: On success the session's coordinates and the player's
// LastRoomID both name the target room.
func (g *GameServer) MovePlayer(sess *session.Session, dir world.Direction, skipFollowers bool) command.Result {
	player := sess.Player()
	if player == nil {
		return command.Errorf(i18n.T("command.not_authenticated"))
	}
	if inCombat, _ := sess.InCombat(); inCombat {
		return command.Errorf(i18n.T("move.in_combat"))
	}

	from := sess.Coord()
	target, ok := g.rooms.ResolveExit(from, dir)
	if !ok {
		return command.Errorf(i18n.T("move.no_exit", "direction", string(dir)))
	}

	sess.SetCoord(target.Coord)
	player.LastRoomID = target.ID
	g.savePlayer(player)

	g.bus.Publish(event.New(event.RoomLeft).
		WithSource(sess.ID).
		WithCoord(from.X, from.Y).
		WithData("player", player.DisplayName))
	g.bus.Publish(event.New(event.RoomEntered).
		WithSource(sess.ID).
		WithRoom(target.ID).
		WithCoord(target.Coord.X, target.Coord.Y).
		WithData("player", player.DisplayName))
	g.bus.Publish(event.New(event.PlayerMoved).
		WithSource(sess.ID).
		WithCoord(target.Coord.X, target.Coord.Y).
		WithData("direction", string(dir)))

	g.router.BroadcastAt(from,
		i18n.T("move.leaves", "player", player.DisplayName, "direction", string(dir)),
		sess.ID)
	g.router.BroadcastAt(target.Coord,
		i18n.T("move.arrives", "player", player.DisplayName),
		sess.ID)

	if !skipFollowers {
		g.propagateFollowers(sess, player.DisplayName, from, dir)
	}

	g.PushRoomView(sess)

	if inst, ok := g.monsters.AggroAt(target.Coord); ok {
		if _, err := g.combat.Start(sess, inst); err != nil {
			g.logger.Error("aggro combat failed to start",
				zap.String("monster_id", inst.ID),
				zap.Error(err),
			)
		}
	}

	return command.Result{Type: command.ResultSuccess}
}

// propagateFollowers moves every session following name out of the old
// room. A follower whose move fails has its link cleared and is told.
func (g *GameServer) propagateFollowers(leader *session.Session, name string, from world.Coord, dir world.Direction) {
	for _, follower := range g.sessions.FollowersOf(name, from) {
		if follower.ID == leader.ID {
			continue
		}
		result := g.MovePlayer(follower, dir, true)
		if result.Type == command.ResultError {
			follower.SetFollowing("")
			g.router.Send(follower, i18n.T("follow.broken", "leader", name))
			continue
		}
		g.router.Send(follower, i18n.T("follow.you_follow", "leader", name))
	}
}

// handleMove adapts MovePlayer to the command table.
func (g *GameServer) handleMove(dir world.Direction) command.HandlerFunc {
	return func(ctx *command.Context) command.Result {
		return g.MovePlayer(ctx.Session, dir, false)
	}
}
