package gameserver

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/event"
	"github.com/cory-johannsen/gridmud/internal/game/command"
	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// adminCommands returns the privileged command table. The dispatcher
// hides these from non-admin sessions.
func (g *GameServer) adminCommands() []*command.Command {
	return []*command.Command{
		{Name: "goto", Admin: true, HelpKey: "help.goto", Handler: g.handleGoto},
		{Name: "kick", Admin: true, HelpKey: "help.kick", Handler: g.handleKick},
		{Name: "createroom", Admin: true, HelpKey: "help.createroom", Handler: g.handleCreateRoom},
		{Name: "editroom", Admin: true, HelpKey: "help.editroom", Handler: g.handleEditRoom},
		{Name: "deleteroom", Admin: true, HelpKey: "help.deleteroom", Handler: g.handleDeleteRoom},
		{Name: "createexit", Admin: true, HelpKey: "help.createexit", Handler: g.handleCreateExit},
		{Name: "createobject", Admin: true, HelpKey: "help.createobject", Handler: g.handleCreateObject},
		{Name: "spawnmonster", Admin: true, HelpKey: "help.spawnmonster", Handler: g.handleSpawnMonster},
		{Name: "scheduler", Admin: true, HelpKey: "help.scheduler", Handler: g.handleScheduler},
		{Name: "validate", Admin: true, HelpKey: "help.validate", Handler: g.handleValidate},
	}
}

// handleGoto teleports the admin to a room by id, with smoke narration
// in both rooms.
func (g *GameServer) handleGoto(ctx *command.Context) command.Result {
	roomID := ctx.ArgsFrom(0)
	if roomID == "" {
		return command.Errorf(i18n.T("admin.goto_usage"))
	}
	target, ok := g.rooms.GetRoom(roomID)
	if !ok {
		return command.Errorf(i18n.T("admin.no_such_room", "room", roomID))
	}

	sess := ctx.Session
	player := sess.Player()
	from := sess.Coord()

	g.router.BroadcastAt(from,
		i18n.T("admin.vanishes", "player", player.DisplayName), sess.ID)

	sess.SetCoord(target.Coord)
	player.LastRoomID = target.ID
	g.savePlayer(player)

	g.router.BroadcastAt(target.Coord,
		i18n.T("admin.appears", "player", player.DisplayName), sess.ID)

	g.bus.Publish(event.New(event.PlayerMoved).
		WithSource(sess.ID).
		WithRoom(target.ID).
		WithCoord(target.Coord.X, target.Coord.Y).
		WithData("teleport", true))

	g.PushRoomView(sess)
	return command.Result{Type: command.ResultSuccess}
}

// handleKick disconnects another player. Admins cannot kick themselves
// or each other.
func (g *GameServer) handleKick(ctx *command.Context) command.Result {
	name := ctx.Arg(0)
	if name == "" {
		return command.Errorf(i18n.T("admin.kick_usage"))
	}
	target, ok := g.sessions.ByPlayerName(name)
	if !ok {
		return command.Errorf(i18n.T("admin.player_offline", "target", name))
	}
	if target.ID == ctx.Session.ID {
		return command.Errorf(i18n.T("admin.kick_self"))
	}
	if target.IsAdmin() {
		return command.Errorf(i18n.T("admin.kick_admin"))
	}

	reason := ctx.ArgsFrom(1)
	if reason == "" {
		reason = "kicked by an administrator"
	}
	target.Close(reason)

	g.logger.Info("player kicked",
		zap.String("admin", ctx.Session.PlayerName()),
		zap.String("target", target.PlayerName()),
		zap.String("reason", reason),
	)
	return command.Success(i18n.T("admin.kicked", "target", target.PlayerName()))
}

func (g *GameServer) handleCreateRoom(ctx *command.Context) command.Result {
	id := ctx.Arg(0)
	x, errX := strconv.Atoi(ctx.Arg(1))
	y, errY := strconv.Atoi(ctx.Arg(2))
	desc := ctx.ArgsFrom(3)
	if id == "" || errX != nil || errY != nil || desc == "" {
		return command.Errorf(i18n.T("admin.createroom_usage"))
	}

	room := &world.Room{
		ID:           id,
		Coord:        world.Coord{X: x, Y: y},
		Descriptions: i18n.Strings{ctx.Session.Locale(): desc},
	}
	if err := g.rooms.CreateRoom(room); err != nil {
		return command.Errorf(i18n.T("admin.room_error", "reason", err.Error()))
	}

	g.bus.Publish(event.New(event.WorldUpdated).
		WithSource(ctx.Session.ID).
		WithRoom(id).
		WithData("action", "create_room"))
	return command.Success(i18n.T("admin.room_created", "room", id, "coord", room.Coord.String()))
}

// handleEditRoom replaces a room's description in the admin's locale.
func (g *GameServer) handleEditRoom(ctx *command.Context) command.Result {
	id := ctx.Arg(0)
	desc := ctx.ArgsFrom(1)
	if id == "" || desc == "" {
		return command.Errorf(i18n.T("admin.editroom_usage"))
	}

	loc := ctx.Session.Locale()
	err := g.rooms.UpdateRoom(id, func(r *world.Room) {
		if r.Descriptions == nil {
			r.Descriptions = i18n.Strings{}
		}
		r.Descriptions[loc] = desc
	})
	if err != nil {
		return command.Errorf(i18n.T("admin.room_error", "reason", err.Error()))
	}

	g.bus.Publish(event.New(event.WorldUpdated).
		WithSource(ctx.Session.ID).
		WithRoom(id).
		WithData("action", "edit_room"))
	return command.Success(i18n.T("admin.room_updated", "room", id))
}

// handleDeleteRoom removes an empty room. Occupied rooms are refused so
// nobody is stranded off-grid.
func (g *GameServer) handleDeleteRoom(ctx *command.Context) command.Result {
	id := ctx.Arg(0)
	if id == "" {
		return command.Errorf(i18n.T("admin.deleteroom_usage"))
	}
	room, ok := g.rooms.GetRoom(id)
	if !ok {
		return command.Errorf(i18n.T("admin.no_such_room", "room", id))
	}
	if occupants := g.sessions.AtCoord(room.Coord); len(occupants) > 0 {
		return command.Errorf(i18n.T("admin.room_occupied", "room", id,
			"count", fmt.Sprintf("%d", len(occupants))))
	}

	if err := g.rooms.DeleteRoom(id); err != nil {
		return command.Errorf(i18n.T("admin.room_error", "reason", err.Error()))
	}

	g.bus.Publish(event.New(event.WorldUpdated).
		WithSource(ctx.Session.ID).
		WithRoom(id).
		WithData("action", "delete_room"))
	return command.Success(i18n.T("admin.room_deleted", "room", id))
}

// handleCreateExit links two rooms with an enter portal. Cardinal
// neighbors already have a derived exit and are refused.
func (g *GameServer) handleCreateExit(ctx *command.Context) command.Result {
	fromID, toID := ctx.Arg(0), ctx.Arg(1)
	if fromID == "" || toID == "" {
		return command.Errorf(i18n.T("admin.createexit_usage"))
	}
	from, ok := g.rooms.GetRoom(fromID)
	if !ok {
		return command.Errorf(i18n.T("admin.no_such_room", "room", fromID))
	}
	to, ok := g.rooms.GetRoom(toID)
	if !ok {
		return command.Errorf(i18n.T("admin.no_such_room", "room", toID))
	}

	for _, dir := range world.Cardinals {
		delta, _ := dir.Delta()
		if from.Coord.Add(delta) == to.Coord {
			return command.Errorf(i18n.T("admin.exit_already_derived",
				"from", fromID, "to", toID, "direction", string(dir)))
		}
	}

	if err := g.rooms.SetPortal(from.Coord, to.Coord); err != nil {
		return command.Errorf(i18n.T("admin.room_error", "reason", err.Error()))
	}

	g.bus.Publish(event.New(event.WorldUpdated).
		WithSource(ctx.Session.ID).
		WithRoom(fromID).
		WithData("action", "create_exit").
		WithData("to", toID))
	return command.Success(i18n.T("admin.exit_created", "from", fromID, "to", toID))
}

// handleCreateObject instantiates an object template into the admin's
// current room.
func (g *GameServer) handleCreateObject(ctx *command.Context) command.Result {
	templateID := ctx.Arg(0)
	if templateID == "" {
		return command.Errorf(i18n.T("admin.createobject_usage"))
	}
	room, ok := g.rooms.GetRoomAt(ctx.Session.Coord())
	if !ok {
		return command.Errorf(i18n.T("view.nowhere"))
	}

	obj, err := g.objects.Instantiate(templateID, object.RoomLocation(room.ID))
	if err != nil {
		return command.Errorf(i18n.T("admin.object_error", "reason", err.Error()))
	}

	g.bus.Publish(event.New(event.WorldUpdated).
		WithSource(ctx.Session.ID).
		WithRoom(room.ID).
		WithData("action", "create_object").
		WithData("object_id", obj.ID))
	return command.Success(i18n.T("admin.object_created").WithName("item", obj.Names))
}

// handleSpawnMonster spawns a monster template at the admin's
// coordinate, subject to the template's caps.
func (g *GameServer) handleSpawnMonster(ctx *command.Context) command.Result {
	templateID := ctx.Arg(0)
	if templateID == "" {
		return command.Errorf(i18n.T("admin.spawnmonster_usage"))
	}

	c := ctx.Session.Coord()
	inst, err := g.monsters.Spawn(templateID, c)
	if err != nil {
		return command.Errorf(i18n.T("admin.monster_error", "reason", err.Error()))
	}

	g.bus.Publish(event.New(event.MonsterSpawned).
		WithSource(ctx.Session.ID).
		WithTarget(inst.ID).
		WithCoord(c.X, c.Y))
	g.router.BroadcastAt(c,
		i18n.T("monster.arrives").WithName("monster", inst.Names), ctx.Session.ID)
	return command.Success(i18n.T("admin.monster_spawned").WithName("monster", inst.Names))
}

// handleScheduler is the admin surface over the wall-clock scheduler:
// list, info <name>, enable <name>, disable <name>.
func (g *GameServer) handleScheduler(ctx *command.Context) command.Result {
	if g.sched == nil {
		return command.Errorf(i18n.T("admin.no_scheduler"))
	}

	sub := strings.ToLower(ctx.Arg(0))
	name := ctx.Arg(1)
	switch sub {
	case "", "list":
		sess := ctx.Session
		_ = sess.WriteLine(g.render(sess, i18n.T("admin.scheduler_header")))
		for _, ev := range g.sched.List() {
			_ = sess.WriteLine(fmt.Sprintf("  %s  enabled=%t  intervals=%v  runs=%d  errors=%d",
				ev.Name, ev.Enabled, ev.Intervals, ev.RunCount, ev.ErrorCount))
		}
		return command.Result{Type: command.ResultInfo}

	case "info":
		if name == "" {
			return command.Errorf(i18n.T("admin.scheduler_usage"))
		}
		ev, ok := g.sched.Info(name)
		if !ok {
			return command.Errorf(i18n.T("admin.no_such_event", "name", name))
		}
		last := "never"
		if !ev.LastRun.IsZero() {
			last = ev.LastRun.Format("15:04:05")
		}
		return command.Info(i18n.T("admin.scheduler_info",
			"name", ev.Name,
			"enabled", fmt.Sprintf("%t", ev.Enabled),
			"intervals", fmt.Sprintf("%v", ev.Intervals),
			"runs", fmt.Sprintf("%d", ev.RunCount),
			"errors", fmt.Sprintf("%d", ev.ErrorCount),
			"last_run", last))

	case "enable", "disable":
		if name == "" {
			return command.Errorf(i18n.T("admin.scheduler_usage"))
		}
		if err := g.sched.SetEnabled(name, sub == "enable"); err != nil {
			return command.Errorf(i18n.T("admin.no_such_event", "name", name))
		}
		g.logger.Info("scheduler event toggled",
			zap.String("admin", ctx.Session.PlayerName()),
			zap.String("event", name),
			zap.Bool("enabled", sub == "enable"),
		)
		return command.Success(i18n.T("admin.scheduler_toggled", "name", name, "state", sub+"d"))

	default:
		return command.Errorf(i18n.T("admin.scheduler_usage"))
	}
}

// handleValidate runs the world integrity sweep: orphaned objects are
// returned to the default room and over-cap monsters are culled.
func (g *GameServer) handleValidate(ctx *command.Context) command.Result {
	moved := g.objects.SweepOrphans(g, g.cfg.DefaultRoomID)
	culled := g.monsters.CullOverCap()

	g.logger.Info("world validation ran",
		zap.String("admin", ctx.Session.PlayerName()),
		zap.Int("objects_moved", moved),
		zap.Int("monsters_culled", len(culled)),
	)
	return command.Success(i18n.T("admin.validated",
		"objects", fmt.Sprintf("%d", moved),
		"monsters", fmt.Sprintf("%d", len(culled))))
}
