package gameserver

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/scheduler"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
	"github.com/cory-johannsen/gridmud/internal/telnet"
)

// factionColor buckets an entity for display: same faction reads as
// friendly, unaffiliated on either side reads as neutral, anything else
// as hostile.
func factionColor(viewer, other string) string {
	switch {
	case viewer == other:
		return telnet.BrightGreen
	case viewer == "" || other == "":
		return telnet.Yellow
	default:
		return telnet.Red
	}
}

// PushRoomView renders the full room view for one session and refreshes
// its numeric-handle table. Implements the combat engine's ViewPusher.
//
// Postcondition: The session's handle table indexes exactly the entities
// listed, in display order, starting at 1.
func (g *GameServer) PushRoomView(sess *session.Session) {
	loc := sess.Locale()
	c := sess.Coord()
	room, ok := g.rooms.GetRoomAt(c)
	if !ok {
		_ = sess.WriteLine("❌ " + g.render(sess, i18n.T("view.nowhere")))
		return
	}

	write := func(line string) { _ = sess.WriteLine(line) }

	write("")
	write(telnet.Colorize(telnet.BrightWhite, room.Description(loc)))
	write(g.phaseLine(sess))
	write(g.exitsLine(sess, room))

	handles := make(map[int]session.Handle)
	idx := 1

	var viewerFaction string
	if player := sess.Player(); player != nil {
		viewerFaction = player.FactionID
	}

	others := g.sessions.AtCoord(c)
	var playerLines []string
	for _, other := range others {
		if other.ID == sess.ID {
			continue
		}
		handles[idx] = session.Handle{Kind: session.HandlePlayer, ID: other.PlayerID(), Name: other.PlayerName()}
		otherFaction := ""
		if p := other.Player(); p != nil {
			otherFaction = p.FactionID
		}
		playerLines = append(playerLines,
			telnet.Colorf(factionColor(viewerFaction, otherFaction), "  [%d] %s", idx, other.PlayerName()))
		idx++
	}
	if len(playerLines) > 0 {
		write(g.render(sess, i18n.T("view.players")))
		for _, line := range playerLines {
			write(line)
		}
	}

	roomObjects := g.objects.GetObjectsIn(object.RoomLocation(room.ID))
	if len(roomObjects) > 0 {
		write(g.render(sess, i18n.T("view.objects")))
		for _, obj := range roomObjects {
			handles[idx] = session.Handle{Kind: session.HandleObject, ID: obj.ID, Name: obj.Name(loc)}
			write(telnet.Colorf(telnet.White, "  [%d] %s", idx, obj.Name(loc)))
			idx++
		}
	}

	npcsHere := g.npcs.ActiveAt(c)
	if len(npcsHere) > 0 {
		write(g.render(sess, i18n.T("view.npcs")))
		for _, n := range npcsHere {
			handles[idx] = session.Handle{Kind: session.HandleNPC, ID: n.ID, Name: n.Name(loc)}
			write(telnet.Colorf(factionColor(viewerFaction, n.FactionID), "  [%d] %s", idx, n.Name(loc)))
			idx++
		}
	}

	monstersHere := g.monsters.AliveAt(c)
	if len(monstersHere) > 0 {
		write(g.render(sess, i18n.T("view.monsters")))
		for _, m := range monstersHere {
			handles[idx] = session.Handle{Kind: session.HandleMonster, ID: m.ID, Name: m.Name(loc)}
			write(telnet.Colorf(telnet.Red, "  [%d] %s", idx, m.Name(loc)))
			idx++
		}
	}

	sess.SetHandles(handles)
}

// phaseLine renders the day/night line in its phase color.
func (g *GameServer) phaseLine(sess *session.Session) string {
	if g.daynight == nil {
		return ""
	}
	if g.daynight.Current() == scheduler.PhaseNight {
		return telnet.Colorize(telnet.BrightBlue, g.render(sess, i18n.T("time.night")))
	}
	return telnet.Colorize(telnet.BrightYellow, g.render(sess, i18n.T("time.day")))
}

// exitsLine lists the derived exits in cardinal order, then enter.
func (g *GameServer) exitsLine(sess *session.Session, room *world.Room) string {
	exits, err := g.rooms.ComputeExits(room.ID)
	if err != nil || len(exits) == 0 {
		return telnet.Colorize(telnet.Cyan, g.render(sess, i18n.T("view.no_exits")))
	}

	var names []string
	for _, dir := range world.Cardinals {
		if _, ok := exits[dir]; ok {
			names = append(names, string(dir))
		}
	}
	if _, ok := exits[world.Enter]; ok {
		names = append(names, string(world.Enter))
	}
	return telnet.Colorize(telnet.Cyan,
		g.render(sess, i18n.T("view.exits", "list", strings.Join(names, ", "))))
}

// describeHandle writes the detail view of one handle-table entry.
func (g *GameServer) describeHandle(sess *session.Session, h session.Handle) i18n.Text {
	loc := sess.Locale()
	switch h.Kind {
	case session.HandlePlayer:
		if other, ok := g.sessions.ByPlayerName(h.Name); ok {
			if p := other.Player(); p != nil {
				return i18n.T("look.player",
					"name", p.DisplayName,
					"level", fmt.Sprintf("%d", p.Stats.Level))
			}
		}
		return i18n.T("look.gone")

	case session.HandleObject:
		if obj, ok := g.objects.Get(h.ID); ok {
			return i18n.Raw(obj.Description(loc))
		}
		return i18n.T("look.gone")

	case session.HandleNPC:
		if n, ok := g.npcs.Get(h.ID); ok {
			return i18n.Raw(n.Description(loc))
		}
		return i18n.T("look.gone")

	case session.HandleMonster:
		if m, ok := g.monsters.Get(h.ID); ok && m.Alive {
			return i18n.T("look.monster",
				"description", m.Description(loc),
				"hp", fmt.Sprintf("%d", m.HP),
				"max_hp", fmt.Sprintf("%d", m.Stats.MaxHP))
		}
		return i18n.T("look.gone")
	}
	return i18n.T("look.gone")
}
