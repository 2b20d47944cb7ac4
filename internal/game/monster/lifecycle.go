package monster

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/game/dice"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// Narrator fans monster narration out to the sessions at a coordinate.
// The broadcast router implements this.
type Narrator interface {
	BroadcastAt(c world.Coord, msg i18n.Text, excludeSessionIDs ...string)
}

// Lifecycle runs the periodic monster passes: respawn, initial spawn,
// and roaming. It is registered as a named scheduler event so admins can
// disable spawning for maintenance.
type Lifecycle struct {
	manager *Manager
	rooms   *world.Store
	narrate Narrator
	src     dice.Source
	spawns  []SpawnPoint
	logger  *zap.Logger
}

// NewLifecycle creates the lifecycle runner. narrate may be nil, which
// silences roam narration.
//
// Precondition: manager, rooms, src, and logger must be non-nil.
func NewLifecycle(manager *Manager, rooms *world.Store, narrate Narrator, src dice.Source, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		manager: manager,
		rooms:   rooms,
		narrate: narrate,
		src:     src,
		logger:  logger,
	}
}

// SetSpawnPoints replaces the spawn point table.
func (l *Lifecycle) SetSpawnPoints(points []SpawnPoint) {
	l.spawns = points
}

// Tick runs the three passes. Wired to the scheduler's 30-second cadence.
func (l *Lifecycle) Tick(now time.Time) error {
	l.respawnPass(now)
	l.spawnPass()
	l.roamPass()
	return nil
}

// respawnPass revives dead monsters whose respawn delay has elapsed.
func (l *Lifecycle) respawnPass(now time.Time) {
	for _, inst := range l.manager.All() {
		if inst.Alive || inst.DiedAt.IsZero() {
			continue
		}
		if now.Sub(inst.DiedAt) < inst.RespawnDelay {
			continue
		}
		if err := l.manager.Respawn(inst.ID); err != nil {
			l.logger.Error("respawn failed", zap.String("monster_id", inst.ID), zap.Error(err))
		}
	}
}

// spawnPass fills spawn points up to their per-room and global limits.
func (l *Lifecycle) spawnPass() {
	for _, point := range l.spawns {
		room, ok := l.rooms.GetRoom(point.RoomID)
		if !ok {
			l.logger.Error("spawn point references missing room",
				zap.String("room_id", point.RoomID),
				zap.String("template_id", point.TemplateID),
			)
			continue
		}
		if l.manager.AliveCountAt(point.TemplateID, room.Coord) >= point.MaxPerRoom {
			continue
		}
		if !l.chance(point.SpawnChance) {
			continue
		}
		if !l.manager.UnderGlobalCap(point.TemplateID) {
			continue
		}
		if _, err := l.manager.Spawn(point.TemplateID, room.Coord); err != nil {
			l.logger.Error("spawn failed",
				zap.String("template_id", point.TemplateID),
				zap.String("room_id", point.RoomID),
				zap.Error(err),
			)
		}
	}
}

// roamPass moves wandering monsters one step within their area box.
func (l *Lifecycle) roamPass() {
	for _, inst := range l.manager.All() {
		if !inst.Alive || inst.InCombat || inst.Roaming == nil {
			continue
		}
		if inst.Behavior != Roaming && inst.Behavior != Territorial {
			continue
		}
		if !l.chance(inst.Roaming.Chance) {
			continue
		}
		dest, dir, ok := l.pickExit(inst)
		if !ok {
			continue
		}
		from := inst.Coord
		if err := l.manager.Move(inst.ID, dest.Coord); err != nil {
			l.logger.Error("roam move failed", zap.String("monster_id", inst.ID), zap.Error(err))
			continue
		}
		if l.narrate != nil {
			l.narrate.BroadcastAt(from,
				i18n.T("monster.leaves", "direction", string(dir)).WithName("name", inst.Names))
			l.narrate.BroadcastAt(dest.Coord,
				i18n.T("monster.arrives", "direction", string(dir.Opposite())).WithName("name", inst.Names))
		}
	}
}

// pickExit chooses a random cardinal exit whose destination lies within
// the monster's area box.
func (l *Lifecycle) pickExit(inst *Instance) (*world.Room, world.Direction, bool) {
	type option struct {
		room *world.Room
		dir  world.Direction
	}
	var options []option
	for _, dir := range world.Cardinals {
		dest, ok := l.rooms.ResolveExit(inst.Coord, dir)
		if !ok {
			continue
		}
		if !inst.Roaming.Contains(dest.Coord) {
			continue
		}
		options = append(options, option{room: dest, dir: dir})
	}
	if len(options) == 0 {
		return nil, "", false
	}
	chosen := options[l.src.Intn(len(options))]
	return chosen.room, chosen.dir, true
}

// chance rolls a probability in [0, 1].
func (l *Lifecycle) chance(p float64) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return l.src.Intn(10000) < int(p*10000)
}
