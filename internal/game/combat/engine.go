package combat

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/game/command"
	"github.com/cory-johannsen/gridmud/internal/game/dice"
	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// unarmedDamage is rolled when the player has no weapon equipped.
var unarmedDamage = dice.MustParse("1d4")

// monsterDamage is the stat-derived monster damage die.
var monsterDamage = dice.MustParse("1d6")

// fleeThreshold is the HP ratio below which a monster tries to flee.
const fleeThreshold = 0.2

// Messenger delivers combat narration. The broadcast router implements
// this.
type Messenger interface {
	Send(sess *session.Session, msg i18n.Text)
	BroadcastAt(c world.Coord, msg i18n.Text, excludeSessionIDs ...string)
}

// ViewPusher re-renders the room view for a session after combat ends.
type ViewPusher interface {
	PushRoomView(sess *session.Session)
}

// Config tunes the engine.
type Config struct {
	// TurnTimeout is how long a player may deliberate before the turn
	// defaults to attack.
	TurnTimeout time.Duration
	// FleeBaseChance is the flee probability at equal dexterity.
	FleeBaseChance float64
	// RespawnRoomID is where dead players wake up.
	RespawnRoomID string
}

// Engine owns the active-combat registry and resolves the combat-only
// verbs for the dispatcher.
type Engine struct {
	cfg      Config
	sessions *session.Manager
	monsters *monster.Manager
	objects  *object.Manager
	rooms    *world.Store
	roller   *dice.Roller
	msg      Messenger
	views    ViewPusher
	logger   *zap.Logger

	mu       sync.Mutex
	combats  map[string]*Combat
	byPlayer map[string]string

	wg sync.WaitGroup
}

// NewEngine creates an Engine. views may be nil.
//
// Precondition: all other collaborators must be non-nil.
func NewEngine(cfg Config, sessions *session.Manager, monsters *monster.Manager, objects *object.Manager, rooms *world.Store, roller *dice.Roller, msg Messenger, logger *zap.Logger) *Engine {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 30 * time.Second
	}
	if cfg.FleeBaseChance <= 0 {
		cfg.FleeBaseChance = 0.5
	}
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		monsters: monsters,
		objects:  objects,
		rooms:    rooms,
		roller:   roller,
		msg:      msg,
		logger:   logger,
		combats:  make(map[string]*Combat),
		byPlayer: make(map[string]string),
	}
}

// SetViewPusher wires in the room-view renderer after construction.
func (e *Engine) SetViewPusher(views ViewPusher) {
	e.views = views
}

// Start begins a combat between a session and a monster at the session's
// coordinates. Initiative is a d20 + dexterity modifier per side, ties
// broken by raw dexterity. Both combatants are flagged before the first
// turn runs.
//
// Postcondition: Returns an error if either side is already fighting or
// the monster is dead.
func (e *Engine) Start(sess *session.Session, inst *monster.Instance) (*Combat, error) {
	player := sess.Player()
	if player == nil {
		return nil, fmt.Errorf("session %q is not authenticated", sess.ID)
	}
	if inCombat, _ := sess.InCombat(); inCombat {
		return nil, fmt.Errorf("player %q is already in combat", player.DisplayName)
	}
	if !inst.Alive {
		return nil, fmt.Errorf("monster %q is not alive", inst.ID)
	}
	if inst.InCombat {
		return nil, fmt.Errorf("monster %q is already in combat", inst.ID)
	}

	c := newCombat(sess, inst)

	playerInit := dice.D20(e.roller.Source()) + session.Modifier(player.Stats.Dexterity)
	monsterInit := dice.D20(e.roller.Source()) + session.Modifier(inst.Stats.Dexterity)
	if playerInit > monsterInit ||
		(playerInit == monsterInit && player.Stats.Dexterity >= inst.Stats.Dexterity) {
		c.order = [2]sideKind{sidePlayer, sideMonster}
	} else {
		c.order = [2]sideKind{sideMonster, sidePlayer}
	}

	e.mu.Lock()
	if _, dup := e.byPlayer[player.ID]; dup {
		e.mu.Unlock()
		return nil, fmt.Errorf("player %q is already in combat", player.DisplayName)
	}
	e.combats[c.ID] = c
	e.byPlayer[player.ID] = c.ID
	e.mu.Unlock()

	sess.SetCombat(true, c.ID)
	if err := e.monsters.SetInCombat(inst.ID, true); err != nil {
		e.logger.Error("failed to claim monster for combat", zap.String("monster_id", inst.ID), zap.Error(err))
	}

	e.logger.Info("combat started",
		zap.String("combat_id", c.ID),
		zap.String("player", player.DisplayName),
		zap.String("monster_id", inst.ID),
		zap.Int("player_initiative", playerInit),
		zap.Int("monster_initiative", monsterInit),
	)
	e.msg.BroadcastAt(c.Coord,
		i18n.T("combat.started", "player", player.DisplayName).WithName("monster", inst.Names))

	e.wg.Add(1)
	go e.run(c)
	return c, nil
}

// CombatFor returns the running combat for a player id.
func (e *Engine) CombatFor(playerID string) (*Combat, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	c, ok := e.combats[id]
	return c, ok
}

// ResolveCombatAction implements command.CombatResolver. The returned
// handler feeds the action into the combat's turn loop.
func (e *Engine) ResolveCombatAction(combatID, verb string) (command.HandlerFunc, bool) {
	e.mu.Lock()
	c, ok := e.combats[combatID]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}

	var action Action
	switch verb {
	case "attack":
		action = ActionAttack
	case "defend":
		action = ActionDefend
	case "flee":
		action = ActionFlee
	default:
		return nil, false
	}

	return func(ctx *command.Context) command.Result {
		c.submit(action)
		return command.Info(i18n.T("combat.action_queued", "action", verb))
	}, true
}

// Abort cancels a player's running combat, if any, and waits for its
// turn loop to finish tearing down. Called on disconnect so a dead
// connection never leaves a combat cycling.
//
// Postcondition: Returns true if a combat was aborted; the player and
// monster flags are cleared before it returns.
func (e *Engine) Abort(playerID string) bool {
	c, ok := e.CombatFor(playerID)
	if !ok {
		return false
	}
	c.abort()
	<-c.done
	return true
}

// Stop aborts every running combat and waits for their loops to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	for _, c := range e.combats {
		c.abort()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// run is the per-combat turn loop.
func (e *Engine) run(c *Combat) {
	defer e.wg.Done()

	for {
		select {
		case <-c.stop:
			e.finish(c, OutcomeAborted)
			return
		default:
		}

		var outcome Outcome
		var done bool
		if c.currentSide() == sidePlayer {
			outcome, done = e.playerTurn(c)
		} else {
			outcome, done = e.monsterTurn(c)
		}
		if done {
			e.finish(c, outcome)
			return
		}
		c.advanceTurn()
	}
}

// playerTurn waits for the player's action and resolves it.
func (e *Engine) playerTurn(c *Combat) (Outcome, bool) {
	// Defend expires at the start of the defender's turn.
	c.playerDefending = false
	c.drainPending()

	e.msg.Send(c.Session, i18n.T("combat.your_turn", "round", fmt.Sprintf("%d", c.round)))

	action, ok := c.waitForPlayerAction(e.cfg.TurnTimeout)
	if !ok {
		return OutcomeAborted, true
	}

	switch action {
	case ActionDefend:
		c.playerDefending = true
		e.msg.Send(c.Session, i18n.T("combat.you_defend"))
		e.msg.BroadcastAt(c.Coord, i18n.T("combat.defends", "name", c.Session.PlayerName()), c.Session.ID)
		return "", false

	case ActionFlee:
		player := c.Session.Player()
		if e.fleeSucceeds(player.Stats.Dexterity, c.Monster.Stats.Dexterity) {
			e.msg.Send(c.Session, i18n.T("combat.you_flee"))
			e.msg.BroadcastAt(c.Coord, i18n.T("combat.flees", "name", player.DisplayName), c.Session.ID)
			return OutcomeFled, true
		}
		e.msg.Send(c.Session, i18n.T("combat.flee_failed"))
		return "", false

	default:
		return e.resolvePlayerAttack(c)
	}
}

// resolvePlayerAttack rolls the player's attack against the monster.
func (e *Engine) resolvePlayerAttack(c *Combat) (Outcome, bool) {
	player := c.Session.Player()
	attackBonus := session.Modifier(player.Stats.Strength) + player.Stats.Level/2
	roll := dice.D20(e.roller.Source()) + attackBonus

	ac := c.Monster.Stats.ArmorClass
	if ac == 0 {
		ac = 10 + session.Modifier(c.Monster.Stats.Dexterity)
	}

	if roll < ac {
		e.msg.Send(c.Session, i18n.T("combat.you_miss").WithName("monster", c.Monster.Names))
		e.msg.BroadcastAt(c.Coord,
			i18n.T("combat.misses", "attacker", player.DisplayName).WithName("defender", c.Monster.Names),
			c.Session.ID)
		return "", false
	}

	damage := e.roller.Roll(e.playerWeaponDamage(player)).Total() + session.Modifier(player.Stats.Strength)
	if damage < 1 {
		damage = 1
	}
	if c.monsterDefending {
		damage /= 2
		if damage < 1 {
			damage = 1
		}
	}

	remaining, err := e.monsters.ApplyDamage(c.Monster.ID, damage)
	if err != nil {
		e.logger.Error("failed to apply damage", zap.String("monster_id", c.Monster.ID), zap.Error(err))
		return "", false
	}

	e.msg.Send(c.Session,
		i18n.T("combat.you_hit", "damage", fmt.Sprintf("%d", damage)).WithName("monster", c.Monster.Names))
	e.msg.BroadcastAt(c.Coord,
		i18n.T("combat.hits",
			"attacker", player.DisplayName,
			"damage", fmt.Sprintf("%d", damage),
		).WithName("defender", c.Monster.Names),
		c.Session.ID)

	if remaining <= 0 {
		return OutcomeMonsterDied, true
	}
	return "", false
}

// monsterTurn chooses the monster's action deterministically and
// resolves it: flee below the HP threshold, attack otherwise.
func (e *Engine) monsterTurn(c *Combat) (Outcome, bool) {
	c.monsterDefending = false

	maxHP := c.Monster.Stats.MaxHP
	if maxHP > 0 && float64(c.Monster.HP)/float64(maxHP) < fleeThreshold {
		if e.fleeSucceeds(c.Monster.Stats.Dexterity, c.Session.Player().Stats.Dexterity) {
			e.msg.BroadcastAt(c.Coord, i18n.T("combat.monster_flees").WithName("monster", c.Monster.Names))
			return OutcomeFled, true
		}
		// Failed flee forfeits the turn.
		return "", false
	}

	player := c.Session.Player()
	attackBonus := session.Modifier(c.Monster.Stats.Strength) + c.Monster.Stats.Level/2
	roll := dice.D20(e.roller.Source()) + attackBonus
	ac := 10 + session.Modifier(player.Stats.Dexterity)

	if roll < ac {
		e.msg.Send(c.Session, i18n.T("combat.monster_misses").WithName("monster", c.Monster.Names))
		return "", false
	}

	damage := e.roller.Roll(monsterDamage).Total() + session.Modifier(c.Monster.Stats.Strength)
	if damage < 1 {
		damage = 1
	}
	if c.playerDefending {
		damage /= 2
		if damage < 1 {
			damage = 1
		}
	}

	player.Stats.HP -= damage
	e.msg.Send(c.Session,
		i18n.T("combat.monster_hits", "damage", fmt.Sprintf("%d", damage)).WithName("monster", c.Monster.Names))
	e.msg.BroadcastAt(c.Coord,
		i18n.T("combat.monster_hit_player",
			"damage", fmt.Sprintf("%d", damage),
			"defender", player.DisplayName,
		).WithName("attacker", c.Monster.Names),
		c.Session.ID)

	if player.Stats.HP <= 0 {
		return OutcomePlayerDied, true
	}
	return "", false
}

// playerWeaponDamage returns the damage die of the player's equipped
// weapon, or the unarmed die.
func (e *Engine) playerWeaponDamage(player *session.Player) dice.Expression {
	for _, obj := range e.objects.EquippedIn(player.ID) {
		if obj.Category != object.CategoryWeapon {
			continue
		}
		if raw, ok := obj.Property("damage"); ok {
			if expr, err := dice.Parse(raw); err == nil {
				return expr
			}
			e.logger.Warn("weapon has invalid damage expression",
				zap.String("object_id", obj.ID),
				zap.String("damage", raw),
			)
		}
	}
	return unarmedDamage
}

// fleeSucceeds rolls the flee chance: base probability shifted 5% per
// point of dexterity-modifier gap, clamped to [0.05, 0.95].
func (e *Engine) fleeSucceeds(fleeingDex, pursuingDex int) bool {
	gap := session.Modifier(fleeingDex) - session.Modifier(pursuingDex)
	chance := e.cfg.FleeBaseChance + 0.05*float64(gap)
	if chance < 0.05 {
		chance = 0.05
	}
	if chance > 0.95 {
		chance = 0.95
	}
	return e.roller.Source().Intn(10000) < int(chance*10000)
}

// finish tears a combat down: rewards, respawn, flag clearing, registry
// removal, and a post-combat room view.
func (e *Engine) finish(c *Combat, outcome Outcome) {
	defer close(c.done)
	player := c.Session.Player()

	switch outcome {
	case OutcomeMonsterDied:
		e.awardRewards(c)
		if err := e.monsters.MarkDead(c.Monster.ID); err != nil {
			e.logger.Error("failed to mark monster dead", zap.String("monster_id", c.Monster.ID), zap.Error(err))
		}
		e.msg.Send(c.Session, i18n.T("combat.victory").WithName("monster", c.Monster.Names))
		e.msg.BroadcastAt(c.Coord,
			i18n.T("combat.slain", "player", player.DisplayName).WithName("monster", c.Monster.Names),
			c.Session.ID)

	case OutcomePlayerDied:
		e.respawnPlayer(c)
		e.msg.BroadcastAt(c.Coord,
			i18n.T("combat.player_died", "player", player.DisplayName).WithName("monster", c.Monster.Names),
			c.Session.ID)

	case OutcomeFled, OutcomeAborted:
		// World state stays as it is.
	}

	c.Session.SetCombat(false, "")
	if c.Monster.Alive {
		if err := e.monsters.SetInCombat(c.Monster.ID, false); err != nil {
			e.logger.Error("failed to release monster", zap.String("monster_id", c.Monster.ID), zap.Error(err))
		}
	}

	e.mu.Lock()
	delete(e.combats, c.ID)
	if player != nil && e.byPlayer[player.ID] == c.ID {
		delete(e.byPlayer, player.ID)
	}
	e.mu.Unlock()

	c.abort()

	e.logger.Info("combat ended",
		zap.String("combat_id", c.ID),
		zap.String("outcome", string(outcome)),
		zap.Int("rounds", c.round),
	)
	if e.views != nil && outcome != OutcomeAborted {
		e.views.PushRoomView(c.Session)
	}
}

// awardRewards resolves the monster's drop table into the player's
// inventory and adds its gold.
func (e *Engine) awardRewards(c *Combat) {
	player := c.Session.Player()
	player.Stats.Gold += c.Monster.Gold
	if c.Monster.Gold > 0 {
		e.msg.Send(c.Session, i18n.T("combat.gold_awarded", "gold", fmt.Sprintf("%d", c.Monster.Gold)))
	}

	for _, drop := range c.Monster.Drops {
		if e.roller.Source().Intn(10000) >= int(drop.Chance*10000) {
			continue
		}
		qty := e.rollDropQuantity(drop)

		if tpl, ok := e.objects.Template(drop.TemplateID); ok && tpl.Stackable {
			obj, err := e.objects.InstantiateQuantity(drop.TemplateID, qty, object.InventoryLocation(player.ID))
			if err != nil {
				e.logger.Error("drop instantiation failed",
					zap.String("template_id", drop.TemplateID),
					zap.Error(err),
				)
				continue
			}
			// Merge into an existing stack; overflow lands on the ground.
			overflow := e.dropOverflowLocation(c.Coord)
			if got, err := e.objects.StackInto(obj.ID, player.ID, overflow, nil); err == nil {
				obj = got
			}
			e.msg.Send(c.Session, i18n.T("combat.loot").WithName("item", obj.Names))
			continue
		}

		for i := 0; i < qty; i++ {
			obj, err := e.objects.Instantiate(drop.TemplateID, object.InventoryLocation(player.ID))
			if err != nil {
				e.logger.Error("drop instantiation failed",
					zap.String("template_id", drop.TemplateID),
					zap.Error(err),
				)
				continue
			}
			e.msg.Send(c.Session, i18n.T("combat.loot").WithName("item", obj.Names))
		}
	}
}

// rollDropQuantity rolls a drop's quantity uniformly within its range.
func (e *Engine) rollDropQuantity(drop monster.DropEntry) int {
	lo, hi := drop.MinQuantity, drop.MaxQuantity
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	if hi == lo {
		return lo
	}
	return lo + e.roller.Source().Intn(hi-lo+1)
}

// dropOverflowLocation is where loot lands when the player cannot carry
// it: the room at the combat's coordinates, or the default room.
func (e *Engine) dropOverflowLocation(at world.Coord) object.Location {
	if room, ok := e.rooms.GetRoomAt(at); ok {
		return object.RoomLocation(room.ID)
	}
	if room, ok := e.rooms.DefaultRoom(); ok {
		return object.RoomLocation(room.ID)
	}
	return object.Location{}
}

// respawnPlayer moves a dead player to the respawn room at half HP.
func (e *Engine) respawnPlayer(c *Combat) {
	player := c.Session.Player()
	player.Stats.HP = player.Stats.MaxHP / 2
	if player.Stats.HP < 1 {
		player.Stats.HP = 1
	}

	room, ok := e.rooms.GetRoom(e.cfg.RespawnRoomID)
	if !ok {
		room, ok = e.rooms.DefaultRoom()
	}
	if ok {
		c.Session.SetCoord(room.Coord)
		player.LastRoomID = room.ID
	}
	e.msg.Send(c.Session, i18n.T("combat.you_died"))
}
