// Package combat runs turn-based fights between one player and one
// monster. Each combat owns a goroutine that drives the turn loop:
// initiative, action selection with timeout, resolution, and rewards.
package combat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/game/world"
)

// Action is a combat turn choice.
type Action string

const (
	ActionAttack Action = "attack"
	ActionDefend Action = "defend"
	ActionFlee   Action = "flee"
)

// Outcome is how a combat ended.
type Outcome string

const (
	OutcomeMonsterDied Outcome = "monster_died"
	OutcomePlayerDied  Outcome = "player_died"
	OutcomeFled        Outcome = "fled"
	OutcomeAborted     Outcome = "aborted"
)

// sideKind distinguishes the two combatant slots.
type sideKind int

const (
	sidePlayer sideKind = iota
	sideMonster
)

// Combat is one running fight. Fields other than the channels are
// touched only by the combat's own goroutine after initiative.
type Combat struct {
	// ID uniquely identifies this combat.
	ID string
	// Session is the player side.
	Session *session.Session
	// Monster is the monster side.
	Monster *monster.Instance
	// Coord is where the fight takes place.
	Coord world.Coord

	// order holds the two sides in initiative order.
	order [2]sideKind
	// turn indexes order cyclically.
	turn int
	// round counts completed cycles, starting at 1.
	round int
	// defending flags are set by a defend action and expire at the start
	// of that side's next turn.
	playerDefending  bool
	monsterDefending bool

	mu      sync.Mutex
	pending chan Action
	stop    chan struct{}
	stopped bool
	// done is closed once the engine has finished tearing the combat
	// down, so callers can wait for the flags to be cleared.
	done chan struct{}
}

// newCombat builds a combat in the Awaiting Action state.
func newCombat(sess *session.Session, m *monster.Instance) *Combat {
	return &Combat{
		ID:      uuid.New().String(),
		Session: sess,
		Monster: m,
		Coord:   sess.Coord(),
		round:   1,
		pending: make(chan Action, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// submit hands the player's chosen action to the turn loop. A second
// action before the loop consumes the first is dropped; the player picks
// again next turn.
func (c *Combat) submit(a Action) {
	select {
	case c.pending <- a:
	default:
	}
}

// abort wakes the turn loop for shutdown. Idempotent.
func (c *Combat) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stop)
}

// currentSide returns whose turn it is.
func (c *Combat) currentSide() sideKind {
	return c.order[c.turn%2]
}

// advanceTurn moves to the next side, bumping the round on wraparound.
func (c *Combat) advanceTurn() {
	c.turn++
	if c.turn%2 == 0 {
		c.round++
	}
}

// Round returns the current round number.
func (c *Combat) Round() int {
	return c.round
}

// waitForPlayerAction blocks until the player submits an action, the
// timeout elapses (auto-attack), or the combat is aborted.
func (c *Combat) waitForPlayerAction(timeout time.Duration) (Action, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case a := <-c.pending:
		return a, true
	case <-timer.C:
		return ActionAttack, true
	case <-c.stop:
		return "", false
	}
}

// drainPending discards a stale action left over from a previous turn.
func (c *Combat) drainPending() {
	select {
	case <-c.pending:
	default:
	}
}
