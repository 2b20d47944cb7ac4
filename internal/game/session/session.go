// Package session tracks per-connection state and enforces the
// one-player-one-session invariant: logging in from a second connection
// evicts the older session before the new one is registered.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// Stats is a player's ability score block.
type Stats struct {
	Strength     int `json:"strength" yaml:"strength"`
	Dexterity    int `json:"dexterity" yaml:"dexterity"`
	Constitution int `json:"constitution" yaml:"constitution"`
	Intelligence int `json:"intelligence" yaml:"intelligence"`
	Wisdom       int `json:"wisdom" yaml:"wisdom"`
	Charisma     int `json:"charisma" yaml:"charisma"`
	Level        int `json:"level" yaml:"level"`
	HP           int `json:"hp" yaml:"hp"`
	MaxHP        int `json:"max_hp" yaml:"max_hp"`
	Gold         int `json:"gold" yaml:"gold"`
}

// Modifier converts an ability score to its bonus, (score-10)/2 rounded down.
func Modifier(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	return -((11 - score) / 2)
}

// DefaultStats is the block assigned to a freshly registered player.
func DefaultStats() Stats {
	return Stats{
		Strength:     10,
		Dexterity:    10,
		Constitution: 10,
		Intelligence: 10,
		Wisdom:       10,
		Charisma:     10,
		Level:        1,
		HP:           20,
		MaxHP:        20,
	}
}

// Player is the authenticated identity bound to a session.
type Player struct {
	ID             string
	Username       string
	DisplayName    string
	LastNameChange time.Time
	Locale         i18n.Locale
	IsAdmin        bool
	LastRoomID     string
	Stats          Stats
	FactionID      string
	QuestProgress  map[string]int
	QuestsDone     map[string]bool
}

// Writer delivers rendered lines to the session's connection. Implemented
// by the telnet frontend; tests substitute a buffer.
type Writer interface {
	WriteLine(line string) error
}

// Session is one connection's state. The owning game-loop goroutine is
// the only writer of most fields, but broadcast and combat touch sessions
// from other goroutines, so all access goes through the mutex.
type Session struct {
	// ID uniquely identifies this session.
	ID string
	// ConnectedAt is when the connection was accepted.
	ConnectedAt time.Time

	mu          sync.RWMutex
	player      *Player
	coord       world.Coord
	locale      i18n.Locale
	inCombat    bool
	combatID    string
	following   string
	lastCommand string
	lastActive  time.Time
	handles     map[int]Handle
	writer      Writer
	closed      bool
	closeReason string
	closeHook   func(reason string)
}

// HandleKind classifies a numeric-handle entry in a room view.
type HandleKind string

const (
	HandlePlayer  HandleKind = "player"
	HandleObject  HandleKind = "object"
	HandleNPC     HandleKind = "npc"
	HandleMonster HandleKind = "monster"
)

// Handle maps one numeric index of the last room view to an entity.
type Handle struct {
	Kind HandleKind
	ID   string
	Name string
}

// New creates an unauthenticated session writing to w.
func New(w Writer, defaultLocale i18n.Locale) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.New().String(),
		ConnectedAt: now,
		locale:      defaultLocale,
		lastActive:  now,
		handles:     make(map[int]Handle),
		writer:      w,
	}
}

// Player returns the authenticated player, or nil.
func (s *Session) Player() *Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.player
}

// Authenticated reports whether a player is bound to this session.
func (s *Session) Authenticated() bool {
	return s.Player() != nil
}

// Bind attaches a player to the session and adopts the player's locale.
func (s *Session) Bind(p *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = p
	if p != nil && p.Locale != "" {
		s.locale = p.Locale
	}
}

// Coord returns the session's current coordinates.
func (s *Session) Coord() world.Coord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coord
}

// SetCoord updates the session's current coordinates.
func (s *Session) SetCoord(c world.Coord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord = c
}

// Locale returns the session's render locale.
func (s *Session) Locale() i18n.Locale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locale
}

// SetLocale updates the render locale and mirrors it onto the player.
func (s *Session) SetLocale(loc i18n.Locale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = loc
	if s.player != nil {
		s.player.Locale = loc
	}
}

// InCombat reports the session's combat flag and combat id.
func (s *Session) InCombat() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inCombat, s.combatID
}

// SetCombat sets or clears the combat flag. Only the combat engine calls
// this.
func (s *Session) SetCombat(inCombat bool, combatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inCombat = inCombat
	s.combatID = combatID
}

// Following returns the display name of the player being followed, or "".
func (s *Session) Following() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.following
}

// SetFollowing sets the follow link; empty clears it.
func (s *Session) SetFollowing(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.following = name
}

// LastCommand returns the stored input for "." repeat.
func (s *Session) LastCommand() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCommand
}

// SetLastCommand stores the raw input for "." repeat.
func (s *Session) SetLastCommand(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCommand = raw
}

// Touch records activity for the idle reaper.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// LastActive returns the last activity timestamp.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// SetHandles replaces the numeric-handle table. Called on every room view
// render.
func (s *Session) SetHandles(handles map[int]Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = handles
}

// Handle resolves a numeric handle from the last room view.
func (s *Session) Handle(n int) (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[n]
	return h, ok
}

// WriteLine delivers a rendered line to the connection. Writes to a
// closed session are silently dropped.
func (s *Session) WriteLine(line string) error {
	s.mu.RLock()
	w := s.writer
	closed := s.closed
	s.mu.RUnlock()
	if closed || w == nil {
		return nil
	}
	return w.WriteLine(line)
}

// SetCloseHook registers a callback invoked when the session closes.
// The frontend uses it to deliver the close notice and shut the
// connection even while the game loop is blocked reading.
func (s *Session) SetCloseHook(hook func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHook = hook
}

// Close marks the session closed with a reason. Idempotent; the first
// reason wins, and the close hook fires at most once, outside the lock.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeReason = reason
	hook := s.closeHook
	s.mu.Unlock()

	if hook != nil {
		hook(reason)
	}
}

// Closed reports whether the session has been closed and why.
func (s *Session) Closed() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed, s.closeReason
}

// PlayerName returns the display name of the bound player, or "".
func (s *Session) PlayerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.player == nil {
		return ""
	}
	return s.player.DisplayName
}

// PlayerID returns the id of the bound player, or "".
func (s *Session) PlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.player == nil {
		return ""
	}
	return s.player.ID
}

// IsAdmin reports whether the bound player is an admin.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.player != nil && s.player.IsAdmin
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.New().String()
}
