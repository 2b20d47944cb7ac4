package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// EvictNotice is the close reason handed to a session displaced by a
// duplicate login.
const EvictNotice = "logged in elsewhere"

// Manager is the session registry. Sessions are indexed by session id
// and, once authenticated, by player id. Registering a player id that is
// already held evicts the older session first.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byPlayer map[string]*Session

	logger *zap.Logger
}

// NewManager creates an empty Manager.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		byPlayer: make(map[string]*Session),
		logger:   logger,
	}
}

// Add registers an unauthenticated session.
//
// Postcondition: Returns an error on a duplicate session id.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %q already registered", s.ID)
	}
	m.sessions[s.ID] = s
	m.logger.Debug("session registered", zap.String("session_id", s.ID))
	return nil
}

// Authenticate binds a player to a session and claims the player-id
// index. If another session already holds this player id, that session
// is notified, closed, and unindexed before the new binding takes
// effect, so at most one authenticated session per player exists at any
// observation point.
//
// Postcondition: Returns the evicted session, or nil if there was none.
func (m *Manager) Authenticate(s *Session, p *Player) *Session {
	m.mu.Lock()
	evicted := m.byPlayer[p.ID]
	if evicted == s {
		evicted = nil
	}
	if evicted != nil {
		delete(m.byPlayer, p.ID)
	}
	s.Bind(p)
	m.byPlayer[p.ID] = s
	m.mu.Unlock()

	if evicted != nil {
		evicted.Close(EvictNotice)
		m.logger.Info("duplicate login evicted older session",
			zap.String("player_id", p.ID),
			zap.String("evicted_session", evicted.ID),
			zap.String("new_session", s.ID),
		)
	}
	return evicted
}

// Remove unregisters a session from both indexes and clears follow links
// that pointed at its player.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sessionID)
	name := s.PlayerName()
	if pid := s.PlayerID(); pid != "" && m.byPlayer[pid] == s {
		delete(m.byPlayer, pid)
	}
	var followers []*Session
	if name != "" {
		for _, other := range m.sessions {
			if strings.EqualFold(other.Following(), name) {
				followers = append(followers, other)
			}
		}
	}
	m.mu.Unlock()

	for _, f := range followers {
		f.SetFollowing("")
	}
	m.logger.Debug("session removed",
		zap.String("session_id", sessionID),
		zap.Int("follow_links_cleared", len(followers)),
	)
}

// Get looks up a session by id.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// ByPlayerID looks up the authenticated session for a player id.
func (m *Manager) ByPlayerID(playerID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byPlayer[playerID]
	return s, ok
}

// ByPlayerName looks up an authenticated session by display name,
// case-insensitively.
func (m *Manager) ByPlayerName(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.byPlayer {
		if strings.EqualFold(s.PlayerName(), name) {
			return s, true
		}
	}
	return nil, false
}

// All returns a snapshot of every session.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Authenticated returns the authenticated sessions sorted by player name.
func (m *Manager) Authenticated() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.byPlayer))
	for _, s := range m.byPlayer {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlayerName() < out[j].PlayerName()
	})
	return out
}

// AtCoord returns the authenticated sessions whose coordinates equal c.
func (m *Manager) AtCoord(c world.Coord) []*Session {
	out := m.Authenticated()
	filtered := out[:0]
	for _, s := range out {
		if s.Coord() == c {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// FollowersOf returns authenticated sessions whose follow link points at
// name and whose coordinates equal from.
func (m *Manager) FollowersOf(name string, from world.Coord) []*Session {
	var out []*Session
	for _, s := range m.Authenticated() {
		if strings.EqualFold(s.Following(), name) && s.Coord() == from {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LocaleOf is a convenience that returns a session's locale or the given
// fallback for nil sessions.
func LocaleOf(s *Session, fallback i18n.Locale) i18n.Locale {
	if s == nil {
		return fallback
	}
	return s.Locale()
}
