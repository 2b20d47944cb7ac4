package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

type nullWriter struct{}

func (nullWriter) WriteLine(string) error { return nil }

func testPlayer(id, name string) *Player {
	return &Player{
		ID:          id,
		Username:    name,
		DisplayName: name,
		Locale:      i18n.LocaleEN,
		Stats:       DefaultStats(),
	}
}

func TestModifier(t *testing.T) {
	tests := []struct {
		score int
		want  int
	}{
		{1, -5},
		{8, -1},
		{9, -1},
		{10, 0},
		{11, 0},
		{12, 1},
		{15, 2},
		{20, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("score_%d", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, Modifier(tt.score))
		})
	}
}

func TestAddAndGet(t *testing.T) {
	m := NewManager(zap.NewNop())
	s := New(nullWriter{}, i18n.LocaleEN)

	require.NoError(t, m.Add(s))
	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, s, got)

	require.Error(t, m.Add(s), "duplicate session id must be rejected")
}

func TestAuthenticateEvictsOlderSession(t *testing.T) {
	m := NewManager(zap.NewNop())
	older := New(nullWriter{}, i18n.LocaleEN)
	newer := New(nullWriter{}, i18n.LocaleEN)
	require.NoError(t, m.Add(older))
	require.NoError(t, m.Add(newer))

	p := testPlayer("p1", "alice")
	assert.Nil(t, m.Authenticate(older, p))

	evicted := m.Authenticate(newer, p)
	require.NotNil(t, evicted)
	assert.Equal(t, older.ID, evicted.ID)

	closed, reason := older.Closed()
	assert.True(t, closed)
	assert.Equal(t, EvictNotice, reason)

	current, ok := m.ByPlayerID("p1")
	require.True(t, ok)
	assert.Equal(t, newer.ID, current.ID)
}

func TestAuthenticateSameSessionTwice(t *testing.T) {
	m := NewManager(zap.NewNop())
	s := New(nullWriter{}, i18n.LocaleEN)
	require.NoError(t, m.Add(s))

	p := testPlayer("p1", "alice")
	assert.Nil(t, m.Authenticate(s, p))
	assert.Nil(t, m.Authenticate(s, p), "re-binding the same session must not evict it")

	closed, _ := s.Closed()
	assert.False(t, closed)
}

func TestCloseInvokesHookOnce(t *testing.T) {
	s := New(nullWriter{}, i18n.LocaleEN)

	var reasons []string
	s.SetCloseHook(func(reason string) { reasons = append(reasons, reason) })

	s.Close("idle timeout")
	s.Close("second reason")

	require.Len(t, reasons, 1, "the hook fires once, with the first reason")
	assert.Equal(t, "idle timeout", reasons[0])

	closed, reason := s.Closed()
	assert.True(t, closed)
	assert.Equal(t, "idle timeout", reason)
}

func TestEvictionFiresCloseHook(t *testing.T) {
	m := NewManager(zap.NewNop())
	older := New(nullWriter{}, i18n.LocaleEN)
	newer := New(nullWriter{}, i18n.LocaleEN)
	require.NoError(t, m.Add(older))
	require.NoError(t, m.Add(newer))

	var got string
	older.SetCloseHook(func(reason string) { got = reason })

	p := testPlayer("p1", "alice")
	require.Nil(t, m.Authenticate(older, p))
	require.NotNil(t, m.Authenticate(newer, p))

	assert.Equal(t, EvictNotice, got, "eviction reaches the hook immediately")
}

// At most one session per player id is authenticated regardless of how
// many logins race.
func TestSinglePlayerSessionInvariant(t *testing.T) {
	m := NewManager(zap.NewNop())
	p := testPlayer("p1", "alice")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		s := New(nullWriter{}, i18n.LocaleEN)
		require.NoError(t, m.Add(s))
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			m.Authenticate(s, p)
		}(s)
	}
	wg.Wait()

	open := 0
	for _, s := range m.All() {
		if closed, _ := s.Closed(); !closed && s.PlayerID() == "p1" {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestRemoveClearsFollowLinks(t *testing.T) {
	m := NewManager(zap.NewNop())
	leader := New(nullWriter{}, i18n.LocaleEN)
	follower := New(nullWriter{}, i18n.LocaleEN)
	require.NoError(t, m.Add(leader))
	require.NoError(t, m.Add(follower))
	m.Authenticate(leader, testPlayer("p1", "alice"))
	m.Authenticate(follower, testPlayer("p2", "bob"))
	follower.SetFollowing("alice")

	m.Remove(leader.ID)

	assert.Empty(t, follower.Following(), "follow link to removed player must be cleared")
	_, ok := m.ByPlayerID("p1")
	assert.False(t, ok)
}

func TestByPlayerName(t *testing.T) {
	m := NewManager(zap.NewNop())
	s := New(nullWriter{}, i18n.LocaleEN)
	require.NoError(t, m.Add(s))
	m.Authenticate(s, testPlayer("p1", "Alice"))

	got, ok := m.ByPlayerName("alice")
	require.True(t, ok)
	assert.Equal(t, s.ID, got.ID)

	_, ok = m.ByPlayerName("mallory")
	assert.False(t, ok)
}

func TestAtCoordAndFollowers(t *testing.T) {
	m := NewManager(zap.NewNop())
	origin := world.Coord{X: 0, Y: 0}
	elsewhere := world.Coord{X: 3, Y: 3}

	leader := New(nullWriter{}, i18n.LocaleEN)
	near := New(nullWriter{}, i18n.LocaleEN)
	far := New(nullWriter{}, i18n.LocaleEN)
	for _, s := range []*Session{leader, near, far} {
		require.NoError(t, m.Add(s))
	}
	m.Authenticate(leader, testPlayer("p1", "alice"))
	m.Authenticate(near, testPlayer("p2", "bob"))
	m.Authenticate(far, testPlayer("p3", "carol"))
	leader.SetCoord(origin)
	near.SetCoord(origin)
	far.SetCoord(elsewhere)
	near.SetFollowing("alice")
	far.SetFollowing("alice")

	assert.Len(t, m.AtCoord(origin), 2)

	followers := m.FollowersOf("alice", origin)
	require.Len(t, followers, 1, "only co-located followers move")
	assert.Equal(t, near.ID, followers[0].ID)
}

func TestHandleTable(t *testing.T) {
	s := New(nullWriter{}, i18n.LocaleEN)
	s.SetHandles(map[int]Handle{
		1: {Kind: HandleMonster, ID: "m1", Name: "goblin"},
		2: {Kind: HandleObject, ID: "o1", Name: "rusty sword"},
	})

	h, ok := s.Handle(1)
	require.True(t, ok)
	assert.Equal(t, HandleMonster, h.Kind)

	_, ok = s.Handle(9)
	assert.False(t, ok)

	// A new room view replaces the whole table.
	s.SetHandles(map[int]Handle{1: {Kind: HandleNPC, ID: "n1", Name: "merchant"}})
	_, ok = s.Handle(2)
	assert.False(t, ok)
}
