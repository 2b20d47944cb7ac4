package monster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

func ratTemplate() *Template {
	return &Template{
		ID:           "giant-rat",
		Names:        i18n.Strings{i18n.LocaleEN: "a giant rat", i18n.LocaleKO: "거대한 쥐"},
		Descriptions: i18n.Strings{i18n.LocaleEN: "A rat the size of a dog."},
		Type:         Aggressive,
		Behavior:     Roaming,
		Stats:        Stats{Strength: 8, Dexterity: 12, Level: 1, MaxHP: 6, ArmorClass: 11},
		Gold:         3,
		RespawnDelay: 90 * time.Second,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil, zap.NewNop())
	m.RegisterTemplate(ratTemplate())
	return m
}

func TestSpawn(t *testing.T) {
	m := newTestManager(t)
	at := world.Coord{X: 0, Y: 1}

	inst, err := m.Spawn("giant-rat", at)
	require.NoError(t, err)

	assert.NotEmpty(t, inst.ID)
	assert.True(t, inst.Alive)
	assert.Equal(t, 6, inst.HP)
	assert.Equal(t, at, inst.Coord)
	assert.Equal(t, at, inst.SpawnCoord)
	assert.Equal(t, "거대한 쥐", inst.Name(i18n.LocaleKO))

	got, ok := m.Get(inst.ID)
	require.True(t, ok)
	assert.Same(t, inst, got)
}

func TestSpawnUnknownTemplate(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Spawn("dragon", world.Coord{})
	assert.Error(t, err)
}

func TestAddRejectsDuplicate(t *testing.T) {
	m := newTestManager(t)
	inst, err := m.Spawn("giant-rat", world.Coord{})
	require.NoError(t, err)

	assert.Error(t, m.Add(inst))
}

func TestAliveAtOrdersOldestFirst(t *testing.T) {
	m := newTestManager(t)
	at := world.Coord{X: 2, Y: 2}

	first, err := m.Spawn("giant-rat", at)
	require.NoError(t, err)
	second, err := m.Spawn("giant-rat", at)
	require.NoError(t, err)
	// Equal timestamps fall back to id order.
	first.CreatedAt = time.Now().Add(-time.Minute)
	second.CreatedAt = time.Now()

	alive := m.AliveAt(at)
	require.Len(t, alive, 2)
	assert.Equal(t, first.ID, alive[0].ID)
	assert.Equal(t, second.ID, alive[1].ID)

	assert.Empty(t, m.AliveAt(world.Coord{X: 9, Y: 9}))
}

func TestFindAliveAt(t *testing.T) {
	m := newTestManager(t)
	at := world.Coord{X: 1, Y: 0}
	inst, err := m.Spawn("giant-rat", at)
	require.NoError(t, err)

	found, ok := m.FindAliveAt(at, "rat", i18n.LocaleEN)
	require.True(t, ok)
	assert.Equal(t, inst.ID, found.ID)

	// Korean clients can match the English name too.
	_, ok = m.FindAliveAt(at, "giant", i18n.LocaleKO)
	assert.True(t, ok)

	_, ok = m.FindAliveAt(at, "spider", i18n.LocaleEN)
	assert.False(t, ok)
	_, ok = m.FindAliveAt(at, "   ", i18n.LocaleEN)
	assert.False(t, ok)
}

func TestAggroAt(t *testing.T) {
	m := newTestManager(t)
	m.RegisterTemplate(&Template{
		ID:    "field-mouse",
		Names: i18n.Strings{i18n.LocaleEN: "a field mouse"},
		Type:  Passive,
		Stats: Stats{MaxHP: 2},
	})
	at := world.Coord{X: 0, Y: 1}

	_, err := m.Spawn("field-mouse", at)
	require.NoError(t, err)
	_, ok := m.AggroAt(at)
	assert.False(t, ok, "passive monsters never aggro")

	rat, err := m.Spawn("giant-rat", at)
	require.NoError(t, err)
	got, ok := m.AggroAt(at)
	require.True(t, ok)
	assert.Equal(t, rat.ID, got.ID)

	// A monster claimed by a combat is skipped.
	require.NoError(t, m.SetInCombat(rat.ID, true))
	_, ok = m.AggroAt(at)
	assert.False(t, ok)
}

func TestApplyDamageClampsAtZero(t *testing.T) {
	m := newTestManager(t)
	inst, err := m.Spawn("giant-rat", world.Coord{})
	require.NoError(t, err)

	hp, err := m.ApplyDamage(inst.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, hp)

	hp, err = m.ApplyDamage(inst.ID, 100)
	require.NoError(t, err)
	assert.Zero(t, hp)

	_, err = m.ApplyDamage("absent", 1)
	assert.Error(t, err)
}

func TestMarkDeadAndRespawn(t *testing.T) {
	m := newTestManager(t)
	at := world.Coord{X: 0, Y: 2}
	inst, err := m.Spawn("giant-rat", at)
	require.NoError(t, err)

	require.NoError(t, m.MarkDead(inst.ID))
	assert.False(t, inst.Alive)
	assert.Zero(t, inst.HP)
	assert.False(t, inst.DiedAt.IsZero())
	assert.Empty(t, m.AliveAt(at))
	assert.Zero(t, m.AliveCount("giant-rat"))

	// Respawn restores the instance at its spawn coordinates.
	require.NoError(t, m.Move(inst.ID, world.Coord{X: 5, Y: 5}))
	require.NoError(t, m.Respawn(inst.ID))
	assert.True(t, inst.Alive)
	assert.Equal(t, 6, inst.HP)
	assert.Equal(t, at, inst.Coord)
	assert.True(t, inst.DiedAt.IsZero())
	assert.Len(t, m.AliveAt(at), 1)
}

func TestMoveReindexes(t *testing.T) {
	m := newTestManager(t)
	from := world.Coord{X: 0, Y: 0}
	to := world.Coord{X: 0, Y: 1}
	inst, err := m.Spawn("giant-rat", from)
	require.NoError(t, err)

	require.NoError(t, m.Move(inst.ID, to))
	assert.Empty(t, m.AliveAt(from))
	require.Len(t, m.AliveAt(to), 1)
	assert.Equal(t, to, inst.Coord)
}

func TestGlobalCap(t *testing.T) {
	m := newTestManager(t)
	m.SetGlobalCap("giant-rat", 2)

	limit, ok := m.GlobalCap("giant-rat")
	require.True(t, ok)
	assert.Equal(t, 2, limit)
	_, ok = m.GlobalCap("field-mouse")
	assert.False(t, ok)

	assert.True(t, m.UnderGlobalCap("giant-rat"))
	_, err := m.Spawn("giant-rat", world.Coord{})
	require.NoError(t, err)
	assert.True(t, m.UnderGlobalCap("giant-rat"))
	_, err = m.Spawn("giant-rat", world.Coord{})
	require.NoError(t, err)
	assert.False(t, m.UnderGlobalCap("giant-rat"))

	// Uncapped templates always pass.
	assert.True(t, m.UnderGlobalCap("field-mouse"))
}

func TestCullOverCapRemovesOldest(t *testing.T) {
	m := newTestManager(t)
	at := world.Coord{X: 3, Y: 3}

	oldest, err := m.Spawn("giant-rat", at)
	require.NoError(t, err)
	oldest.CreatedAt = time.Now().Add(-time.Hour)
	for i := 0; i < 2; i++ {
		_, err := m.Spawn("giant-rat", at)
		require.NoError(t, err)
	}

	m.SetGlobalCap("giant-rat", 2)
	removed := m.CullOverCap()

	require.Len(t, removed, 1)
	assert.Equal(t, oldest.ID, removed[0])
	assert.Equal(t, 2, m.AliveCount("giant-rat"))
	_, ok := m.Get(oldest.ID)
	assert.False(t, ok)
}

func TestCullOverCapNoopUnderCap(t *testing.T) {
	m := newTestManager(t)
	m.SetGlobalCap("giant-rat", 5)
	_, err := m.Spawn("giant-rat", world.Coord{})
	require.NoError(t, err)

	assert.Empty(t, m.CullOverCap())
	assert.Equal(t, 1, m.AliveCount("giant-rat"))
}

func TestAliveCountAt(t *testing.T) {
	m := newTestManager(t)
	here := world.Coord{X: 0, Y: 0}
	there := world.Coord{X: 1, Y: 1}

	_, err := m.Spawn("giant-rat", here)
	require.NoError(t, err)
	_, err = m.Spawn("giant-rat", here)
	require.NoError(t, err)
	_, err = m.Spawn("giant-rat", there)
	require.NoError(t, err)

	assert.Equal(t, 2, m.AliveCountAt("giant-rat", here))
	assert.Equal(t, 1, m.AliveCountAt("giant-rat", there))
	assert.Equal(t, 3, m.AliveCount("giant-rat"))
}

func TestRemove(t *testing.T) {
	m := newTestManager(t)
	inst, err := m.Spawn("giant-rat", world.Coord{})
	require.NoError(t, err)

	require.NoError(t, m.Remove(inst.ID))
	_, ok := m.Get(inst.ID)
	assert.False(t, ok)
	assert.Error(t, m.Remove(inst.ID))
}
