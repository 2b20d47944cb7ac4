package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// stubResolver treats the listed room and player ids as extant.
type stubResolver struct {
	rooms   map[string]bool
	players map[string]bool
}

func (r *stubResolver) RoomExists(id string) bool   { return r.rooms[id] }
func (r *stubResolver) PlayerExists(id string) bool { return r.players[id] }

func newTestManager(t *testing.T) (*Manager, *stubResolver) {
	t.Helper()
	m := NewManager(nil, zap.NewNop())
	m.RegisterTemplate(&Template{
		ID:       "rusty-sword",
		Names:    i18n.Strings{i18n.LocaleEN: "rusty sword", i18n.LocaleKO: "녹슨 검"},
		Category: CategoryWeapon,
		Weight:   5,
		Slot:     "weapon",
		Properties: map[string]string{
			"damage": "1d6",
		},
	})
	m.RegisterTemplate(&Template{
		ID:       "satchel",
		Names:    i18n.Strings{i18n.LocaleEN: "leather satchel"},
		Category: CategoryContainer,
		Weight:   2,
	})
	m.RegisterTemplate(&Template{
		ID:        "torch",
		Names:     i18n.Strings{i18n.LocaleEN: "torch"},
		Category:  CategoryMisc,
		Weight:    1,
		Stackable: true,
		MaxStack:  3,
	})
	resolver := &stubResolver{
		rooms:   map[string]bool{"town-square": true, "forest": true},
		players: map[string]bool{"alice": true},
	}
	return m, resolver
}

func TestInstantiate(t *testing.T) {
	m, _ := newTestManager(t)

	obj, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)
	assert.Equal(t, "rusty-sword", obj.TemplateID)
	assert.Equal(t, 1, obj.Quantity)

	damage, ok := obj.Property("damage")
	require.True(t, ok)
	assert.Equal(t, "1d6", damage)

	held := m.GetObjectsIn(RoomLocation("town-square"))
	require.Len(t, held, 1)
	assert.Equal(t, obj.ID, held[0].ID)
}

func TestInstantiateUnknownTemplate(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Instantiate("excalibur", RoomLocation("town-square"))
	require.Error(t, err)
}

func TestMoveObject(t *testing.T) {
	m, resolver := newTestManager(t)
	obj, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)

	require.NoError(t, m.MoveObject(obj.ID, InventoryLocation("alice"), resolver))

	assert.Empty(t, m.GetObjectsIn(RoomLocation("town-square")))
	held := m.GetObjectsIn(InventoryLocation("alice"))
	require.Len(t, held, 1)
	assert.Equal(t, obj.ID, held[0].ID)
}

func TestMoveObjectValidatesTarget(t *testing.T) {
	m, resolver := newTestManager(t)
	obj, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)

	require.Error(t, m.MoveObject(obj.ID, RoomLocation("atlantis"), resolver))
	require.Error(t, m.MoveObject(obj.ID, InventoryLocation("nobody"), resolver))
	require.Error(t, m.MoveObject(obj.ID, ContainerLocation(obj.ID), resolver))

	// Failed moves must leave the object where it was.
	held := m.GetObjectsIn(RoomLocation("town-square"))
	require.Len(t, held, 1)
}

func TestMoveObjectIntoContainer(t *testing.T) {
	m, resolver := newTestManager(t)
	sword, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)
	satchel, err := m.Instantiate("satchel", InventoryLocation("alice"))
	require.NoError(t, err)

	require.NoError(t, m.MoveObject(sword.ID, ContainerLocation(satchel.ID), resolver))

	inside := m.GetObjectsIn(ContainerLocation(satchel.ID))
	require.Len(t, inside, 1)
	assert.Equal(t, sword.ID, inside[0].ID)

	// A weapon is not a container.
	require.Error(t, m.MoveObject(satchel.ID, ContainerLocation(sword.ID), resolver))
}

func TestMoveOutOfInventoryUnequips(t *testing.T) {
	m, resolver := newTestManager(t)
	sword, err := m.Instantiate("rusty-sword", InventoryLocation("alice"))
	require.NoError(t, err)
	require.NoError(t, m.SetEquipped(sword.ID, true))

	require.NoError(t, m.MoveObject(sword.ID, RoomLocation("forest"), resolver))

	got, ok := m.Get(sword.ID)
	require.True(t, ok)
	assert.False(t, got.Equipped)
}

func TestSetEquipped(t *testing.T) {
	m, resolver := newTestManager(t)
	sword, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)

	// Room objects cannot be equipped.
	require.Error(t, m.SetEquipped(sword.ID, true))

	require.NoError(t, m.MoveObject(sword.ID, InventoryLocation("alice"), resolver))
	require.NoError(t, m.SetEquipped(sword.ID, true))

	equipped := m.EquippedIn("alice")
	require.Len(t, equipped, 1)
	assert.Equal(t, sword.ID, equipped[0].ID)

	// Slotless objects cannot be equipped.
	satchel, err := m.Instantiate("satchel", InventoryLocation("alice"))
	require.NoError(t, err)
	require.Error(t, m.SetEquipped(satchel.ID, true))
}

func TestFindIn(t *testing.T) {
	m, _ := newTestManager(t)
	sword, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)

	got, ok := m.FindIn(RoomLocation("town-square"), "sword", i18n.LocaleEN)
	require.True(t, ok)
	assert.Equal(t, sword.ID, got.ID)

	// Substring match works against any locale's name.
	got, ok = m.FindIn(RoomLocation("town-square"), "녹슨", i18n.LocaleEN)
	require.True(t, ok)
	assert.Equal(t, sword.ID, got.ID)

	_, ok = m.FindIn(RoomLocation("town-square"), "shield", i18n.LocaleEN)
	assert.False(t, ok)

	_, ok = m.FindIn(RoomLocation("town-square"), "   ", i18n.LocaleEN)
	assert.False(t, ok)
}

func TestRemoveDestroysContainerContents(t *testing.T) {
	m, resolver := newTestManager(t)
	satchel, err := m.Instantiate("satchel", RoomLocation("town-square"))
	require.NoError(t, err)
	sword, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)
	require.NoError(t, m.MoveObject(sword.ID, ContainerLocation(satchel.ID), resolver))

	require.NoError(t, m.Remove(satchel.ID))

	_, ok := m.Get(satchel.ID)
	assert.False(t, ok)
	_, ok = m.Get(sword.ID)
	assert.False(t, ok, "container contents are destroyed with it")
}

func TestStackIntoMergesStacks(t *testing.T) {
	m, resolver := newTestManager(t)
	held, err := m.InstantiateQuantity("torch", 2, InventoryLocation("alice"))
	require.NoError(t, err)
	ground, err := m.Instantiate("torch", RoomLocation("town-square"))
	require.NoError(t, err)

	got, err := m.StackInto(ground.ID, "alice", RoomLocation("town-square"), resolver)
	require.NoError(t, err)

	assert.Equal(t, held.ID, got.ID)
	assert.Equal(t, 3, got.Quantity)
	_, ok := m.Get(ground.ID)
	assert.False(t, ok, "the merged instance is destroyed")
	assert.Empty(t, m.GetObjectsIn(RoomLocation("town-square")))
}

func TestStackIntoOverflowStaysInRoom(t *testing.T) {
	m, resolver := newTestManager(t)
	_, err := m.InstantiateQuantity("torch", 3, InventoryLocation("alice"))
	require.NoError(t, err)
	ground, err := m.Instantiate("torch", RoomLocation("town-square"))
	require.NoError(t, err)

	got, err := m.StackInto(ground.ID, "alice", RoomLocation("town-square"), resolver)
	require.NoError(t, err)

	assert.Equal(t, ground.ID, got.ID)
	assert.Equal(t, RoomLocation("town-square"), got.Location)
	require.Len(t, m.GetObjectsIn(InventoryLocation("alice")), 1)
}

func TestStackIntoPartialMergeLeavesRemainder(t *testing.T) {
	m, resolver := newTestManager(t)
	held, err := m.InstantiateQuantity("torch", 2, InventoryLocation("alice"))
	require.NoError(t, err)
	ground, err := m.InstantiateQuantity("torch", 3, RoomLocation("town-square"))
	require.NoError(t, err)

	got, err := m.StackInto(ground.ID, "alice", RoomLocation("town-square"), resolver)
	require.NoError(t, err)

	assert.Equal(t, held.ID, got.ID)
	assert.Equal(t, 3, got.Quantity)
	rest, ok := m.Get(ground.ID)
	require.True(t, ok)
	assert.Equal(t, 2, rest.Quantity)
	assert.Equal(t, RoomLocation("town-square"), rest.Location)
}

func TestStackIntoNonStackableJustMoves(t *testing.T) {
	m, resolver := newTestManager(t)
	sword, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)

	got, err := m.StackInto(sword.ID, "alice", RoomLocation("town-square"), resolver)
	require.NoError(t, err)

	assert.Equal(t, sword.ID, got.ID)
	assert.Equal(t, InventoryLocation("alice"), got.Location)
}

func TestInstantiateQuantityClampsToStackLimit(t *testing.T) {
	m, _ := newTestManager(t)

	obj, err := m.InstantiateQuantity("torch", 9, RoomLocation("town-square"))
	require.NoError(t, err)
	assert.Equal(t, 3, obj.Quantity)

	single, err := m.InstantiateQuantity("rusty-sword", 5, RoomLocation("town-square"))
	require.NoError(t, err)
	assert.Equal(t, 1, single.Quantity, "non-stackable templates stay at one")
}

func TestRelocateRoomContents(t *testing.T) {
	m, _ := newTestManager(t)
	stray, err := m.Instantiate("rusty-sword", RoomLocation("forest"))
	require.NoError(t, err)
	fine, err := m.Instantiate("torch", RoomLocation("town-square"))
	require.NoError(t, err)

	moved := m.RelocateRoomContents("forest", "town-square")
	assert.Equal(t, 1, moved)

	got, ok := m.Get(stray.ID)
	require.True(t, ok)
	assert.Equal(t, RoomLocation("town-square"), got.Location)
	got, ok = m.Get(fine.ID)
	require.True(t, ok)
	assert.Equal(t, RoomLocation("town-square"), got.Location)

	assert.Zero(t, m.RelocateRoomContents("forest", "town-square"))
}

func TestSweepOrphans(t *testing.T) {
	m, resolver := newTestManager(t)
	stray, err := m.Instantiate("rusty-sword", RoomLocation("forest"))
	require.NoError(t, err)
	fine, err := m.Instantiate("rusty-sword", RoomLocation("town-square"))
	require.NoError(t, err)

	// The forest vanishes out from under the sword.
	resolver.rooms["forest"] = false

	moved := m.SweepOrphans(resolver, "town-square")
	assert.Equal(t, 1, moved)

	got, ok := m.Get(stray.ID)
	require.True(t, ok)
	assert.Equal(t, RoomLocation("town-square"), got.Location)

	got, ok = m.Get(fine.ID)
	require.True(t, ok)
	assert.Equal(t, RoomLocation("town-square"), got.Location)
}
