package postgres_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/game/npc"
	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
	"github.com/cory-johannsen/gridmud/internal/storage/postgres"
	"github.com/cory-johannsen/gridmud/internal/testutil"
)

// coordSeq hands out distinct Y bands so tests sharing the container
// never collide on the rooms (x, y) unique constraint.
var coordSeq atomic.Int64

func freshCoord() world.Coord {
	return world.Coord{X: 0, Y: int(coordSeq.Add(1)) * 100}
}

func makeRoom(id string, c world.Coord) *world.Room {
	now := time.Now().UTC().Truncate(time.Second)
	return &world.Room{
		ID:    id,
		Coord: c,
		Descriptions: i18n.Strings{
			i18n.LocaleEN: "A dusty chamber.",
			i18n.LocaleKO: "먼지투성이 방.",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRoomRepository_SaveAndLoadAll(t *testing.T) {
	repo := postgres.NewRoomRepository(testutil.NewPool(t))
	ctx := context.Background()

	c := freshCoord()
	id := uniqueName("room")
	require.NoError(t, repo.Save(ctx, makeRoom(id, c)))

	rooms, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	var got *world.Room
	for _, r := range rooms {
		if r.ID == id {
			got = r
		}
	}
	require.NotNil(t, got, "saved room should load back")
	assert.Equal(t, c, got.Coord)
	assert.Equal(t, "A dusty chamber.", got.Descriptions[i18n.LocaleEN])
	assert.Equal(t, "먼지투성이 방.", got.Descriptions[i18n.LocaleKO])
}

func TestRoomRepository_Save_Upsert(t *testing.T) {
	repo := postgres.NewRoomRepository(testutil.NewPool(t))
	ctx := context.Background()

	c := freshCoord()
	id := uniqueName("room")
	room := makeRoom(id, c)
	require.NoError(t, repo.Save(ctx, room))

	room.Descriptions[i18n.LocaleEN] = "Freshly swept."
	require.NoError(t, repo.Save(ctx, room))

	rooms, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	for _, r := range rooms {
		if r.ID == id {
			assert.Equal(t, "Freshly swept.", r.Descriptions[i18n.LocaleEN])
			return
		}
	}
	t.Fatal("room not found after upsert")
}

func TestRoomRepository_Delete(t *testing.T) {
	repo := postgres.NewRoomRepository(testutil.NewPool(t))
	ctx := context.Background()

	id := uniqueName("room")
	require.NoError(t, repo.Save(ctx, makeRoom(id, freshCoord())))
	require.NoError(t, repo.Delete(ctx, id))

	err := repo.Delete(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestRoomRepository_Portals(t *testing.T) {
	repo := postgres.NewRoomRepository(testutil.NewPool(t))
	ctx := context.Background()

	from := freshCoord()
	to := freshCoord()
	require.NoError(t, repo.SavePortal(ctx, from, to))

	portals, err := repo.LoadPortals(ctx)
	require.NoError(t, err)
	assert.Equal(t, to, portals[from])

	// Upsert replaces the destination for the same origin.
	other := freshCoord()
	require.NoError(t, repo.SavePortal(ctx, from, other))
	portals, err = repo.LoadPortals(ctx)
	require.NoError(t, err)
	assert.Equal(t, other, portals[from])

	require.NoError(t, repo.DeletePortal(ctx, from))
	portals, err = repo.LoadPortals(ctx)
	require.NoError(t, err)
	_, ok := portals[from]
	assert.False(t, ok)
}

func TestObjectRepository_RoundTrip(t *testing.T) {
	repo := postgres.NewObjectRepository(testutil.NewPool(t))
	ctx := context.Background()

	obj := &object.Instance{
		ID:         uuid.New().String(),
		TemplateID: "rusty-sword",
		Names: i18n.Strings{
			i18n.LocaleEN: "rusty sword",
			i18n.LocaleKO: "녹슨 검",
		},
		Descriptions: i18n.Strings{i18n.LocaleEN: "Barely holds an edge."},
		Category:     object.CategoryWeapon,
		Weight:       3,
		Slot:         "hand",
		Equipped:     true,
		Quantity:     1,
		MaxStack:     1,
		Properties:   map[string]string{"damage": "1d6"},
		Location:     object.InventoryLocation("player-1"),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Save(ctx, obj))

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	var got *object.Instance
	for _, o := range all {
		if o.ID == obj.ID {
			got = o
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, "rusty-sword", got.TemplateID)
	assert.Equal(t, "녹슨 검", got.Names[i18n.LocaleKO])
	assert.Equal(t, object.CategoryWeapon, got.Category)
	assert.True(t, got.Equipped)
	assert.Equal(t, "1d6", got.Properties["damage"])
	assert.Equal(t, object.LocationInventory, got.Location.Type)
	assert.Equal(t, "player-1", got.Location.ID)

	require.NoError(t, repo.Delete(ctx, obj.ID))
}

func TestMonsterRepository_RoundTrip(t *testing.T) {
	repo := postgres.NewMonsterRepository(testutil.NewPool(t))
	ctx := context.Background()

	died := time.Now().UTC().Truncate(time.Second)
	inst := &monster.Instance{
		ID:         uuid.New().String(),
		TemplateID: "cave-rat",
		Type:       monster.Aggressive,
		Behavior:   monster.Roaming,
		Names: i18n.Strings{
			i18n.LocaleEN: "cave rat",
			i18n.LocaleKO: "동굴 쥐",
		},
		Descriptions: i18n.Strings{i18n.LocaleEN: "Beady eyes in the dark."},
		Stats:        monster.Stats{Strength: 8, Dexterity: 14, MaxHP: 6, ArmorClass: 11},
		Drops:        []monster.DropEntry{{TemplateID: "rat-tail", Chance: 0.5, MinQuantity: 1, MaxQuantity: 3}},
		Roaming:      &monster.RoamingConfig{Chance: 0.3, MinX: 0, MinY: 0, MaxX: 5, MaxY: 5},
		Gold:         2,
		Coord:        world.Coord{X: 3, Y: 4},
		SpawnCoord:   world.Coord{X: 3, Y: 3},
		HP:           0,
		Alive:        false,
		DiedAt:       died,
		RespawnDelay: 90 * time.Second,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Save(ctx, inst))

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	var got *monster.Instance
	for _, m := range all {
		if m.ID == inst.ID {
			got = m
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, monster.Aggressive, got.Type)
	assert.Equal(t, monster.Roaming, got.Behavior)
	assert.Equal(t, "동굴 쥐", got.Names[i18n.LocaleKO])
	assert.Equal(t, 14, got.Stats.Dexterity)
	assert.Equal(t, 11, got.Stats.ArmorClass)
	require.Len(t, got.Drops, 1)
	assert.Equal(t, "rat-tail", got.Drops[0].TemplateID)
	assert.Equal(t, 1, got.Drops[0].MinQuantity)
	assert.Equal(t, 3, got.Drops[0].MaxQuantity)
	require.NotNil(t, got.Roaming)
	assert.Equal(t, 5, got.Roaming.MaxX)
	assert.Equal(t, world.Coord{X: 3, Y: 3}, got.SpawnCoord)
	assert.False(t, got.Alive)
	assert.WithinDuration(t, died, got.DiedAt, time.Second)
	assert.Equal(t, 90*time.Second, got.RespawnDelay)

	require.NoError(t, repo.Delete(ctx, inst.ID))
}

func TestNPCRepository_RoundTrip(t *testing.T) {
	repo := postgres.NewNPCRepository(testutil.NewPool(t))
	ctx := context.Background()

	n := &npc.NPC{
		ID: uniqueName("npc"),
		Names: i18n.Strings{
			i18n.LocaleEN: "Mira the Merchant",
			i18n.LocaleKO: "상인 미라",
		},
		Descriptions: i18n.Strings{i18n.LocaleEN: "She weighs coins by eye."},
		Type:         "merchant",
		X:            7,
		Y:            9,
		Dialogue: map[string]i18n.Strings{
			"default": {i18n.LocaleEN: "Welcome, traveler."},
			"rumors":  {i18n.LocaleEN: "Rats in the cellar again."},
		},
		Shop: []npc.ShopEntry{
			{TemplateID: "torch", Price: 5, Currency: "gold"},
		},
		Script:    "",
		FactionID: "merchants",
		Active:    true,
	}
	require.NoError(t, repo.Save(ctx, n))

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	var got *npc.NPC
	for _, candidate := range all {
		if candidate.ID == n.ID {
			got = candidate
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, "상인 미라", got.Names[i18n.LocaleKO])
	assert.Equal(t, "merchant", got.Type)
	assert.Equal(t, 7, got.X)
	assert.Equal(t, "Rats in the cellar again.", got.Dialogue["rumors"][i18n.LocaleEN])
	require.Len(t, got.Shop, 1)
	assert.Equal(t, "torch", got.Shop[0].TemplateID)
	assert.Equal(t, 5, got.Shop[0].Price)
	assert.True(t, got.Active)
}
