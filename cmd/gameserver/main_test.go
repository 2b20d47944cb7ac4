package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// stubPlayers answers existence checks from a fixed id set.
type stubPlayers struct {
	ids map[string]bool
	err error
}

func (s *stubPlayers) Exists(_ context.Context, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ids[id], nil
}

func TestRunIntegrityPass(t *testing.T) {
	logger := zap.NewNop()
	rooms := world.NewStore("town-square", nil, logger)
	require.NoError(t, rooms.CreateRoom(world.NewRoom("town-square", world.Coord{X: 0, Y: 0},
		i18n.Strings{i18n.LocaleEN: "the square"})))

	objects := object.NewManager(nil, logger)
	objects.RegisterTemplate(&object.Template{
		ID:       "torch",
		Names:    i18n.Strings{i18n.LocaleEN: "torch"},
		Category: object.CategoryMisc,
	})
	orphan, err := objects.Instantiate("torch", object.InventoryLocation("deleted-player"))
	require.NoError(t, err)
	kept, err := objects.Instantiate("torch", object.InventoryLocation("offline-player"))
	require.NoError(t, err)

	monsters := monster.NewManager(nil, logger)
	monsters.RegisterTemplate(&monster.Template{
		ID:    "giant-rat",
		Names: i18n.Strings{i18n.LocaleEN: "giant rat"},
		Type:  monster.Aggressive,
		Stats: monster.Stats{MaxHP: 6},
	})
	for i := 0; i < 3; i++ {
		_, err := monsters.Spawn("giant-rat", world.Coord{X: 0, Y: 0})
		require.NoError(t, err)
	}
	monsters.SetGlobalCap("giant-rat", 2)

	resolver := &bootResolver{
		ctx:     context.Background(),
		rooms:   rooms,
		players: &stubPlayers{ids: map[string]bool{"offline-player": true}},
		logger:  logger,
	}
	runIntegrityPass(objects, monsters, resolver, "town-square", logger)

	got, ok := objects.Get(orphan.ID)
	require.True(t, ok)
	assert.Equal(t, object.RoomLocation("town-square"), got.Location)

	got, ok = objects.Get(kept.ID)
	require.True(t, ok)
	assert.Equal(t, object.InventoryLocation("offline-player"), got.Location,
		"offline players keep their inventories")

	assert.Equal(t, 2, monsters.AliveCount("giant-rat"))
}

func TestBootResolverKeepsObjectsOnStorageError(t *testing.T) {
	logger := zap.NewNop()
	rooms := world.NewStore("town-square", nil, logger)
	resolver := &bootResolver{
		ctx:     context.Background(),
		rooms:   rooms,
		players: &stubPlayers{err: errors.New("connection reset")},
		logger:  logger,
	}

	assert.True(t, resolver.PlayerExists("anyone"),
		"a storage hiccup must not strand inventories")
	assert.False(t, resolver.RoomExists("town-square"))
}
