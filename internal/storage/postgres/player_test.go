package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridmud/internal/i18n"
	"github.com/cory-johannsen/gridmud/internal/storage/postgres"
	"github.com/cory-johannsen/gridmud/internal/testutil"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestPlayerRepository_Create(t *testing.T) {
	repo := postgres.NewPlayerRepository(testutil.NewPool(t))
	ctx := context.Background()

	name := uniqueName("arthur")
	p, err := repo.Create(ctx, name, "password123", i18n.LocaleEN)
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, name, p.Username)
	assert.Equal(t, name, p.DisplayName)
	assert.Equal(t, i18n.LocaleEN, p.Locale)
	assert.False(t, p.IsAdmin)
	assert.Equal(t, 1, p.Stats.Level)
	assert.Equal(t, 10, p.Stats.Strength)
	assert.Equal(t, 20, p.Stats.MaxHP)
}

func TestPlayerRepository_Create_Duplicate(t *testing.T) {
	repo := postgres.NewPlayerRepository(testutil.NewPool(t))
	ctx := context.Background()

	name := uniqueName("dupe")
	_, err := repo.Create(ctx, name, "password123", i18n.LocaleEN)
	require.NoError(t, err)

	_, err = repo.Create(ctx, name, "otherpass456", i18n.LocaleKO)
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrPlayerExists)
}

func TestPlayerRepository_Authenticate(t *testing.T) {
	repo := postgres.NewPlayerRepository(testutil.NewPool(t))
	ctx := context.Background()

	name := uniqueName("login")
	created, err := repo.Create(ctx, name, "password123", i18n.LocaleKO)
	require.NoError(t, err)

	p, err := repo.Authenticate(ctx, name, "password123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, p.ID)
	assert.Equal(t, i18n.LocaleKO, p.Locale)
}

func TestPlayerRepository_Authenticate_WrongPassword(t *testing.T) {
	repo := postgres.NewPlayerRepository(testutil.NewPool(t))
	ctx := context.Background()

	name := uniqueName("wrongpw")
	_, err := repo.Create(ctx, name, "password123", i18n.LocaleEN)
	require.NoError(t, err)

	_, err = repo.Authenticate(ctx, name, "password456")
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)
}

func TestPlayerRepository_Authenticate_UnknownUsername(t *testing.T) {
	repo := postgres.NewPlayerRepository(testutil.NewPool(t))

	_, err := repo.Authenticate(context.Background(), uniqueName("ghost"), "password123")
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestPlayerRepository_Save_RoundTrip(t *testing.T) {
	repo := postgres.NewPlayerRepository(testutil.NewPool(t))
	ctx := context.Background()

	name := uniqueName("saver")
	p, err := repo.Create(ctx, name, "password123", i18n.LocaleEN)
	require.NoError(t, err)

	p.DisplayName = "Sir Saver"
	p.LastNameChange = time.Now().UTC().Truncate(time.Second)
	p.Locale = i18n.LocaleKO
	p.IsAdmin = true
	p.LastRoomID = "town-square"
	p.Stats.Level = 3
	p.Stats.Gold = 250
	p.Stats.HP = 12
	p.QuestProgress["rat-cull"] = 4
	p.QuestsDone["tutorial"] = true
	p.FactionID = "mages-guild"
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.GetByUsername(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "Sir Saver", got.DisplayName)
	assert.WithinDuration(t, p.LastNameChange, got.LastNameChange, time.Second)
	assert.Equal(t, i18n.LocaleKO, got.Locale)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "town-square", got.LastRoomID)
	assert.Equal(t, 3, got.Stats.Level)
	assert.Equal(t, 250, got.Stats.Gold)
	assert.Equal(t, 12, got.Stats.HP)
	assert.Equal(t, 4, got.QuestProgress["rat-cull"])
	assert.True(t, got.QuestsDone["tutorial"])
	assert.Equal(t, "mages-guild", got.FactionID)
}

func TestPlayerRepository_Save_Missing(t *testing.T) {
	repo := postgres.NewPlayerRepository(testutil.NewPool(t))

	p, err := repo.Create(context.Background(), uniqueName("phantom"), "password123", i18n.LocaleEN)
	require.NoError(t, err)
	p.ID = "00000000-0000-0000-0000-000000000000"

	err = repo.Save(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}
