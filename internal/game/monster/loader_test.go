package monster

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

const ratYAML = `
id: giant-rat
names:
  en: giant rat
  ko: 거대 쥐
descriptions:
  en: A rat the size of a dog.
type: AGGRESSIVE
behavior: ROAMING
stats:
  strength: 8
  dexterity: 14
  level: 1
  max_hp: 6
  armor_class: 11
gold: 3
drops:
  - template_id: rat-tail
    chance: 0.5
    min_quantity: 1
    max_quantity: 2
respawn_delay: 90s
roaming:
  chance: 0.3
  min_x: -2
  max_x: 2
  min_y: -2
  max_y: 2
global_cap: 10
`

func TestLoadTemplateFromBytes(t *testing.T) {
	tmpl, globalCap, err := LoadTemplateFromBytes([]byte(ratYAML))
	require.NoError(t, err)

	assert.Equal(t, "giant-rat", tmpl.ID)
	assert.Equal(t, "거대 쥐", tmpl.Names.Get(i18n.LocaleKO))
	assert.Equal(t, Aggressive, tmpl.Type)
	assert.Equal(t, Roaming, tmpl.Behavior)
	assert.Equal(t, 6, tmpl.Stats.MaxHP)
	assert.Equal(t, 90*time.Second, tmpl.RespawnDelay)
	require.Len(t, tmpl.Drops, 1)
	assert.Equal(t, 1, tmpl.Drops[0].MinQuantity)
	assert.Equal(t, 2, tmpl.Drops[0].MaxQuantity)
	require.NotNil(t, tmpl.Roaming)
	assert.Equal(t, 2, tmpl.Roaming.MaxX)
	assert.Equal(t, 10, globalCap)
}

func TestLoadTemplateFromBytes_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing id":      "names:\n  en: nameless\nstats:\n  max_hp: 5\n",
		"missing name":    "id: ghost\nstats:\n  max_hp: 5\n",
		"zero hp":         "id: wisp\nnames:\n  en: wisp\n",
		"bad respawn":     "id: imp\nnames:\n  en: imp\nstats:\n  max_hp: 3\nrespawn_delay: soon\n",
		"malformed":       "{{{",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadTemplateFromBytes([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTemplates_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rat.yaml"), []byte(ratYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	templates, caps, err := LoadTemplates(dir)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "giant-rat", templates[0].ID)
	assert.Equal(t, map[string]int{"giant-rat": 10}, caps)
}

func TestLoadSpawnPoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawns.yaml")
	doc := `
- room_id: north-road
  template_id: giant-rat
  max_per_room: 2
  spawn_chance: 0.4
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	points, err := LoadSpawnPoints(path)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "north-road", points[0].RoomID)
	assert.Equal(t, 2, points[0].MaxPerRoom)
}

func TestLoadSpawnPoints_MissingFileIsEmpty(t *testing.T) {
	points, err := LoadSpawnPoints(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, points)
}
