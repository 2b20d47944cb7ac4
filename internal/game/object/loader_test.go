package object

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

const swordYAML = `
id: rusty-sword
names:
  en: rusty sword
  ko: 녹슨 검
descriptions:
  en: Pitted but serviceable.
category: weapon
weight: 5
slot: weapon
properties:
  damage: 1d6
`

func TestLoadTemplateFromBytes(t *testing.T) {
	tmpl, err := LoadTemplateFromBytes([]byte(swordYAML))
	require.NoError(t, err)

	assert.Equal(t, "rusty-sword", tmpl.ID)
	assert.Equal(t, "녹슨 검", tmpl.Names.Get(i18n.LocaleKO))
	assert.Equal(t, CategoryWeapon, tmpl.Category)
	assert.Equal(t, "weapon", tmpl.Slot)
	assert.Equal(t, "1d6", tmpl.Properties["damage"])
}

func TestLoadTemplateFromBytes_Invalid(t *testing.T) {
	_, err := LoadTemplateFromBytes([]byte("names:\n  en: nameless\n"))
	assert.Error(t, err)

	// Stackables need a stack size.
	_, err = LoadTemplateFromBytes([]byte("id: coin\nnames:\n  en: coin\nstackable: true\n"))
	assert.Error(t, err)
}

func TestLoadTemplates_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sword.yaml"), []byte(swordYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	templates, err := LoadTemplates(dir)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "rusty-sword", templates[0].ID)
}
