package npc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

const miraYAML = `
id: mira
names:
  en: Mira the Merchant
  ko: 상인 미라
descriptions:
  en: A merchant with a crowded stall.
type: merchant
x: 0
y: 0
dialogue:
  default:
    en: Welcome, traveler.
    ko: 어서 오세요, 여행자님.
  rumors:
    en: They say rats gnaw the north road.
shop:
  - template_id: torch
    price: 8
    currency: gold
active: true
`

func TestLoadNPCFromBytes(t *testing.T) {
	n, err := LoadNPCFromBytes([]byte(miraYAML))
	require.NoError(t, err)

	assert.Equal(t, "mira", n.ID)
	assert.Equal(t, "상인 미라", n.Name(i18n.LocaleKO))
	assert.True(t, n.Active)
	require.Len(t, n.Shop, 1)
	assert.Equal(t, "torch", n.Shop[0].TemplateID)

	line, ok := n.Respond("rumors", i18n.LocaleKO)
	require.True(t, ok)
	// Korean has no rumors line; falls back to English.
	assert.Equal(t, "They say rats gnaw the north road.", line)
}

func TestLoadNPCFromBytes_Invalid(t *testing.T) {
	_, err := LoadNPCFromBytes([]byte("names:\n  en: nameless\n"))
	assert.Error(t, err)

	_, err = LoadNPCFromBytes([]byte("id: freebie\nnames:\n  en: freebie\nshop:\n  - template_id: torch\n    price: 0\n"))
	assert.Error(t, err)
}

func TestLoadNPCs_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mira.yaml"), []byte(miraYAML), 0o644))

	npcs, err := LoadNPCs(dir)
	require.NoError(t, err)
	require.Len(t, npcs, 1)
	assert.Equal(t, "mira", npcs[0].ID)
}
