package npc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// LoadNPCFromBytes parses and validates a single NPC document.
func LoadNPCFromBytes(data []byte) (*NPC, error) {
	var n NPC
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parsing npc: %w", err)
	}
	if n.ID == "" {
		return nil, fmt.Errorf("npc is missing an id")
	}
	if n.Names.Get(i18n.LocaleEN) == "" {
		return nil, fmt.Errorf("npc %q is missing an English name", n.ID)
	}
	for _, entry := range n.Shop {
		if entry.TemplateID == "" || entry.Price <= 0 {
			return nil, fmt.Errorf("npc %q has a shop entry without a template or positive price", n.ID)
		}
	}
	return &n, nil
}

// LoadNPCs reads every .yaml file in dir as one NPC.
func LoadNPCs(dir string) ([]*NPC, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading npc dir %q: %w", dir, err)
	}

	var npcs []*NPC
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		n, err := LoadNPCFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		npcs = append(npcs, n)
	}
	return npcs, nil
}
