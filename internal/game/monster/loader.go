package monster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// templateDoc is the YAML shape of a monster template file. Durations
// travel as strings ("90s", "5m") and are parsed on load.
type templateDoc struct {
	ID           string         `yaml:"id"`
	Names        i18n.Strings   `yaml:"names"`
	Descriptions i18n.Strings   `yaml:"descriptions"`
	Type         Type           `yaml:"type"`
	Behavior     Behavior       `yaml:"behavior"`
	Stats        Stats          `yaml:"stats"`
	Gold         int            `yaml:"gold"`
	Drops        []DropEntry    `yaml:"drops"`
	RespawnDelay string         `yaml:"respawn_delay"`
	Roaming      *RoamingConfig `yaml:"roaming"`
	FactionID    string         `yaml:"faction_id"`
	GlobalCap    int            `yaml:"global_cap"`
}

// LoadTemplateFromBytes parses and validates a single template document.
//
// Postcondition: The returned template has a non-empty ID, an English
// name, and a positive MaxHP.
func LoadTemplateFromBytes(data []byte) (*Template, int, error) {
	var doc templateDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("parsing template: %w", err)
	}
	if doc.ID == "" {
		return nil, 0, fmt.Errorf("template is missing an id")
	}
	if doc.Names.Get(i18n.LocaleEN) == "" {
		return nil, 0, fmt.Errorf("template %q is missing an English name", doc.ID)
	}
	if doc.Stats.MaxHP <= 0 {
		return nil, 0, fmt.Errorf("template %q must have positive max_hp", doc.ID)
	}

	var delay time.Duration
	if doc.RespawnDelay != "" {
		d, err := time.ParseDuration(doc.RespawnDelay)
		if err != nil {
			return nil, 0, fmt.Errorf("template %q has invalid respawn_delay %q: %w", doc.ID, doc.RespawnDelay, err)
		}
		delay = d
	}

	return &Template{
		ID:           doc.ID,
		Names:        doc.Names,
		Descriptions: doc.Descriptions,
		Type:         doc.Type,
		Behavior:     doc.Behavior,
		Stats:        doc.Stats,
		Gold:         doc.Gold,
		Drops:        doc.Drops,
		RespawnDelay: delay,
		Roaming:      doc.Roaming,
		FactionID:    doc.FactionID,
	}, doc.GlobalCap, nil
}

// LoadTemplates reads every .yaml file in dir as one monster template.
//
// Postcondition: Returns the templates plus the per-template global
// caps keyed by template id (zero = uncapped).
func LoadTemplates(dir string) ([]*Template, map[string]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading monster dir %q: %w", dir, err)
	}

	var templates []*Template
	caps := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		// The spawn-point list lives alongside the templates.
		if entry.Name() == "spawns.yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, globalCap, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
		if globalCap > 0 {
			caps[tmpl.ID] = globalCap
		}
	}
	return templates, caps, nil
}

// LoadSpawnPoints reads the spawn-point list from a single YAML file.
// A missing file is not an error; it yields no spawn points.
func LoadSpawnPoints(path string) ([]SpawnPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading spawn points %q: %w", path, err)
	}

	var points []SpawnPoint
	if err := yaml.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("parsing spawn points %q: %w", path, err)
	}
	for i, p := range points {
		if p.TemplateID == "" || p.RoomID == "" {
			return nil, fmt.Errorf("spawn point %d must name a template and a room", i)
		}
	}
	return points, nil
}
