package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// WorldFile is the YAML seed document used to bootstrap an empty
// database: the initial room grid plus its portal connections.
type WorldFile struct {
	Rooms   []RoomDoc   `yaml:"rooms"`
	Portals []PortalDoc `yaml:"portals"`
}

// RoomDoc is one seeded room.
type RoomDoc struct {
	ID           string       `yaml:"id"`
	X            int          `yaml:"x"`
	Y            int          `yaml:"y"`
	Descriptions i18n.Strings `yaml:"descriptions"`
}

// PortalDoc is one seeded enter-connection.
type PortalDoc struct {
	FromX int `yaml:"from_x"`
	FromY int `yaml:"from_y"`
	ToX   int `yaml:"to_x"`
	ToY   int `yaml:"to_y"`
}

// LoadWorldFile reads and validates a world seed file.
//
// Postcondition: Every returned room has an id and an English
// description.
func LoadWorldFile(path string) (*WorldFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file %q: %w", path, err)
	}

	var wf WorldFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing world file %q: %w", path, err)
	}
	for i, doc := range wf.Rooms {
		if doc.ID == "" {
			return nil, fmt.Errorf("room %d in %q is missing an id", i, path)
		}
		if doc.Descriptions.Get(i18n.LocaleEN) == "" {
			return nil, fmt.Errorf("room %q in %q is missing an English description", doc.ID, path)
		}
	}
	return &wf, nil
}

// Seed creates every room and portal of a world file in the store.
//
// Precondition: The store should be empty; existing ids or coordinates
// fail the corresponding create.
func (wf *WorldFile) Seed(store *Store) error {
	for _, doc := range wf.Rooms {
		room := NewRoom(doc.ID, Coord{X: doc.X, Y: doc.Y}, doc.Descriptions)
		if err := store.CreateRoom(room); err != nil {
			return fmt.Errorf("seeding room %q: %w", doc.ID, err)
		}
	}
	for _, doc := range wf.Portals {
		from := Coord{X: doc.FromX, Y: doc.FromY}
		to := Coord{X: doc.ToX, Y: doc.ToY}
		if err := store.SetPortal(from, to); err != nil {
			return fmt.Errorf("seeding portal %s -> %s: %w", from, to, err)
		}
	}
	return nil
}
