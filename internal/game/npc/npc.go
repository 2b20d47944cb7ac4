// Package npc manages non-hostile characters: dialogue partners and
// shopkeepers placed at fixed coordinates.
package npc

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// ShopEntry is one item a shopkeeper sells.
type ShopEntry struct {
	// TemplateID names the object template for sale.
	TemplateID string `yaml:"template_id"`
	// Price in the named currency.
	Price    int    `yaml:"price"`
	Currency string `yaml:"currency"`
}

// NPC is a placed non-player character.
type NPC struct {
	ID           string       `yaml:"id"`
	Names        i18n.Strings `yaml:"names"`
	Descriptions i18n.Strings `yaml:"descriptions"`
	// Type is a free-form tag ("merchant", "guard", "villager").
	Type string `yaml:"type"`
	// X, Y is the NPC's fixed position.
	X int `yaml:"x"`
	Y int `yaml:"y"`
	// Dialogue maps a topic to localized responses; the "default" topic
	// answers a plain talk command.
	Dialogue map[string]i18n.Strings `yaml:"dialogue"`
	// Shop lists items for sale; empty for non-merchants.
	Shop []ShopEntry `yaml:"shop"`
	// Script names a dialogue script run instead of the static table,
	// when the scripting engine is wired in.
	Script string `yaml:"script"`
	// FactionID buckets the NPC for display coloring.
	FactionID string `yaml:"faction_id"`
	// Active NPCs appear in room views; inactive ones are hidden.
	Active bool `yaml:"active"`
}

// Coord returns the NPC's position.
func (n *NPC) Coord() world.Coord {
	return world.Coord{X: n.X, Y: n.Y}
}

// Name returns the localized display name.
func (n *NPC) Name(loc i18n.Locale) string {
	return n.Names.Get(loc)
}

// Description returns the localized description.
func (n *NPC) Description(loc i18n.Locale) string {
	return n.Descriptions.Get(loc)
}

// Respond returns the localized dialogue line for a topic, falling back
// to the "default" topic.
//
// Postcondition: Returns ("", false) when the NPC has nothing to say.
func (n *NPC) Respond(topic string, loc i18n.Locale) (string, bool) {
	if line, ok := n.Dialogue[topic]; ok {
		return line.Get(loc), true
	}
	if line, ok := n.Dialogue["default"]; ok {
		return line.Get(loc), true
	}
	return "", false
}

// Manager indexes NPCs by id and coordinate.
type Manager struct {
	mu      sync.RWMutex
	npcs    map[string]*NPC
	byCoord map[world.Coord]map[string]*NPC

	logger *zap.Logger
}

// NewManager creates an empty Manager.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		npcs:    make(map[string]*NPC),
		byCoord: make(map[world.Coord]map[string]*NPC),
		logger:  logger,
	}
}

// Add registers an NPC.
//
// Postcondition: Returns an error on a duplicate id.
func (m *Manager) Add(n *NPC) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.npcs[n.ID]; ok {
		return fmt.Errorf("npc %q already exists", n.ID)
	}
	m.npcs[n.ID] = n
	set := m.byCoord[n.Coord()]
	if set == nil {
		set = make(map[string]*NPC)
		m.byCoord[n.Coord()] = set
	}
	set[n.ID] = n
	return nil
}

// Get looks up an NPC by id.
func (m *Manager) Get(id string) (*NPC, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.npcs[id]
	return n, ok
}

// ActiveAt returns the active NPCs at a coordinate, sorted by id.
func (m *Manager) ActiveAt(c world.Coord) []*NPC {
	m.mu.RLock()
	set := m.byCoord[c]
	out := make([]*NPC, 0, len(set))
	for _, n := range set {
		if n.Active {
			out = append(out, n)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindActiveAt locates an active NPC at c whose localized name contains
// name, case-insensitively.
func (m *Manager) FindActiveAt(c world.Coord, name string, locale i18n.Locale) (*NPC, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, false
	}
	for _, n := range m.ActiveAt(c) {
		if strings.Contains(strings.ToLower(n.Name(locale)), needle) {
			return n, true
		}
		for _, candidate := range n.Names {
			if strings.Contains(strings.ToLower(candidate), needle) {
				return n, true
			}
		}
	}
	return nil, false
}

// All returns a snapshot of every NPC.
func (m *Manager) All() []*NPC {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*NPC, 0, len(m.npcs))
	for _, n := range m.npcs {
		out = append(out, n)
	}
	return out
}
