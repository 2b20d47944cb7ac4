// Package monster manages monster templates, live instances, and the
// lifecycle passes that respawn, spawn, and roam them on the scheduler
// tick.
package monster

import (
	"time"

	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// Type determines how a monster reacts to players.
type Type string

const (
	// Aggressive monsters attack arriving players on sight.
	Aggressive Type = "AGGRESSIVE"
	// Passive monsters never fight back.
	Passive Type = "PASSIVE"
	// Neutral monsters fight only when attacked.
	Neutral Type = "NEUTRAL"
)

// Behavior determines how a monster moves.
type Behavior string

const (
	// Stationary monsters never leave their spawn room.
	Stationary Behavior = "STATIONARY"
	// Roaming monsters wander freely within their area box.
	Roaming Behavior = "ROAMING"
	// Territorial monsters wander but stay near their spawn.
	Territorial Behavior = "TERRITORIAL"
)

// Stats is a monster's ability block.
type Stats struct {
	Strength     int `yaml:"strength"`
	Dexterity    int `yaml:"dexterity"`
	Constitution int `yaml:"constitution"`
	Intelligence int `yaml:"intelligence"`
	Wisdom       int `yaml:"wisdom"`
	Charisma     int `yaml:"charisma"`
	Level        int `yaml:"level"`
	MaxHP        int `yaml:"max_hp"`
	ArmorClass   int `yaml:"armor_class"`
}

// DropEntry is one line of a template's drop table.
type DropEntry struct {
	// TemplateID names the object template to instantiate.
	TemplateID string `yaml:"template_id"`
	// Chance is the drop probability in [0, 1].
	Chance float64 `yaml:"chance"`
	// MinQuantity..MaxQuantity is the inclusive range rolled per kill.
	// Zero values mean a single instance.
	MinQuantity int `yaml:"min_quantity"`
	MaxQuantity int `yaml:"max_quantity"`
}

// RoamingConfig bounds a roaming or territorial monster's wandering.
type RoamingConfig struct {
	// Chance is the per-tick probability of moving, in [0, 1].
	Chance float64 `yaml:"chance"`
	// MinX..MaxY is the inclusive area box the monster stays inside.
	MinX int `yaml:"min_x"`
	MaxX int `yaml:"max_x"`
	MinY int `yaml:"min_y"`
	MaxY int `yaml:"max_y"`
}

// Contains reports whether c lies inside the area box.
func (rc *RoamingConfig) Contains(c world.Coord) bool {
	return c.X >= rc.MinX && c.X <= rc.MaxX && c.Y >= rc.MinY && c.Y <= rc.MaxY
}

// Template describes a monster kind loaded from content files.
type Template struct {
	ID           string         `yaml:"id"`
	Names        i18n.Strings   `yaml:"names"`
	Descriptions i18n.Strings   `yaml:"descriptions"`
	Type         Type           `yaml:"type"`
	Behavior     Behavior       `yaml:"behavior"`
	Stats        Stats          `yaml:"stats"`
	Gold         int            `yaml:"gold"`
	Drops        []DropEntry    `yaml:"drops"`
	RespawnDelay time.Duration  `yaml:"respawn_delay"`
	Roaming      *RoamingConfig `yaml:"roaming"`
	FactionID    string         `yaml:"faction_id"`
}

// Instance is a live (or dead-and-waiting) monster in the world.
type Instance struct {
	// ID uniquely identifies this instance.
	ID string
	// TemplateID names the template this instance was created from.
	TemplateID string
	// Names and Descriptions are copied from the template.
	Names        i18n.Strings
	Descriptions i18n.Strings
	Type         Type
	Behavior     Behavior
	Stats        Stats
	// HP is current hit points.
	HP int
	// Gold awarded to the killer.
	Gold int
	Drops []DropEntry
	// Coord is the monster's current position.
	Coord world.Coord
	// SpawnCoord is where the monster respawns.
	SpawnCoord world.Coord
	// Alive is false between death and respawn.
	Alive bool
	// DiedAt is when the monster last died; zero if never.
	DiedAt time.Time
	// RespawnDelay is how long the monster stays dead.
	RespawnDelay time.Duration
	Roaming      *RoamingConfig
	// InCombat marks the monster as claimed by a running combat.
	InCombat bool
	FactionID string
	// CreatedAt orders instances for oldest-first culling.
	CreatedAt time.Time
}

// Name returns the localized display name.
func (m *Instance) Name(loc i18n.Locale) string {
	return m.Names.Get(loc)
}

// Description returns the localized description.
func (m *Instance) Description(loc i18n.Locale) string {
	return m.Descriptions.Get(loc)
}

// SpawnPoint binds a template to a room with spawn limits.
type SpawnPoint struct {
	RoomID      string  `yaml:"room_id"`
	TemplateID  string  `yaml:"template_id"`
	MaxPerRoom  int     `yaml:"max_per_room"`
	SpawnChance float64 `yaml:"spawn_chance"`
}
