// Package object manages game object instances: items in rooms, player
// inventories, and containers. Every object has exactly one location at
// a time; the manager validates moves and repairs orphans.
package object

import (
	"time"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// Category classifies an object for equipment and interaction rules.
type Category string

const (
	CategoryWeapon     Category = "weapon"
	CategoryArmor      Category = "armor"
	CategoryConsumable Category = "consumable"
	CategoryMisc       Category = "misc"
	CategoryContainer  Category = "container"
)

// LocationType identifies what kind of holder an object sits in.
type LocationType string

const (
	LocationRoom      LocationType = "room"
	LocationInventory LocationType = "inventory"
	LocationContainer LocationType = "container"
)

// Location is an object's single place in the world: a room id, a player
// id (inventory), or another object's id (container).
type Location struct {
	Type LocationType
	ID   string
}

// RoomLocation returns a Location for the given room.
func RoomLocation(roomID string) Location {
	return Location{Type: LocationRoom, ID: roomID}
}

// InventoryLocation returns a Location for the given player's inventory.
func InventoryLocation(playerID string) Location {
	return Location{Type: LocationInventory, ID: playerID}
}

// ContainerLocation returns a Location inside the given container object.
func ContainerLocation(objectID string) Location {
	return Location{Type: LocationContainer, ID: objectID}
}

// Template describes an object kind loaded from content files. Instances
// copy the template fields at creation time.
type Template struct {
	ID           string            `yaml:"id"`
	Names        i18n.Strings      `yaml:"names"`
	Descriptions i18n.Strings      `yaml:"descriptions"`
	Category     Category          `yaml:"category"`
	Weight       int               `yaml:"weight"`
	Slot         string            `yaml:"slot"`
	Stackable    bool              `yaml:"stackable"`
	MaxStack     int               `yaml:"max_stack"`
	Properties   map[string]string `yaml:"properties"`
}

// Instance is a live object in the world.
type Instance struct {
	// ID uniquely identifies this instance.
	ID string
	// TemplateID names the template this instance was created from, if any.
	TemplateID string
	// Names and Descriptions are the localized display strings.
	Names        i18n.Strings
	Descriptions i18n.Strings
	// Category classifies the object.
	Category Category
	// Weight in arbitrary encumbrance units.
	Weight int
	// Slot is the equipment slot this object occupies when equipped
	// ("weapon", "head", "chest", ...), empty for unequippable objects.
	Slot string
	// Equipped reports whether the object is currently worn or wielded.
	// Only meaningful for inventory-located objects with a Slot.
	Equipped bool
	// Stackable objects merge into stacks up to MaxStack.
	Stackable bool
	MaxStack  int
	// Quantity is the stack size; 1 for non-stackable objects.
	Quantity int
	// Properties is the free-form property map ("damage" for weapons,
	// "armor" for armor, "heal" for consumables).
	Properties map[string]string
	// Location is the object's single current holder.
	Location Location
	// CreatedAt is when the instance was created.
	CreatedAt time.Time
}

// Name returns the localized display name.
func (o *Instance) Name(loc i18n.Locale) string {
	return o.Names.Get(loc)
}

// Description returns the localized description.
func (o *Instance) Description(loc i18n.Locale) string {
	return o.Descriptions.Get(loc)
}

// Property returns a free-form property value.
//
// Postcondition: Returns ("", false) when the property is absent.
func (o *Instance) Property(key string) (string, bool) {
	v, ok := o.Properties[key]
	return v, ok
}
