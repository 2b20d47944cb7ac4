// Package world provides the authoritative room grid: rooms addressed by
// id and by integer (x, y) coordinates, with exits derived on demand from
// coordinate adjacency plus a small portal table.
package world

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// Coord is an integer grid coordinate.
type Coord struct {
	X int
	Y int
}

// String returns "(x, y)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Add returns the sum of two coordinates.
func (c Coord) Add(d Coord) Coord {
	return Coord{X: c.X + d.X, Y: c.Y + d.Y}
}

// Direction is a movement direction on the grid.
type Direction string

// The four cardinals plus the portal pseudo-direction.
const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
	// Enter follows the room's portal connection, when one exists.
	Enter Direction = "enter"
)

// Cardinals lists the four grid directions in display order.
var Cardinals = []Direction{North, East, South, West}

// Delta returns the coordinate offset for a cardinal direction.
// North increases Y; East increases X. Enter has no fixed delta.
//
// Postcondition: Returns (delta, true) for cardinals, (Coord{}, false) for Enter
// and unknown directions.
func (d Direction) Delta() (Coord, bool) {
	switch d {
	case North:
		return Coord{Y: 1}, true
	case South:
		return Coord{Y: -1}, true
	case East:
		return Coord{X: 1}, true
	case West:
		return Coord{X: -1}, true
	default:
		return Coord{}, false
	}
}

// Opposite returns the reverse of a cardinal direction.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		return ""
	}
}

// ParseDirection resolves a direction name or single-letter alias.
//
// Postcondition: Returns (direction, true) for north/south/east/west/enter
// and the n/s/e/w aliases, or ("", false).
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "north", "n":
		return North, true
	case "south", "s":
		return South, true
	case "east", "e":
		return East, true
	case "west", "w":
		return West, true
	case "enter":
		return Enter, true
	default:
		return "", false
	}
}

// Room is a location in the game world. A room is identified both by an
// opaque ID and by its grid coordinate; both are unique.
type Room struct {
	// ID uniquely identifies this room.
	ID string
	// Coord is the room's grid position.
	Coord Coord
	// Descriptions is the localized description table.
	Descriptions i18n.Strings
	// CreatedAt is when the room was created.
	CreatedAt time.Time
	// UpdatedAt is when the room was last modified.
	UpdatedAt time.Time
}

// Description returns the room description for the given locale.
func (r *Room) Description(loc i18n.Locale) string {
	return r.Descriptions.Get(loc)
}
