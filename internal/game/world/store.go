package world

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// Persister receives write-through notifications for room mutations.
// Methods are called outside the store lock; a nil Persister disables
// persistence, which is what the tests use.
type Persister interface {
	SaveRoom(room *Room) error
	DeleteRoom(id string) error
	SavePortal(from, to Coord) error
	DeletePortal(from Coord) error
}

// Relocator rescues the contents of a deleted room. The object manager
// implements it; a nil Relocator skips the step.
type Relocator interface {
	RelocateRoomContents(roomID, defaultRoomID string) int
}

// Store is the authoritative in-memory room grid. Rooms are indexed both
// by id and by coordinate; the two indexes are kept consistent under a
// single lock. Exits are never stored: they are derived from coordinate
// adjacency plus the portal table on every query.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*Room
	byCoord   map[Coord]*Room
	portals   map[Coord]Coord
	defaultID string

	persister Persister
	relocator Relocator
	logger    *zap.Logger
}

// NewStore creates an empty Store. persister may be nil.
//
// Precondition: logger must be non-nil.
func NewStore(defaultRoomID string, persister Persister, logger *zap.Logger) *Store {
	return &Store{
		byID:      make(map[string]*Room),
		byCoord:   make(map[Coord]*Room),
		portals:   make(map[Coord]Coord),
		defaultID: defaultRoomID,
		persister: persister,
		logger:    logger,
	}
}

// SetRelocator wires in the deleted-room content rescue after
// construction; the object manager and the store depend on each other.
func (s *Store) SetRelocator(r Relocator) {
	s.relocator = r
}

// DefaultRoomID returns the configured fallback room id.
func (s *Store) DefaultRoomID() string {
	return s.defaultID
}

// CreateRoom adds a room to both indexes and writes it through.
//
// Precondition: room.ID must be non-empty.
// Postcondition: Returns an error if the id or the coordinate is already taken;
// on success the room is visible to GetRoom and GetRoomAt.
func (s *Store) CreateRoom(room *Room) error {
	if room == nil || room.ID == "" {
		return fmt.Errorf("room id must not be empty")
	}

	s.mu.Lock()
	if _, ok := s.byID[room.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("room %q already exists", room.ID)
	}
	if existing, ok := s.byCoord[room.Coord]; ok {
		s.mu.Unlock()
		return fmt.Errorf("coordinate %s is already occupied by room %q", room.Coord, existing.ID)
	}
	now := time.Now()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	s.byID[room.ID] = room
	s.byCoord[room.Coord] = room
	s.mu.Unlock()

	s.logger.Info("room created",
		zap.String("room_id", room.ID),
		zap.Int("x", room.Coord.X),
		zap.Int("y", room.Coord.Y),
	)
	return s.persistSave(room)
}

// UpdateRoom applies mutate to the named room under the store lock and
// writes the result through. mutate must not touch other rooms.
//
// Postcondition: Returns an error if the room does not exist or the mutation
// moves it onto an occupied coordinate. Coordinate changes update both indexes.
func (s *Store) UpdateRoom(id string, mutate func(*Room)) error {
	s.mu.Lock()
	room, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("room %q not found", id)
	}
	oldCoord := room.Coord
	mutate(room)
	room.ID = id
	if room.Coord != oldCoord {
		if occupant, taken := s.byCoord[room.Coord]; taken && occupant.ID != id {
			room.Coord = oldCoord
			s.mu.Unlock()
			return fmt.Errorf("coordinate %s is already occupied by room %q", occupant.Coord, occupant.ID)
		}
		delete(s.byCoord, oldCoord)
		s.byCoord[room.Coord] = room
	}
	room.UpdatedAt = time.Now()
	s.mu.Unlock()

	return s.persistSave(room)
}

// DeleteRoom removes a room from both indexes along with any portal that
// starts or ends at its coordinate. The default room cannot be deleted.
//
// Postcondition: Returns an error if the room does not exist or is the default
// room. Derived exits into the deleted coordinate vanish with it.
func (s *Store) DeleteRoom(id string) error {
	if id == s.defaultID {
		return fmt.Errorf("cannot delete the default room %q", id)
	}

	s.mu.Lock()
	room, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("room %q not found", id)
	}
	delete(s.byID, id)
	delete(s.byCoord, room.Coord)
	var removedPortals []Coord
	for from, to := range s.portals {
		if from == room.Coord || to == room.Coord {
			delete(s.portals, from)
			removedPortals = append(removedPortals, from)
		}
	}
	s.mu.Unlock()

	s.logger.Info("room deleted",
		zap.String("room_id", id),
		zap.Int("x", room.Coord.X),
		zap.Int("y", room.Coord.Y),
		zap.Int("portals_removed", len(removedPortals)),
	)
	if s.relocator != nil {
		if moved := s.relocator.RelocateRoomContents(id, s.defaultID); moved > 0 {
			s.logger.Info("relocated deleted room contents",
				zap.String("room_id", id),
				zap.String("default_room", s.defaultID),
				zap.Int("objects", moved),
			)
		}
	}
	if s.persister != nil {
		for _, from := range removedPortals {
			if err := s.persister.DeletePortal(from); err != nil {
				return fmt.Errorf("delete portal at %s: %w", from, err)
			}
		}
		if err := s.persister.DeleteRoom(id); err != nil {
			return fmt.Errorf("delete room %q: %w", id, err)
		}
	}
	return nil
}

// GetRoom looks up a room by id.
//
// Postcondition: Returns (room, true) if present, (nil, false) otherwise.
func (s *Store) GetRoom(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.byID[id]
	return room, ok
}

// GetRoomAt looks up a room by coordinate.
//
// Postcondition: Returns (room, true) if present, (nil, false) otherwise.
func (s *Store) GetRoomAt(c Coord) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.byCoord[c]
	return room, ok
}

// DefaultRoom returns the configured fallback room.
//
// Postcondition: Returns (nil, false) until the default room has been created.
func (s *Store) DefaultRoom() (*Room, bool) {
	return s.GetRoom(s.defaultID)
}

// Rooms returns a snapshot of all rooms in no particular order.
func (s *Store) Rooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.byID))
	for _, room := range s.byID {
		out = append(out, room)
	}
	return out
}

// Count returns the number of rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// SetPortal records an enter-connection from one coordinate to another.
// Both endpoints must hold rooms.
//
// Postcondition: ComputeExits for the room at from includes an "enter" exit.
func (s *Store) SetPortal(from, to Coord) error {
	s.mu.Lock()
	if _, ok := s.byCoord[from]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("no room at portal origin %s", from)
	}
	if _, ok := s.byCoord[to]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("no room at portal destination %s", to)
	}
	s.portals[from] = to
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.SavePortal(from, to); err != nil {
			return fmt.Errorf("save portal %s -> %s: %w", from, to, err)
		}
	}
	return nil
}

// RemovePortal deletes the enter-connection starting at from, if any.
func (s *Store) RemovePortal(from Coord) error {
	s.mu.Lock()
	_, ok := s.portals[from]
	delete(s.portals, from)
	s.mu.Unlock()

	if ok && s.persister != nil {
		if err := s.persister.DeletePortal(from); err != nil {
			return fmt.Errorf("delete portal at %s: %w", from, err)
		}
	}
	return nil
}

// Portal returns the enter-destination for a coordinate, if one exists.
func (s *Store) Portal(from Coord) (Coord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	to, ok := s.portals[from]
	return to, ok
}

// ComputeExits synthesizes the exit map for a room. A cardinal direction
// is an exit iff a room exists at the adjacent coordinate; "enter" is an
// exit iff the portal table has an entry for the room's coordinate. No
// exit state is stored, so deleting a room can never leave a dangling
// exit behind.
//
// Postcondition: Returns an error if the room does not exist. The returned
// map holds destination room ids keyed by direction.
func (s *Store) ComputeExits(roomID string) (map[Direction]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.byID[roomID]
	if !ok {
		return nil, fmt.Errorf("room %q not found", roomID)
	}

	exits := make(map[Direction]string, 5)
	for _, dir := range Cardinals {
		delta, _ := dir.Delta()
		if neighbor, present := s.byCoord[room.Coord.Add(delta)]; present {
			exits[dir] = neighbor.ID
		}
	}
	if dest, present := s.portals[room.Coord]; present {
		if target, found := s.byCoord[dest]; found {
			exits[Enter] = target.ID
		}
	}
	return exits, nil
}

// ResolveExit computes the destination of moving dir from the room at c.
//
// Postcondition: Returns (room, true) when the exit exists, (nil, false)
// otherwise, including when no room exists at c.
func (s *Store) ResolveExit(c Coord, dir Direction) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byCoord[c]; !ok {
		return nil, false
	}
	if dir == Enter {
		dest, ok := s.portals[c]
		if !ok {
			return nil, false
		}
		room, found := s.byCoord[dest]
		return room, found
	}
	delta, ok := dir.Delta()
	if !ok {
		return nil, false
	}
	room, found := s.byCoord[c.Add(delta)]
	return room, found
}

// NewRoom is a convenience constructor for a room with localized
// descriptions.
func NewRoom(id string, c Coord, descriptions i18n.Strings) *Room {
	now := time.Now()
	return &Room{
		ID:           id,
		Coord:        c,
		Descriptions: descriptions,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Store) persistSave(room *Room) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.SaveRoom(room); err != nil {
		return fmt.Errorf("save room %q: %w", room.ID, err)
	}
	return nil
}
