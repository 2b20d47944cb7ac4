package object

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// Persister receives write-through notifications for object mutations.
// A nil Persister disables persistence.
type Persister interface {
	SaveObject(obj *Instance) error
	DeleteObject(id string) error
}

// LocationResolver reports whether a location target still exists. The
// manager resolves room and player ids through it during moves and
// integrity sweeps; container ids resolve within the manager itself.
type LocationResolver interface {
	RoomExists(roomID string) bool
	PlayerExists(playerID string) bool
}

// Manager indexes object instances by id and by location.
type Manager struct {
	mu         sync.RWMutex
	objects    map[string]*Instance
	byLocation map[Location]map[string]*Instance
	templates  map[string]*Template

	persister Persister
	logger    *zap.Logger
}

// NewManager creates an empty Manager. persister may be nil.
//
// Precondition: logger must be non-nil.
func NewManager(persister Persister, logger *zap.Logger) *Manager {
	return &Manager{
		objects:    make(map[string]*Instance),
		byLocation: make(map[Location]map[string]*Instance),
		templates:  make(map[string]*Template),
		persister:  persister,
		logger:     logger,
	}
}

// RegisterTemplate makes a template available for Instantiate.
func (m *Manager) RegisterTemplate(tpl *Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[tpl.ID] = tpl
}

// Template looks up a registered template by id.
func (m *Manager) Template(id string) (*Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	return tpl, ok
}

// Templates returns all registered templates sorted by id.
func (m *Manager) Templates() []*Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Template, 0, len(m.templates))
	for _, tpl := range m.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Instantiate creates a new instance from a registered template at loc.
//
// Postcondition: Returns an error if the template is unknown; on success the
// instance is visible to Get and GetObjectsIn.
func (m *Manager) Instantiate(templateID string, loc Location) (*Instance, error) {
	m.mu.RLock()
	tpl, ok := m.templates[templateID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("object template %q not found", templateID)
	}

	props := make(map[string]string, len(tpl.Properties))
	for k, v := range tpl.Properties {
		props[k] = v
	}
	obj := &Instance{
		ID:           uuid.New().String(),
		TemplateID:   tpl.ID,
		Names:        tpl.Names,
		Descriptions: tpl.Descriptions,
		Category:     tpl.Category,
		Weight:       tpl.Weight,
		Slot:         tpl.Slot,
		Stackable:    tpl.Stackable,
		MaxStack:     tpl.MaxStack,
		Quantity:     1,
		Properties:   props,
		Location:     loc,
		CreatedAt:    time.Now(),
	}
	if err := m.Add(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Add registers an existing instance, typically loaded from the database.
//
// Postcondition: Returns an error on a duplicate id.
func (m *Manager) Add(obj *Instance) error {
	m.mu.Lock()
	if _, ok := m.objects[obj.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("object %q already exists", obj.ID)
	}
	if obj.Quantity < 1 {
		obj.Quantity = 1
	}
	m.objects[obj.ID] = obj
	m.indexLocked(obj)
	m.mu.Unlock()

	return m.persistSave(obj)
}

// Get looks up an instance by id.
func (m *Manager) Get(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	return obj, ok
}

// GetObjectsIn returns the objects held by a location, sorted by creation
// time so listings are stable.
func (m *Manager) GetObjectsIn(loc Location) []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.byLocation[loc]
	out := make([]*Instance, 0, len(set))
	for _, obj := range set {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FindIn locates an object in loc whose localized name contains name
// (case-insensitive substring, checked in the given locale first and then
// the rest).
//
// Postcondition: Returns the oldest match or (nil, false).
func (m *Manager) FindIn(loc Location, name string, locale i18n.Locale) (*Instance, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, false
	}
	for _, obj := range m.GetObjectsIn(loc) {
		if strings.Contains(strings.ToLower(obj.Name(locale)), needle) {
			return obj, true
		}
		for _, candidate := range obj.Names {
			if strings.Contains(strings.ToLower(candidate), needle) {
				return obj, true
			}
		}
	}
	return nil, false
}

// MoveObject relocates an object after validating that the target exists:
// rooms and players through the resolver, containers against the
// manager's own index. An object cannot be moved into itself.
//
// Postcondition: On success the object appears only under the new location.
// Equipped objects are unequipped when they leave an inventory.
func (m *Manager) MoveObject(id string, newLoc Location, resolver LocationResolver) error {
	switch newLoc.Type {
	case LocationRoom:
		if resolver != nil && !resolver.RoomExists(newLoc.ID) {
			return fmt.Errorf("room %q not found", newLoc.ID)
		}
	case LocationInventory:
		if resolver != nil && !resolver.PlayerExists(newLoc.ID) {
			return fmt.Errorf("player %q not found", newLoc.ID)
		}
	case LocationContainer:
		if newLoc.ID == id {
			return fmt.Errorf("object %q cannot contain itself", id)
		}
		container, ok := m.Get(newLoc.ID)
		if !ok {
			return fmt.Errorf("container %q not found", newLoc.ID)
		}
		if container.Category != CategoryContainer {
			return fmt.Errorf("object %q is not a container", newLoc.ID)
		}
	default:
		return fmt.Errorf("unknown location type %q", newLoc.Type)
	}

	m.mu.Lock()
	obj, ok := m.objects[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("object %q not found", id)
	}
	m.unindexLocked(obj)
	if obj.Location.Type == LocationInventory && newLoc.Type != LocationInventory {
		obj.Equipped = false
	}
	obj.Location = newLoc
	m.indexLocked(obj)
	m.mu.Unlock()

	return m.persistSave(obj)
}

// StackInto moves an object into a player's inventory, merging it into
// an existing stack of the same template when one has room. When every
// stack is full the object goes to overflow instead; for pickups that
// is the room it came from.
//
// Postcondition: The returned instance is the one now holding the moved
// units: the receiving stack on a merge, the object itself otherwise.
func (m *Manager) StackInto(id, playerID string, overflow Location, resolver LocationResolver) (*Instance, error) {
	obj, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("object %q not found", id)
	}
	inv := InventoryLocation(playerID)
	if !obj.Stackable || obj.MaxStack <= 1 {
		if err := m.MoveObject(id, inv, resolver); err != nil {
			return nil, err
		}
		return obj, nil
	}

	var stack *Instance
	full := false
	for _, held := range m.GetObjectsIn(inv) {
		if held.ID == obj.ID || held.TemplateID != obj.TemplateID || !held.Stackable {
			continue
		}
		if held.Quantity < held.MaxStack {
			stack = held
			break
		}
		full = true
	}
	if stack == nil {
		if full {
			if err := m.MoveObject(id, overflow, resolver); err != nil {
				return nil, err
			}
			return obj, nil
		}
		if err := m.MoveObject(id, inv, resolver); err != nil {
			return nil, err
		}
		return obj, nil
	}

	m.mu.Lock()
	space := stack.MaxStack - stack.Quantity
	moved := obj.Quantity
	if moved > space {
		moved = space
	}
	stack.Quantity += moved
	obj.Quantity -= moved
	leftover := obj.Quantity
	m.mu.Unlock()

	if err := m.persistSave(stack); err != nil {
		return nil, err
	}
	if leftover == 0 {
		if err := m.Remove(obj.ID); err != nil {
			return nil, err
		}
		return stack, nil
	}
	// The partial remainder stays behind as its own stack.
	if err := m.MoveObject(id, overflow, resolver); err != nil {
		return nil, err
	}
	return stack, nil
}

// InstantiateQuantity creates an instance holding qty units of a
// stackable template. Non-stackable templates always get quantity 1;
// qty is clamped to the template's stack limit.
func (m *Manager) InstantiateQuantity(templateID string, qty int, loc Location) (*Instance, error) {
	obj, err := m.Instantiate(templateID, loc)
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		qty = 1
	}
	if !obj.Stackable {
		qty = 1
	}
	if obj.MaxStack > 0 && qty > obj.MaxStack {
		qty = obj.MaxStack
	}
	if qty == obj.Quantity {
		return obj, nil
	}
	m.mu.Lock()
	obj.Quantity = qty
	m.mu.Unlock()
	if err := m.persistSave(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// SetEquipped flips the equipped flag on an inventory object.
//
// Postcondition: Returns an error if the object is not in an inventory or
// has no equipment slot.
func (m *Manager) SetEquipped(id string, equipped bool) error {
	m.mu.Lock()
	obj, ok := m.objects[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("object %q not found", id)
	}
	if obj.Location.Type != LocationInventory {
		m.mu.Unlock()
		return fmt.Errorf("object %q is not in an inventory", id)
	}
	if obj.Slot == "" {
		m.mu.Unlock()
		return fmt.Errorf("object %q has no equipment slot", id)
	}
	obj.Equipped = equipped
	m.mu.Unlock()

	return m.persistSave(obj)
}

// EquippedIn returns the equipped objects in a player's inventory.
func (m *Manager) EquippedIn(playerID string) []*Instance {
	all := m.GetObjectsIn(InventoryLocation(playerID))
	out := all[:0:0]
	for _, obj := range all {
		if obj.Equipped {
			out = append(out, obj)
		}
	}
	return out
}

// Remove destroys an instance, recursively destroying container contents.
//
// Postcondition: Returns an error if the object does not exist.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	obj, ok := m.objects[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("object %q not found", id)
	}
	removed := m.removeLocked(obj)
	m.mu.Unlock()

	if m.persister != nil {
		for _, r := range removed {
			if err := m.persister.DeleteObject(r); err != nil {
				return fmt.Errorf("delete object %q: %w", r, err)
			}
		}
	}
	return nil
}

// removeLocked deletes obj and everything inside it, returning the ids removed.
func (m *Manager) removeLocked(obj *Instance) []string {
	removed := []string{obj.ID}
	for _, inner := range m.byLocation[ContainerLocation(obj.ID)] {
		removed = append(removed, m.removeLocked(inner)...)
	}
	m.unindexLocked(obj)
	delete(m.objects, obj.ID)
	return removed
}

// All returns a snapshot of every instance.
func (m *Manager) All() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, 0, len(m.objects))
	for _, obj := range m.objects {
		out = append(out, obj)
	}
	return out
}

// SweepOrphans relocates every object whose location no longer resolves
// to the default room. Containers count as resolvable only while their
// holder instance exists. Called on boot and by the admin validate verb.
//
// Postcondition: Returns the number of objects relocated.
func (m *Manager) SweepOrphans(resolver LocationResolver, defaultRoomID string) int {
	moved := 0
	for _, obj := range m.All() {
		if m.locationResolves(obj.Location, resolver) {
			continue
		}
		m.logger.Error("object location does not resolve, relocating to default room",
			zap.String("object_id", obj.ID),
			zap.String("location_type", string(obj.Location.Type)),
			zap.String("location_id", obj.Location.ID),
			zap.String("default_room", defaultRoomID),
		)
		if err := m.MoveObject(obj.ID, RoomLocation(defaultRoomID), resolver); err != nil {
			m.logger.Error("failed to relocate orphaned object",
				zap.String("object_id", obj.ID),
				zap.Error(err),
			)
			continue
		}
		moved++
	}
	return moved
}

// RelocateRoomContents moves every object sitting in roomID to the
// default room. The world store calls this when a room is deleted so
// its contents are not stranded in a location that no longer resolves.
//
// Postcondition: Returns the number of objects moved.
func (m *Manager) RelocateRoomContents(roomID, defaultRoomID string) int {
	moved := 0
	for _, obj := range m.GetObjectsIn(RoomLocation(roomID)) {
		if err := m.MoveObject(obj.ID, RoomLocation(defaultRoomID), nil); err != nil {
			m.logger.Error("failed to relocate object from deleted room",
				zap.String("object_id", obj.ID),
				zap.String("room_id", roomID),
				zap.Error(err),
			)
			continue
		}
		moved++
	}
	return moved
}

func (m *Manager) locationResolves(loc Location, resolver LocationResolver) bool {
	switch loc.Type {
	case LocationRoom:
		return resolver == nil || resolver.RoomExists(loc.ID)
	case LocationInventory:
		return resolver == nil || resolver.PlayerExists(loc.ID)
	case LocationContainer:
		_, ok := m.Get(loc.ID)
		return ok
	default:
		return false
	}
}

func (m *Manager) indexLocked(obj *Instance) {
	set := m.byLocation[obj.Location]
	if set == nil {
		set = make(map[string]*Instance)
		m.byLocation[obj.Location] = set
	}
	set[obj.ID] = obj
}

func (m *Manager) unindexLocked(obj *Instance) {
	set := m.byLocation[obj.Location]
	delete(set, obj.ID)
	if len(set) == 0 {
		delete(m.byLocation, obj.Location)
	}
}

func (m *Manager) persistSave(obj *Instance) error {
	if m.persister == nil {
		return nil
	}
	if err := m.persister.SaveObject(obj); err != nil {
		return fmt.Errorf("save object %q: %w", obj.ID, err)
	}
	return nil
}
