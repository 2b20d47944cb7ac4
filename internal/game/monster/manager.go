package monster

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// Persister receives write-through notifications for monster mutations.
// A nil Persister disables persistence.
type Persister interface {
	SaveMonster(m *Instance) error
	DeleteMonster(id string) error
}

// Manager indexes monster instances by id and by coordinate and owns the
// global spawn caps.
type Manager struct {
	mu        sync.RWMutex
	monsters  map[string]*Instance
	byCoord   map[world.Coord]map[string]*Instance
	templates map[string]*Template
	caps      map[string]int

	persister Persister
	logger    *zap.Logger
}

// NewManager creates an empty Manager. persister may be nil.
//
// Precondition: logger must be non-nil.
func NewManager(persister Persister, logger *zap.Logger) *Manager {
	return &Manager{
		monsters:  make(map[string]*Instance),
		byCoord:   make(map[world.Coord]map[string]*Instance),
		templates: make(map[string]*Template),
		caps:      make(map[string]int),
		persister: persister,
		logger:    logger,
	}
}

// RegisterTemplate makes a template available for spawning.
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

// SetGlobalCap limits the world-wide alive count of a template.
func (m *Manager) SetGlobalCap(templateID string, max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps[templateID] = max
}

// GlobalCap returns the cap for a template, or (0, false) when uncapped.
func (m *Manager) GlobalCap(templateID string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit, ok := m.caps[templateID]
	return limit, ok
}

// Spawn instantiates a template at coord. The caller is responsible for
// cap checks; Spawn itself refuses only when the template is unknown.
//
// Postcondition: The new instance is alive, at full HP, and indexed by
// coordinate.
func (m *Manager) Spawn(templateID string, coord world.Coord) (*Instance, error) {
	m.mu.Lock()
	tpl, ok := m.templates[templateID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("monster template %q not found", templateID)
	}
	inst := &Instance{
		ID:           uuid.New().String(),
		TemplateID:   tpl.ID,
		Names:        tpl.Names,
		Descriptions: tpl.Descriptions,
		Type:         tpl.Type,
		Behavior:     tpl.Behavior,
		Stats:        tpl.Stats,
		HP:           tpl.Stats.MaxHP,
		Gold:         tpl.Gold,
		Drops:        tpl.Drops,
		Coord:        coord,
		SpawnCoord:   coord,
		Alive:        true,
		RespawnDelay: tpl.RespawnDelay,
		Roaming:      tpl.Roaming,
		FactionID:    tpl.FactionID,
		CreatedAt:    time.Now(),
	}
	m.monsters[inst.ID] = inst
	m.indexLocked(inst)
	m.mu.Unlock()

	m.logger.Info("monster spawned",
		zap.String("monster_id", inst.ID),
		zap.String("template_id", templateID),
		zap.Int("x", coord.X),
		zap.Int("y", coord.Y),
	)
	return inst, m.persistSave(inst)
}

// Add registers an instance loaded from the database.
//
// Postcondition: Returns an error on a duplicate id.
func (m *Manager) Add(inst *Instance) error {
	m.mu.Lock()
	if _, ok := m.monsters[inst.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("monster %q already exists", inst.ID)
	}
	m.monsters[inst.ID] = inst
	if inst.Alive {
		m.indexLocked(inst)
	}
	m.mu.Unlock()
	return nil
}

// Get looks up an instance by id.
func (m *Manager) Get(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.monsters[id]
	return inst, ok
}

// AliveAt returns the alive monsters at coord, oldest first.
func (m *Manager) AliveAt(coord world.Coord) []*Instance {
	m.mu.RLock()
	set := m.byCoord[coord]
	out := make([]*Instance, 0, len(set))
	for _, inst := range set {
		if inst.Alive {
			out = append(out, inst)
		}
	}
	m.mu.RUnlock()
	sortByAge(out)
	return out
}

// FindAliveAt locates an alive monster at coord whose localized name
// contains name, case-insensitively.
func (m *Manager) FindAliveAt(coord world.Coord, name string, locale i18n.Locale) (*Instance, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, false
	}
	for _, inst := range m.AliveAt(coord) {
		if strings.Contains(strings.ToLower(inst.Name(locale)), needle) {
			return inst, true
		}
		for _, candidate := range inst.Names {
			if strings.Contains(strings.ToLower(candidate), needle) {
				return inst, true
			}
		}
	}
	return nil, false
}

// AggroAt returns the first aggressive, alive, not-in-combat monster at
// coord. Called by movement on player arrival.
func (m *Manager) AggroAt(coord world.Coord) (*Instance, bool) {
	for _, inst := range m.AliveAt(coord) {
		if inst.Type == Aggressive && !inst.InCombat {
			return inst, true
		}
	}
	return nil, false
}

// AliveCount returns the world-wide alive count for a template.
func (m *Manager) AliveCount(templateID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.aliveCountLocked(templateID)
}

func (m *Manager) aliveCountLocked(templateID string) int {
	n := 0
	for _, inst := range m.monsters {
		if inst.Alive && inst.TemplateID == templateID {
			n++
		}
	}
	return n
}

// AliveCountAt returns the alive count for a template at one coordinate.
func (m *Manager) AliveCountAt(templateID string, coord world.Coord) int {
	n := 0
	for _, inst := range m.AliveAt(coord) {
		if inst.TemplateID == templateID {
			n++
		}
	}
	return n
}

// UnderGlobalCap reports whether another instance of templateID may
// spawn.
func (m *Manager) UnderGlobalCap(templateID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit, capped := m.caps[templateID]
	if !capped {
		return true
	}
	return m.aliveCountLocked(templateID) < limit
}

// MarkDead flips an instance to dead and removes it from the coordinate
// index. The row stays until its respawn delay elapses.
//
// Postcondition: Returns an error if the monster does not exist.
func (m *Manager) MarkDead(id string) error {
	m.mu.Lock()
	inst, ok := m.monsters[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("monster %q not found", id)
	}
	m.unindexLocked(inst)
	inst.Alive = false
	inst.InCombat = false
	inst.HP = 0
	inst.DiedAt = time.Now()
	m.mu.Unlock()

	m.logger.Info("monster died",
		zap.String("monster_id", id),
		zap.String("template_id", inst.TemplateID),
	)
	return m.persistSave(inst)
}

// SetInCombat claims or releases an instance for a combat.
func (m *Manager) SetInCombat(id string, inCombat bool) error {
	m.mu.Lock()
	inst, ok := m.monsters[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("monster %q not found", id)
	}
	inst.InCombat = inCombat
	m.mu.Unlock()
	return nil
}

// ApplyDamage subtracts damage from an instance's HP, clamping at zero.
//
// Postcondition: Returns the remaining HP.
func (m *Manager) ApplyDamage(id string, damage int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.monsters[id]
	if !ok {
		return 0, fmt.Errorf("monster %q not found", id)
	}
	inst.HP -= damage
	if inst.HP < 0 {
		inst.HP = 0
	}
	return inst.HP, nil
}

// Move relocates an alive instance to a new coordinate.
func (m *Manager) Move(id string, to world.Coord) error {
	m.mu.Lock()
	inst, ok := m.monsters[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("monster %q not found", id)
	}
	m.unindexLocked(inst)
	inst.Coord = to
	m.indexLocked(inst)
	m.mu.Unlock()
	return m.persistSave(inst)
}

// Respawn restores a dead instance at its spawn coordinates.
func (m *Manager) Respawn(id string) error {
	m.mu.Lock()
	inst, ok := m.monsters[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("monster %q not found", id)
	}
	inst.Alive = true
	inst.HP = inst.Stats.MaxHP
	inst.Coord = inst.SpawnCoord
	inst.DiedAt = time.Time{}
	m.indexLocked(inst)
	m.mu.Unlock()

	m.logger.Debug("monster respawned",
		zap.String("monster_id", id),
		zap.String("template_id", inst.TemplateID),
	)
	return m.persistSave(inst)
}

// Remove deletes an instance entirely.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	inst, ok := m.monsters[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("monster %q not found", id)
	}
	m.unindexLocked(inst)
	delete(m.monsters, id)
	m.mu.Unlock()

	if m.persister != nil {
		if err := m.persister.DeleteMonster(id); err != nil {
			return fmt.Errorf("delete monster %q: %w", id, err)
		}
	}
	return nil
}

// All returns a snapshot of every instance, alive or dead.
func (m *Manager) All() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, 0, len(m.monsters))
	for _, inst := range m.monsters {
		out = append(out, inst)
	}
	return out
}

// CullOverCap removes the oldest alive instances above each template's
// global cap. Runs on startup and on the admin validate verb.
//
// Postcondition: For every capped template, alive count <= cap. Returns
// the ids removed.
func (m *Manager) CullOverCap() []string {
	m.mu.RLock()
	caps := make(map[string]int, len(m.caps))
	for k, v := range m.caps {
		caps[k] = v
	}
	byTemplate := make(map[string][]*Instance)
	for _, inst := range m.monsters {
		if inst.Alive {
			byTemplate[inst.TemplateID] = append(byTemplate[inst.TemplateID], inst)
		}
	}
	m.mu.RUnlock()

	var removed []string
	for templateID, limit := range caps {
		alive := byTemplate[templateID]
		if len(alive) <= limit {
			continue
		}
		sortByAge(alive)
		excess := alive[:len(alive)-limit]
		for _, inst := range excess {
			m.logger.Error("alive count exceeds global cap, culling oldest instance",
				zap.String("template_id", templateID),
				zap.String("monster_id", inst.ID),
				zap.Int("cap", limit),
			)
			if err := m.Remove(inst.ID); err != nil {
				m.logger.Error("failed to cull monster", zap.String("monster_id", inst.ID), zap.Error(err))
				continue
			}
			removed = append(removed, inst.ID)
		}
	}
	return removed
}

// sortByAge orders instances oldest first, with id as tiebreak.
func sortByAge(instances []*Instance) {
	sort.Slice(instances, func(i, j int) bool {
		if instances[i].CreatedAt.Equal(instances[j].CreatedAt) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].CreatedAt.Before(instances[j].CreatedAt)
	})
}

func (m *Manager) indexLocked(inst *Instance) {
	set := m.byCoord[inst.Coord]
	if set == nil {
		set = make(map[string]*Instance)
		m.byCoord[inst.Coord] = set
	}
	set[inst.ID] = inst
}

func (m *Manager) unindexLocked(inst *Instance) {
	set := m.byCoord[inst.Coord]
	delete(set, inst.ID)
	if len(set) == 0 {
		delete(m.byCoord, inst.Coord)
	}
}

func (m *Manager) persistSave(inst *Instance) error {
	if m.persister == nil {
		return nil
	}
	if err := m.persister.SaveMonster(inst); err != nil {
		return fmt.Errorf("save monster %q: %w", inst.ID, err)
	}
	return nil
}
