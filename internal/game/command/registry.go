package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// reservedAliases are claimed by direction movement and may never be
// registered by any other command.
var reservedAliases = map[string]bool{
	"n": true,
	"s": true,
	"e": true,
	"w": true,
}

// Registry holds the command table, indexed by name and alias.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	byVerb   map[string]*Command

	logger *zap.Logger
}

// NewRegistry creates an empty Registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		byVerb:   make(map[string]*Command),
		logger:   logger,
	}
}

// Register adds a command under its name and aliases, all lowercased.
// Aliases colliding with the reserved direction letters n/s/e/w are
// stripped with a warning unless the command is the movement command
// for that direction.
//
// Postcondition: Returns an error on a duplicate name or alias.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil || cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("command must have a name and a handler")
	}
	name := strings.ToLower(cmd.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byVerb[name]; ok {
		return fmt.Errorf("command %q already registered", name)
	}

	kept := cmd.Aliases[:0:0]
	for _, alias := range cmd.Aliases {
		alias = strings.ToLower(alias)
		if reservedAliases[alias] && alias != directionFor(name) {
			r.logger.Warn("stripping reserved direction alias from command",
				zap.String("command", name),
				zap.String("alias", alias),
			)
			continue
		}
		if existing, ok := r.byVerb[alias]; ok {
			return fmt.Errorf("alias %q of command %q collides with %q", alias, name, existing.Name)
		}
		kept = append(kept, alias)
	}
	cmd.Name = name
	cmd.Aliases = kept

	r.commands[name] = cmd
	r.byVerb[name] = cmd
	for _, alias := range kept {
		r.byVerb[alias] = cmd
	}
	return nil
}

// directionFor maps a movement command name to its reserved letter.
func directionFor(name string) string {
	switch name {
	case "north", "south", "east", "west":
		return name[:1]
	default:
		return ""
	}
}

// Lookup resolves a verb (name or alias), case-insensitively.
func (r *Registry) Lookup(verb string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byVerb[strings.ToLower(verb)]
	return cmd, ok
}

// Commands returns all registered commands sorted by name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
