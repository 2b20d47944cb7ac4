package command

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/event"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// combatOnlyVerbs may only run while the session is in combat. They are
// never registered globally; the combat engine resolves them on demand.
var combatOnlyVerbs = map[string]string{
	"defend": "defend",
	"block":  "defend",
	"flee":   "flee",
	"run":    "flee",
}

// digitRewrites maps bare digit input to combat actions while in combat.
var digitRewrites = map[string]string{
	"1": "attack",
	"2": "defend",
	"3": "flee",
}

// CombatResolver supplies handlers for the combat-only verbs. The combat
// engine implements this; the dispatcher calls it only when the issuing
// session is in combat.
type CombatResolver interface {
	// ResolveCombatAction returns the handler for a combat verb
	// ("attack", "defend", "flee") scoped to the given combat.
	ResolveCombatAction(combatID, verb string) (HandlerFunc, bool)
}

// Dispatcher turns input lines into handler invocations.
type Dispatcher struct {
	registry *Registry
	bus      *event.Bus
	combat   CombatResolver
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. combat may be nil until the combat
// engine is wired in.
//
// Precondition: registry, bus, and logger must be non-nil.
func NewDispatcher(registry *Registry, bus *event.Bus, combat CombatResolver, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		bus:      bus,
		combat:   combat,
		logger:   logger,
	}
}

// SetCombatResolver wires in the combat engine after construction.
func (d *Dispatcher) SetCombatResolver(combat CombatResolver) {
	d.combat = combat
}

// Registry exposes the command table, e.g. for the help command.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch processes one input line for a session and returns the result
// for the caller to route. The sequence: trim, "." substitution, combat
// digit rewrite, tokenize, combat-gate, lookup, admin gate, publish
// PlayerCommand, invoke, store last_command.
func (d *Dispatcher) Dispatch(sess *session.Session, input string) Result {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Info(i18n.T("command.empty"))
	}

	isRepeat := raw == "."
	if isRepeat {
		raw = sess.LastCommand()
		if raw == "" {
			return Errorf(i18n.T("command.no_repeat"))
		}
	}

	inCombat, combatID := sess.InCombat()
	if inCombat {
		if rewritten, ok := digitRewrites[raw]; ok {
			raw = rewritten
		}
	}

	tokens := Tokenize(raw)
	if len(tokens) == 0 {
		return Info(i18n.T("command.empty"))
	}
	verb := strings.ToLower(tokens[0])
	ctx := &Context{
		Session: sess,
		Verb:    verb,
		Args:    tokens[1:],
		Raw:     raw,
	}

	// defend/flee resolve through the combat engine, never the registry.
	if action, combatOnly := combatOnlyVerbs[verb]; combatOnly {
		if !inCombat {
			return Errorf(i18n.T("combat.not_in_combat"))
		}
		return d.invokeCombat(ctx, combatID, action, isRepeat)
	}

	cmd, ok := d.registry.Lookup(verb)
	if !ok {
		// attack is registered globally; in combat it still resolves
		// through the engine so the action lands in the running combat.
		if inCombat && verb == "attack" {
			return d.invokeCombat(ctx, combatID, "attack", isRepeat)
		}
		return Errorf(i18n.T("command.unknown", "verb", verb))
	}
	if inCombat && cmd.Name == "attack" {
		return d.invokeCombat(ctx, combatID, "attack", isRepeat)
	}

	if cmd.Admin && !sess.IsAdmin() {
		return Errorf(i18n.T("command.admin_only"))
	}

	d.publishCommand(sess, cmd.Name, ctx.Args)
	ctx.Verb = cmd.Name

	result := cmd.Handler(ctx)
	d.recordLastCommand(sess, raw, isRepeat, result)
	return result
}

func (d *Dispatcher) invokeCombat(ctx *Context, combatID, action string, isRepeat bool) Result {
	if d.combat == nil {
		return Errorf(i18n.T("combat.not_in_combat"))
	}
	handler, ok := d.combat.ResolveCombatAction(combatID, action)
	if !ok {
		return Errorf(i18n.T("combat.unknown_action", "action", action))
	}
	ctx.Verb = action
	d.publishCommand(ctx.Session, action, ctx.Args)
	result := handler(ctx)
	d.recordLastCommand(ctx.Session, ctx.Raw, isRepeat, result)
	return result
}

func (d *Dispatcher) publishCommand(sess *session.Session, verb string, args []string) {
	c := sess.Coord()
	d.bus.Publish(event.New(event.PlayerCommand).
		WithSource(sess.ID).
		WithCoord(c.X, c.Y).
		WithData("verb", verb).
		WithData("args", args))
}

// recordLastCommand stores raw for "." repeat after a successful,
// non-repeat invocation.
func (d *Dispatcher) recordLastCommand(sess *session.Session, raw string, isRepeat bool, result Result) {
	if isRepeat || result.Type == ResultError {
		return
	}
	sess.SetLastCommand(raw)
}

// HelpVerbs returns the verbs a session may currently use: registered
// commands filtered by admin flag, plus the combat actions while in
// combat.
func (d *Dispatcher) HelpVerbs(sess *session.Session) []string {
	var verbs []string
	for _, cmd := range d.registry.Commands() {
		if cmd.Admin && !sess.IsAdmin() {
			continue
		}
		verbs = append(verbs, cmd.Name)
	}
	if inCombat, _ := sess.InCombat(); inCombat {
		verbs = append(verbs, "defend", "flee")
	}
	return verbs
}
