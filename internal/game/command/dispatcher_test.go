package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/event"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

type nullWriter struct{}

func (nullWriter) WriteLine(string) error { return nil }

// recordingResolver captures combat-action invocations.
type recordingResolver struct {
	calls []string
}

func (r *recordingResolver) ResolveCombatAction(combatID, verb string) (HandlerFunc, bool) {
	return func(ctx *Context) Result {
		r.calls = append(r.calls, verb)
		return Success(i18n.T("ok"))
	}, true
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *recordingResolver, *session.Session) {
	t.Helper()
	logger := zap.NewNop()
	bus := event.NewBus(logger)
	bus.Start()
	t.Cleanup(bus.Stop)

	registry := NewRegistry(logger)
	resolver := &recordingResolver{}
	d := NewDispatcher(registry, bus, resolver, logger)

	sess := session.New(nullWriter{}, i18n.LocaleEN)
	sess.Bind(&session.Player{ID: "p1", Username: "alice", DisplayName: "alice"})
	return d, resolver, sess
}

func echoCommand(name string, aliases ...string) *Command {
	return &Command{
		Name:    name,
		Aliases: aliases,
		Handler: func(ctx *Context) Result {
			return Success(i18n.T("echo", "verb", ctx.Verb))
		},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"look", []string{"look"}},
		{"say hello there", []string{"say", "hello", "there"}},
		{`say "hello there" friend`, []string{"say", "hello there", "friend"}},
		{`whisper "bob smith" "see you"`, []string{"whisper", "bob smith", "see you"}},
		{`say "unbalanced quote`, []string{"say", `"unbalanced`, "quote"}},
		{"  spaced   out  ", []string{"spaced", "out"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestRegistryStripsReservedAliases(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	// A non-movement command must lose its n/s/e/w aliases.
	require.NoError(t, registry.Register(&Command{
		Name:    "shout",
		Aliases: []string{"n", "yell"},
		Handler: func(ctx *Context) Result { return Success(i18n.T("ok")) },
	}))
	_, ok := registry.Lookup("n")
	assert.False(t, ok, "reserved alias must not resolve")
	_, ok = registry.Lookup("yell")
	assert.True(t, ok)

	// The movement command for that direction keeps its letter.
	require.NoError(t, registry.Register(&Command{
		Name:    "north",
		Aliases: []string{"n"},
		Handler: func(ctx *Context) Result { return Success(i18n.T("ok")) },
	}))
	cmd, ok := registry.Lookup("n")
	require.True(t, ok)
	assert.Equal(t, "north", cmd.Name)
}

func TestRegistryDuplicate(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	require.NoError(t, registry.Register(echoCommand("look", "l")))
	require.Error(t, registry.Register(echoCommand("look")))
	require.Error(t, registry.Register(echoCommand("list", "l")))
}

func TestDispatchUnknownVerb(t *testing.T) {
	d, _, sess := newTestDispatcher(t)
	result := d.Dispatch(sess, "dance")
	assert.Equal(t, ResultError, result.Type)
	assert.Equal(t, "command.unknown", result.Message.Key)
}

func TestDispatchRepeat(t *testing.T) {
	d, _, sess := newTestDispatcher(t)
	require.NoError(t, d.Registry().Register(echoCommand("look", "l")))

	// "." with no prior command errors.
	result := d.Dispatch(sess, ".")
	assert.Equal(t, ResultError, result.Type)

	result = d.Dispatch(sess, "look")
	require.Equal(t, ResultSuccess, result.Type)
	assert.Equal(t, "look", sess.LastCommand())

	result = d.Dispatch(sess, ".")
	assert.Equal(t, ResultSuccess, result.Type)
	// A repeat must not overwrite the stored command.
	assert.Equal(t, "look", sess.LastCommand())
}

func TestDispatchFailedCommandNotStored(t *testing.T) {
	d, _, sess := newTestDispatcher(t)
	require.NoError(t, d.Registry().Register(echoCommand("look")))

	d.Dispatch(sess, "look")
	d.Dispatch(sess, "dance")
	assert.Equal(t, "look", sess.LastCommand(), "failed commands are not stored for repeat")
}

func TestDispatchCombatDigitRewrite(t *testing.T) {
	d, resolver, sess := newTestDispatcher(t)
	sess.SetCombat(true, "c1")

	d.Dispatch(sess, "1")
	d.Dispatch(sess, "2")
	d.Dispatch(sess, "3")
	assert.Equal(t, []string{"attack", "defend", "flee"}, resolver.calls)
}

func TestDispatchDigitsOutsideCombat(t *testing.T) {
	d, resolver, sess := newTestDispatcher(t)

	result := d.Dispatch(sess, "2")
	assert.Equal(t, ResultError, result.Type)
	assert.Empty(t, resolver.calls)
}

func TestDispatchCombatOnlyGate(t *testing.T) {
	d, resolver, sess := newTestDispatcher(t)

	for _, verb := range []string{"defend", "flee", "block", "run"} {
		result := d.Dispatch(sess, verb)
		assert.Equal(t, ResultError, result.Type, verb)
		assert.Equal(t, "combat.not_in_combat", result.Message.Key, verb)
	}
	assert.Empty(t, resolver.calls)

	sess.SetCombat(true, "c1")
	result := d.Dispatch(sess, "flee")
	assert.Equal(t, ResultSuccess, result.Type)
	assert.Equal(t, []string{"flee"}, resolver.calls)
}

func TestDispatchAttackRoutesToCombatWhenInCombat(t *testing.T) {
	d, resolver, sess := newTestDispatcher(t)
	attacked := 0
	require.NoError(t, d.Registry().Register(&Command{
		Name: "attack",
		Handler: func(ctx *Context) Result {
			attacked++
			return Success(i18n.T("ok"))
		},
	}))

	// Outside combat the registered handler runs.
	d.Dispatch(sess, "attack goblin")
	assert.Equal(t, 1, attacked)
	assert.Empty(t, resolver.calls)

	// In combat the engine's action runs instead.
	sess.SetCombat(true, "c1")
	d.Dispatch(sess, "attack")
	assert.Equal(t, 1, attacked)
	assert.Equal(t, []string{"attack"}, resolver.calls)
}

func TestDispatchAdminGate(t *testing.T) {
	d, _, sess := newTestDispatcher(t)
	require.NoError(t, d.Registry().Register(&Command{
		Name:    "kick",
		Admin:   true,
		Handler: func(ctx *Context) Result { return Success(i18n.T("ok")) },
	}))

	result := d.Dispatch(sess, "kick bob")
	assert.Equal(t, ResultError, result.Type)
	assert.Equal(t, "command.admin_only", result.Message.Key)

	sess.Bind(&session.Player{ID: "p1", DisplayName: "alice", IsAdmin: true})
	result = d.Dispatch(sess, "kick bob")
	assert.Equal(t, ResultSuccess, result.Type)
}

func TestHelpVerbsCombatAware(t *testing.T) {
	d, _, sess := newTestDispatcher(t)
	require.NoError(t, d.Registry().Register(echoCommand("look")))
	require.NoError(t, d.Registry().Register(&Command{
		Name:    "kick",
		Admin:   true,
		Handler: func(ctx *Context) Result { return Success(i18n.T("ok")) },
	}))

	verbs := d.HelpVerbs(sess)
	assert.Equal(t, []string{"look"}, verbs)

	sess.SetCombat(true, "c1")
	verbs = d.HelpVerbs(sess)
	assert.Contains(t, verbs, "defend")
	assert.Contains(t, verbs, "flee")
}
