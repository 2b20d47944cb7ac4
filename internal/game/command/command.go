// Package command parses player input and routes it to handlers. The
// dispatcher owns the "." repeat shortcut, the in-combat digit rewrite,
// and the combat-only gate for defend/flee.
package command

import (
	"strings"

	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// ResultType classifies a handler outcome for rendering.
type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultError   ResultType = "error"
	ResultInfo    ResultType = "info"
)

// Result is what a handler returns. Message goes to the issuer; when
// Broadcast is set, BroadcastMessage fans out to the issuer's room
// (RoomOnly) or to every authenticated session.
type Result struct {
	Type             ResultType
	Message          i18n.Text
	Broadcast        bool
	BroadcastMessage i18n.Text
	RoomOnly         bool
	Disconnect       bool
	Data             map[string]any
}

// Success returns a success result with the given message.
func Success(msg i18n.Text) Result {
	return Result{Type: ResultSuccess, Message: msg}
}

// Errorf returns an error result with the given message.
func Errorf(msg i18n.Text) Result {
	return Result{Type: ResultError, Message: msg}
}

// Info returns an info result with the given message.
func Info(msg i18n.Text) Result {
	return Result{Type: ResultInfo, Message: msg}
}

// Context carries one invocation's input to a handler.
type Context struct {
	// Session is the issuing session.
	Session *session.Session
	// Verb is the resolved lowercase command name.
	Verb string
	// Args are the parsed arguments.
	Args []string
	// Raw is the trimmed input line after "." substitution.
	Raw string
}

// Arg returns the i-th argument or "".
func (c *Context) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// ArgsFrom joins the arguments from index i with spaces.
func (c *Context) ArgsFrom(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// HandlerFunc executes a command.
type HandlerFunc func(ctx *Context) Result

// Command is a registered verb.
type Command struct {
	// Name is the canonical lowercase verb.
	Name string
	// Aliases are alternative lowercase verbs.
	Aliases []string
	// HelpKey is the localization key of the one-line help text.
	HelpKey string
	// Admin restricts the command to admin players.
	Admin bool
	// Handler executes the command.
	Handler HandlerFunc
}

// Tokenize splits an input line into fields, honoring double quotes so
// multi-word arguments like `say "hello there"` stay together. Unbalanced
// quotes fall back to plain whitespace splitting.
func Tokenize(input string) []string {
	if !strings.Contains(input, `"`) {
		return strings.Fields(input)
	}

	var (
		tokens  []string
		current strings.Builder
		quoted  bool
	)
	for _, r := range input {
		switch {
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t'):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	if quoted {
		// Unbalanced quote: fall back to whitespace splitting.
		return strings.Fields(input)
	}
	return tokens
}
