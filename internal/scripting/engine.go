// Package scripting runs sandboxed Lua dialogue scripts for NPCs. A
// script defines a respond(player, topic) function returning the line to
// say; NPCs with a script configured bypass their static dialogue table.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine loads and executes dialogue scripts. Each call runs in a fresh
// state with the base libraries stripped down, so scripts cannot touch
// the filesystem or network.
type Engine struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	sources map[string]string
}

// NewEngine creates an Engine loading scripts from dir.
//
// Precondition: logger must be non-nil.
func NewEngine(dir string, logger *zap.Logger) *Engine {
	return &Engine{
		dir:     dir,
		logger:  logger,
		sources: make(map[string]string),
	}
}

// Load reads and caches a script by name (without the .lua suffix).
//
// Postcondition: Returns an error if the file is missing or unreadable.
func (e *Engine) Load(name string) error {
	path := filepath.Join(e.dir, name+".lua")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script %q: %w", path, err)
	}
	e.mu.Lock()
	e.sources[name] = string(data)
	e.mu.Unlock()
	e.logger.Info("dialogue script loaded", zap.String("script", name))
	return nil
}

// AddSource registers a script from memory. Used by tests and seeds.
func (e *Engine) AddSource(name, source string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources[name] = source
}

// Respond executes a script's respond(player, topic) function.
//
// Postcondition: Returns the script's string result, or an error if the
// script is unknown, fails, or returns a non-string.
func (e *Engine) Respond(script, playerName, topic string) (string, error) {
	e.mu.RLock()
	source, ok := e.sources[script]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("script %q not loaded", script)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	// Base libraries only: no io, os, or debug access for scripts.
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(open.fn))
		L.Push(lua.LString(open.name))
		L.Call(1, 0)
	}

	if err := L.DoString(source); err != nil {
		return "", fmt.Errorf("script %q failed to load: %w", script, err)
	}

	fn := L.GetGlobal("respond")
	if fn.Type() != lua.LTFunction {
		return "", fmt.Errorf("script %q does not define respond()", script)
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true},
		lua.LString(playerName), lua.LString(topic)); err != nil {
		return "", fmt.Errorf("script %q respond() failed: %w", script, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	if ret.Type() != lua.LTString {
		return "", fmt.Errorf("script %q respond() returned %s, want string", script, ret.Type())
	}
	return string(ret.(lua.LString)), nil
}
