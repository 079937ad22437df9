package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"
)

// LuaPolicy decides bot actions with an operator-supplied Lua script.
//
// The script must define a global `decide(phase, legal)` function that
// receives the current phase name and the list of legal action kinds,
// and returns the kind of the action to take. A mutex guards the Lua
// state; go-lua states are not safe for concurrent use.
type LuaPolicy struct {
	mu    sync.Mutex
	state *lua.State
}

// NewLuaPolicy compiles the script and verifies it defines decide().
func NewLuaPolicy(script string) (*LuaPolicy, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("policy script is empty")
	}

	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.DoString(state, script); err != nil {
		return nil, fmt.Errorf("load policy script: %w", err)
	}

	state.Global("decide")
	defined := state.TypeOf(-1) == lua.TypeFunction
	state.Pop(1)
	if !defined {
		return nil, fmt.Errorf("policy script must define decide(phase, legal)")
	}

	return &LuaPolicy{state: state}, nil
}

// Decide invokes the script's decide() with the current phase state.
func (p *LuaPolicy) Decide(phase PhaseState) (Action, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Global("decide")
	p.state.PushString(phase.Phase)
	p.state.NewTable()
	for i, kind := range phase.LegalActions {
		p.state.PushString(kind)
		p.state.RawSetInt(-2, i+1)
	}
	if err := p.state.ProtectedCall(2, 1, 0); err != nil {
		return Action{}, fmt.Errorf("call decide: %w", err)
	}

	kind, ok := p.state.ToString(-1)
	p.state.Pop(1)
	if !ok || strings.TrimSpace(kind) == "" {
		return Action{}, fmt.Errorf("decide must return an action kind string")
	}
	return Action{Kind: kind}, nil
}
