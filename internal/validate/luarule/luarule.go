// Package luarule lets validation rules be written in Lua. A script defines
// a global function:
//
//	function validate(graph)
//	    -- graph.nodes: array of {id}
//	    -- graph.edges: array of {id, sourceId, targetId}
//	    return true            -- or false, {"detail", ...}
//	end
//
// The script runs in a restricted Lua state with only the base, table,
// string, and math libraries opened.
//
// IMPORTANT: gopher-lua's LState is not goroutine-safe; the mutex here
// serializes Go-side calls, and Lua execution itself is single-threaded.
package luarule

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/diagrid/internal/validate"
)

// Common errors for Lua rules.
var (
	// ErrClosed is returned when validating through a closed rule.
	ErrClosed = errors.New("lua rule is closed")

	// ErrNoValidateFunc is returned when the script does not define a
	// global validate function.
	ErrNoValidateFunc = errors.New("script does not define validate()")
)

// validateFn is the global the script must define.
const validateFn = "validate"

// Rule is a validation rule backed by a Lua script. It implements
// validate.Rule.
type Rule struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// New compiles the script and verifies it defines validate().
func New(script string) (*Rule, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	// Open only the libraries a rule legitimately needs.
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(open.fn))
		L.Push(lua.LString(open.name))
		L.Call(1, 0)
	}

	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua rule: %w", err)
	}
	if _, ok := L.GetGlobal(validateFn).(*lua.LFunction); !ok {
		L.Close()
		return nil, ErrNoValidateFunc
	}

	return &Rule{L: L}, nil
}

// Validate calls the script's validate() with the graph snapshot.
// A script error fails the rule with the error text as its detail.
func (r *Rule) Validate(s validate.Snapshot) validate.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return validate.Result{Valid: false, Details: []string{ErrClosed.Error()}}
	}

	err := r.L.CallByParam(lua.P{
		Fn:      r.L.GetGlobal(validateFn),
		NRet:    2,
		Protect: true,
	}, r.snapshotTable(s))
	if err != nil {
		return validate.Result{Valid: false, Details: []string{err.Error()}}
	}

	details := r.L.Get(-1)
	valid := r.L.Get(-2)
	r.L.Pop(2)

	res := validate.Result{Valid: lua.LVAsBool(valid)}
	if !res.Valid {
		res.Details = toDetails(details)
	}
	return res
}

// Close releases the Lua state. The rule fails closed afterwards.
func (r *Rule) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.L.Close()
		r.closed = true
	}
}

// snapshotTable builds the graph table passed to validate().
func (r *Rule) snapshotTable(s validate.Snapshot) *lua.LTable {
	nodes := r.L.NewTable()
	for _, n := range s.Nodes {
		t := r.L.NewTable()
		t.RawSetString("id", lua.LString(n.ID))
		nodes.Append(t)
	}

	edges := r.L.NewTable()
	for _, e := range s.Edges {
		t := r.L.NewTable()
		t.RawSetString("id", lua.LString(e.ID))
		t.RawSetString("sourceId", lua.LString(e.SourceID))
		t.RawSetString("targetId", lua.LString(e.TargetID))
		edges.Append(t)
	}

	graph := r.L.NewTable()
	graph.RawSetString("nodes", nodes)
	graph.RawSetString("edges", edges)
	return graph
}

// toDetails converts the second return value (a string or an array of
// strings) into detail lines.
func toDetails(lv lua.LValue) []string {
	switch v := lv.(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		var out []string
		v.ForEach(func(_, val lua.LValue) {
			if s, ok := val.(lua.LString); ok {
				out = append(out, string(s))
			}
		})
		return out
	default:
		return nil
	}
}
