package tools

import (
	"context"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/martinemde/codeloop/interp"
)

// Bind exposes every registered tool as a global function of env. A tool
// can be called with a single table of named arguments,
// `run_sql{query = "select 1"}`, or positionally in parameter order,
// `run_sql("select 1")`.
func Bind(env *interp.Environment, r *Registry) {
	for _, t := range r.Tools() {
		env.Register(t.Name, luaFunc(r, t))
	}
}

func luaFunc(r *Registry, t Tool) lua.LGFunction {
	return func(L *lua.LState) int {
		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		L.Push(lua.LString(r.Call(ctx, t.Name, arguments(L, t))))
		return 1
	}
}

func arguments(L *lua.LState, t Tool) map[string]any {
	args := make(map[string]any)
	top := L.GetTop()
	if top == 1 {
		if tbl, ok := L.Get(1).(*lua.LTable); ok && tbl.MaxN() == 0 {
			if m, ok := FromLua(tbl).(map[string]any); ok {
				return m
			}
		}
	}
	for i := 1; i <= top && i <= len(t.Parameters); i++ {
		v := L.Get(i)
		if v == lua.LNil {
			continue
		}
		args[t.Parameters[i-1].Name] = FromLua(v)
	}
	return args
}

// FromLua converts a Lua value to plain Go data. Tables with only
// consecutive integer keys become slices; other tables become maps.
func FromLua(v lua.LValue) any {
	return fromLua(v, 0)
}

func fromLua(v lua.LValue, depth int) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if depth > 32 {
			return nil
		}
		if n := val.MaxN(); n > 0 && countKeys(val) == n {
			out := make([]any, n)
			for i := 1; i <= n; i++ {
				out[i-1] = fromLua(val.RawGetInt(i), depth+1)
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, item lua.LValue) {
			key := k.String()
			if num, ok := k.(lua.LNumber); ok {
				key = strconv.FormatFloat(float64(num), 'f', -1, 64)
			}
			out[key] = fromLua(item, depth+1)
		})
		return out
	default:
		return nil
	}
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}
