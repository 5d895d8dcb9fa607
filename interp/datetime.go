package interp

import (
	"time"

	lua "github.com/yuin/gopher-lua"
)

const datetimeLayout = "2006-01-02 15:04:05.000000"

// openDatetime returns the loader for the preloaded "datetime" module.
func openDatetime(now func() time.Time) lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"now": func(L *lua.LState) int {
				L.Push(lua.LString(now().Format(datetimeLayout)))
				return 1
			},
			"today": func(L *lua.LState) int {
				L.Push(lua.LString(now().Format(time.DateOnly)))
				return 1
			},
			"unix": func(L *lua.LState) int {
				L.Push(lua.LNumber(now().Unix()))
				return 1
			},
			"format": func(L *lua.LState) int {
				L.Push(lua.LString(now().Format(L.CheckString(1))))
				return 1
			},
		})
		L.Push(mod)
		return 1
	}
}
