package interp

import (
	"bytes"
	"context"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Environment is the binding table shared by every statement of one
// session. It wraps a single Lua state whose global table is the namespace:
// anything a statement binds there stays visible to all later statements.
//
// An Environment is owned by exactly one session and is not safe for
// concurrent use.
type Environment struct {
	L *lua.LState

	builtins map[string]bool
	clock    func() time.Time

	// Per-statement capture targets, swapped in by the Executor.
	stdout *bytes.Buffer
	stderr *bytes.Buffer

	signal *TerminationSignal
	cancel context.CancelFunc
}

// EnvironmentOption configures an Environment.
type EnvironmentOption func(*Environment)

// WithClock overrides the time source used by the datetime module.
func WithClock(now func() time.Time) EnvironmentOption {
	return func(e *Environment) {
		e.clock = now
	}
}

// NewEnvironment creates an empty environment with the standard library
// subset statements are allowed to use.
func NewEnvironment(opts ...EnvironmentOption) *Environment {
	e := &Environment{
		L:      lua.NewState(lua.Options{SkipOpenLibs: true}),
		clock:  time.Now,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.OsLibName, lua.OpenOs},
	} {
		e.L.Push(e.L.NewFunction(lib.open))
		e.L.Push(lua.LString(lib.name))
		e.L.Call(1, 0)
	}

	e.L.SetGlobal("print", e.L.NewFunction(e.print))
	e.L.SetGlobal("eprint", e.L.NewFunction(e.eprint))
	e.L.SetGlobal("quit", e.L.NewFunction(e.quit))
	e.L.SetGlobal("exit", e.L.NewFunction(e.quit))
	e.L.SetGlobal("io", e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"write": e.write,
	}))
	if osTable, ok := e.L.GetGlobal(lua.OsLibName).(*lua.LTable); ok {
		osTable.RawSetString("exit", e.L.NewFunction(e.quit))
	}
	e.L.PreloadModule("datetime", openDatetime(e.clock))

	e.builtins = make(map[string]bool)
	e.L.G.Global.ForEach(func(k, _ lua.LValue) {
		if name, ok := k.(lua.LString); ok {
			e.builtins[string(name)] = true
		}
	})
	return e
}

// Get returns the value bound to name, or lua.LNil.
func (e *Environment) Get(name string) lua.LValue {
	return e.L.GetGlobal(name)
}

// Set binds name to value.
func (e *Environment) Set(name string, value lua.LValue) {
	e.L.SetGlobal(name, value)
}

// Register binds name to a Go function.
func (e *Environment) Register(name string, fn lua.LGFunction) {
	e.L.SetGlobal(name, e.L.NewFunction(fn))
}

// Names returns the sorted names bound after the environment was created,
// which excludes the standard library.
func (e *Environment) Names() []string {
	var names []string
	e.L.G.Global.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok || e.builtins[string(name)] || v == lua.LNil {
			return
		}
		names = append(names, string(name))
	})
	sort.Strings(names)
	return names
}

// Close releases the underlying Lua state.
func (e *Environment) Close() {
	e.L.Close()
}

// begin prepares the environment for one statement.
func (e *Environment) begin(ctx context.Context, cancel context.CancelFunc, stdout, stderr *bytes.Buffer) {
	e.stdout = stdout
	e.stderr = stderr
	e.signal = nil
	e.cancel = cancel
	e.L.SetContext(ctx)
}

// end detaches the statement and reports a pending termination request.
func (e *Environment) end() *TerminationSignal {
	e.L.RemoveContext()
	signal := e.signal
	e.signal = nil
	e.cancel = nil
	e.stdout = &bytes.Buffer{}
	e.stderr = &bytes.Buffer{}
	return signal
}

// call runs a chunk and returns every value it returned.
func (e *Environment) call(chunk string) ([]lua.LValue, error) {
	fn, err := e.L.LoadString(chunk)
	if err != nil {
		return nil, err
	}
	top := e.L.GetTop()
	defer e.L.SetTop(top)

	e.L.Push(fn)
	if err := e.L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, err
	}
	n := e.L.GetTop() - top
	values := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		values[i] = e.L.Get(top + 1 + i)
	}
	return values, nil
}

func (e *Environment) print(L *lua.LState) int {
	writeArgs(L, e.stdout, "\t")
	e.stdout.WriteByte('\n')
	return 0
}

func (e *Environment) eprint(L *lua.LState) int {
	writeArgs(L, e.stderr, "\t")
	e.stderr.WriteByte('\n')
	return 0
}

func (e *Environment) write(L *lua.LState) int {
	writeArgs(L, e.stdout, "")
	return 0
}

// quit records a termination request and unwinds the running statement.
// Cancelling the statement context makes the request survive a pcall.
func (e *Environment) quit(L *lua.LState) int {
	code := 0
	switch v := L.Get(1).(type) {
	case lua.LNumber:
		code = int(v)
	case lua.LBool:
		if !v {
			code = 1
		}
	}
	e.signal = &TerminationSignal{Code: code}
	if e.cancel != nil {
		e.cancel()
	}
	L.RaiseError("quit(%d)", code)
	return 0
}

func writeArgs(L *lua.LState, buf *bytes.Buffer, sep string) {
	top := L.GetTop()
	for i := 1; i <= top; i++ {
		if i > 1 {
			buf.WriteString(sep)
		}
		buf.WriteString(L.ToStringMeta(L.Get(i)).String())
	}
}
