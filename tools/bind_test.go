package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/martinemde/codeloop/interp"
)

func runLua(t *testing.T, env *interp.Environment, src string) *interp.Record {
	t.Helper()
	stmts, err := interp.Parse(src)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	rec, err := interp.NewExecutor().Execute(context.Background(), env, stmts[0])
	require.NoError(t, err)
	return rec
}

func TestBind_CallStyles(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Name:       "describe",
		Parameters: []Parameter{{Name: "table"}, {Name: "limit"}},
		Func: func(ctx context.Context, args map[string]any) (string, error) {
			keys := make([]string, 0, len(args))
			for k, v := range args {
				keys = append(keys, fmt.Sprintf("%s=%v", k, v))
			}
			sort.Strings(keys)
			return strings.Join(keys, ","), nil
		},
	})

	env := interp.NewEnvironment()
	defer env.Close()
	Bind(env, r)

	assert.Equal(t, "limit=3,table=users", runLua(t, env, `describe{table = "users", limit = 3}`).Repr)
	assert.Equal(t, "limit=3,table=users", runLua(t, env, `describe("users", 3)`).Repr)
	assert.Equal(t, "table=users", runLua(t, env, `describe("users")`).Repr)
}

func TestBind_ToolErrorsAreStrings(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool())

	env := interp.NewEnvironment()
	defer env.Close()
	Bind(env, r)

	rec := runLua(t, env, `echo()`)
	assert.False(t, rec.Failed())
	assert.Equal(t, "Error: missing argument `text` for call to `echo`", rec.Repr)
}

func TestFromLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	require.NoError(t, L.DoString(`list = {1, "two", true}; dict = {a = 1, nested = {b = "c"}}`))

	assert.Equal(t, []any{float64(1), "two", true}, FromLua(L.GetGlobal("list")))
	assert.Equal(t, map[string]any{"a": float64(1), "nested": map[string]any{"b": "c"}}, FromLua(L.GetGlobal("dict")))
	assert.Nil(t, FromLua(lua.LNil))
}
