package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProcessTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tools:
  - name: greet
    description: Greet someone.
    command: sh
    args: ["-c", "printf 'hello %s' \"$CODELOOP_ARG_NAME\""]
    parameters:
      - name: name
        type: string
        required: true
  - name: stdin
    command: sh
    args: ["-c", "cat"]
    dir: work
`), 0o644))

	tools, err := LoadProcessTools(path)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "greet", tools[0].Name)
	assert.Equal(t, "greet(name)", tools[0].Signature())

	out, err := tools[0].Func(context.Background(), map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", out)
}

func TestLoadProcessTools_JSONAndValidation(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "tools.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"tools":[{"name":"cat","command":"cat"}]}`), 0o644))
	tools, err := LoadProcessTools(good)
	require.NoError(t, err)
	require.Len(t, tools, 1)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tools:\n  - name: nocommand\n"), 0o644))
	_, err = LoadProcessTools(bad)
	assert.Error(t, err)

	_, err = LoadProcessTools(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestProcessTool_ArgumentsOnStdin(t *testing.T) {
	tool := ProcessTool(ProcessConfig{Name: "cat", Command: "cat"})
	out, err := tool.Func(context.Background(), map[string]any{"query": "select 1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"select 1"}`, out)
}

func TestProcessTool_Failures(t *testing.T) {
	failing := ProcessTool(ProcessConfig{Name: "fail", Command: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}})
	_, err := failing.Func(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Contains(t, err.Error(), "broken")

	slow := ProcessTool(ProcessConfig{Name: "slow", Command: "sleep", Args: []string{"5"}, TimeoutMs: 50})
	_, err = slow.Func(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestFilterEnvironment(t *testing.T) {
	t.Setenv("CODELOOP_TEST_API_KEY", "secret")
	t.Setenv("CODELOOP_TEST_VISIBLE", "yes")

	env := filterEnvironment()
	assert.NotContains(t, env, "CODELOOP_TEST_API_KEY=secret")
	assert.Contains(t, env, "CODELOOP_TEST_VISIBLE=yes")
}
