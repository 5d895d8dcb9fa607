package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/codeloop/agent"
	"github.com/martinemde/codeloop/internal/config"
)

func TestReadTask(t *testing.T) {
	task, err := readTask(strings.NewReader("ignored"), []string{"what", "is", "2+2?"})
	require.NoError(t, err)
	assert.Equal(t, "what is 2+2?", task)

	task, err = readTask(strings.NewReader("  from stdin\n"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", task)

	_, err = readTask(strings.NewReader("\n"), nil)
	assert.Error(t, err)
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Setenv("CODELOOP_BUDGET", "20")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().Int("budget", config.DefaultBudget, "")
	cmd.Flags().String("model", "", "")
	cmd.Flags().Bool("scratch-tool", false, "")
	require.NoError(t, cmd.Flags().Set("model", "gemma"))
	require.NoError(t, cmd.Flags().Set("scratch-tool", "true"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Budget, "an unset flag leaves the environment value")
	assert.Equal(t, "gemma", cfg.Model)
	assert.True(t, cfg.ScratchTool)

	require.NoError(t, cmd.Flags().Set("budget", "0"))
	_, err = loadConfig(cmd)
	assert.Error(t, err)
}

func TestSessionConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Model = "gemma"
	cfg.Budget = 4
	cfg.StatementTimeout = "2s"

	sc, err := sessionConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, sc.Budget)
	assert.Equal(t, 2*time.Second, sc.StatementTimeout)
	assert.Equal(t, "gemma2", sc.Planner.Model, "aliases resolve through the catalog")
	assert.Equal(t, agent.DefaultStop, sc.Planner.Stop)
}

func TestPrefixAndVersionCommands(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "codeloop version dev\n", out.String())

	out.Reset()
	rootCmd.SetArgs([]string{"prefix"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, agent.Prefix(), out.String())
}
