package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/martinemde/codeloop/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "codeloop",
	Short: "codeloop solves tasks by letting a language model write and run Lua",
	Long: `codeloop asks a completion model for Lua statements, runs them one at a
time in a persistent interpreter, and feeds every result back into the next
prompt until the model stops, calls quit(), or the step budget runs out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code chosen by the session.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
}

// loadConfig resolves the configuration file and environment, then applies
// any flag the user set explicitly. Flags a command does not define are
// never reported as changed.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	stringFlags := map[string]*string{
		"log-level":         &cfg.LogLevel,
		"provider":          &cfg.Provider,
		"model":             &cfg.Model,
		"statement-timeout": &cfg.StatementTimeout,
		"tools":             &cfg.ToolsFile,
		"transcript-file":   &cfg.Transcript.File,
		"redis-addr":        &cfg.Transcript.RedisAddr,
		"redis-stream":      &cfg.Transcript.RedisStream,
		"metrics-addr":      &cfg.MetricsAddr,
	}
	for name, dst := range stringFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	ints := map[string]*int{
		"budget":     &cfg.Budget,
		"max-tokens": &cfg.MaxTokens,
	}
	for name, dst := range ints {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	if flags.Changed("temperature") {
		cfg.Temperature, _ = flags.GetFloat64("temperature")
	}
	if flags.Changed("scratch-tool") {
		cfg.ScratchTool, _ = flags.GetBool("scratch-tool")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
