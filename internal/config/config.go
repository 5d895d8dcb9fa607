package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultProvider         = "openai"
	DefaultBudget           = 10
	DefaultMaxTokens        = 512
	DefaultTemperature      = 0.8
	DefaultStop             = "<start_of_turn>"
	DefaultObservationLimit = 4000
	DefaultFailureLimit     = 200
	DefaultLoopWindow       = 6
	DefaultLogLevel         = "info"
	DefaultRedisStream      = "codeloop:transcript"
)

// Config is the launcher configuration. Values are resolved in order:
// defaults, the YAML file, CODELOOP_* environment variables, then flags.
type Config struct {
	Provider         string           `yaml:"provider"`
	Model            string           `yaml:"model"`
	APIKey           string           `yaml:"api_key"`
	Budget           int              `yaml:"budget"`
	MaxTokens        int              `yaml:"max_tokens"`
	Temperature      float64          `yaml:"temperature"`
	Stop             string           `yaml:"stop"`
	StatementTimeout string           `yaml:"statement_timeout"`
	ObservationLimit int              `yaml:"observation_limit"`
	FailureLimit     int              `yaml:"failure_limit"`
	LoopWindow       int              `yaml:"loop_window"`
	ToolsFile        string           `yaml:"tools_file"`
	ScratchTool      bool             `yaml:"scratch_tool"`
	LogLevel         string           `yaml:"log_level"`
	Transcript       TranscriptConfig `yaml:"transcript"`
	MetricsAddr      string           `yaml:"metrics_addr"`
}

// TranscriptConfig selects where session events are exported.
type TranscriptConfig struct {
	File        string `yaml:"file"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisStream string `yaml:"redis_stream"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:         DefaultProvider,
		Budget:           DefaultBudget,
		MaxTokens:        DefaultMaxTokens,
		Temperature:      DefaultTemperature,
		Stop:             DefaultStop,
		ObservationLimit: DefaultObservationLimit,
		FailureLimit:     DefaultFailureLimit,
		LoopWindow:       DefaultLoopWindow,
		LogLevel:         DefaultLogLevel,
		Transcript: TranscriptConfig{
			RedisStream: DefaultRedisStream,
		},
	}
}

// Load builds a Config from defaults, the file at path (skipped when path
// is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("CODELOOP_PROVIDER", &c.Provider)
	envString("CODELOOP_MODEL", &c.Model)
	envString("CODELOOP_API_KEY", &c.APIKey)
	envString("CODELOOP_STOP", &c.Stop)
	envString("CODELOOP_STATEMENT_TIMEOUT", &c.StatementTimeout)
	envString("CODELOOP_TOOLS_FILE", &c.ToolsFile)
	envString("CODELOOP_LOG_LEVEL", &c.LogLevel)
	envString("CODELOOP_TRANSCRIPT_FILE", &c.Transcript.File)
	envString("CODELOOP_REDIS_ADDR", &c.Transcript.RedisAddr)
	envString("CODELOOP_REDIS_STREAM", &c.Transcript.RedisStream)
	envString("CODELOOP_METRICS_ADDR", &c.MetricsAddr)

	var err error
	if c.Budget, err = envInt("CODELOOP_BUDGET", c.Budget); err != nil {
		return err
	}
	if c.MaxTokens, err = envInt("CODELOOP_MAX_TOKENS", c.MaxTokens); err != nil {
		return err
	}
	if c.ObservationLimit, err = envInt("CODELOOP_OBSERVATION_LIMIT", c.ObservationLimit); err != nil {
		return err
	}
	if c.FailureLimit, err = envInt("CODELOOP_FAILURE_LIMIT", c.FailureLimit); err != nil {
		return err
	}
	if c.LoopWindow, err = envInt("CODELOOP_LOOP_WINDOW", c.LoopWindow); err != nil {
		return err
	}
	if c.Temperature, err = envFloat("CODELOOP_TEMPERATURE", c.Temperature); err != nil {
		return err
	}
	if c.ScratchTool, err = envBool("CODELOOP_SCRATCH_TOOL", c.ScratchTool); err != nil {
		return err
	}
	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Provider == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	if c.Budget <= 0 {
		errs = append(errs, fmt.Errorf("budget must be positive, got %d", c.Budget))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature))
	}
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Timeout parses StatementTimeout. Empty means no timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.StatementTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.StatementTimeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid statement_timeout %q", c.StatementTimeout)
	}
	return d, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt reads an integer environment variable, returning defaultVal if unset.
func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: must be an integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: must be a number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: must be a boolean", key, v)
	}
	return b, nil
}
