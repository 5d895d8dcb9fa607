package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ProcessConfig describes a tool backed by an external command.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	Parameters  []Parameter       `yaml:"parameters" json:"parameters"`
	TimeoutMs   int               `yaml:"timeout_ms" json:"timeout_ms"`
	Dir         string            `yaml:"dir" json:"dir"`
}

// ConfigFile is the layout of a tools file.
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

const defaultProcessTimeout = 30 * time.Second

// LoadProcessTools reads a YAML or JSON tools file and returns one Tool per
// entry. Relative working directories resolve against the file's directory.
func LoadProcessTools(path string) ([]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse tools file %s: %w", path, err)
	}

	base := filepath.Dir(path)
	tools := make([]Tool, 0, len(cfg.Tools))
	for i, pc := range cfg.Tools {
		if pc.Name == "" || pc.Command == "" {
			return nil, fmt.Errorf("tools file %s: entry %d needs a name and a command", path, i)
		}
		if pc.Dir != "" && !filepath.IsAbs(pc.Dir) {
			pc.Dir = filepath.Join(base, pc.Dir)
		}
		tools = append(tools, ProcessTool(pc))
	}
	return tools, nil
}

// ProcessTool wraps an external command as a Tool. Arguments reach the
// process twice: as a JSON object on stdin and as CODELOOP_ARG_<NAME>
// environment variables. Stdout is the result.
func ProcessTool(cfg ProcessConfig) Tool {
	timeout := defaultProcessTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return Tool{
		Name:        cfg.Name,
		Description: cfg.Description,
		Parameters:  cfg.Parameters,
		Func: func(ctx context.Context, args map[string]any) (string, error) {
			return runProcess(ctx, cfg, timeout, args)
		},
	}
}

func runProcess(ctx context.Context, cfg ProcessConfig, timeout time.Duration, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdin, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	// Own process group so a timeout takes children down too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(stdin)

	env := filterEnvironment()
	for k, v := range cfg.Environment {
		env = append(env, k+"="+v)
	}
	for k, v := range args {
		env = append(env, fmt.Sprintf("CODELOOP_ARG_%s=%s", strings.ToUpper(k), envValue(v)))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %s", timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", err
	}
	return stdout.String(), nil
}

func envValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", val)
	}
}

// Suffixes of environment variables withheld from tool processes.
var sensitiveEnvPatterns = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.HasSuffix(upper, pattern) {
			return true
		}
	}
	return false
}

// filterEnvironment returns the parent environment minus credentials.
func filterEnvironment() []string {
	var filtered []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || isSensitiveEnvVar(name) {
			continue
		}
		filtered = append(filtered, kv)
	}
	return filtered
}
