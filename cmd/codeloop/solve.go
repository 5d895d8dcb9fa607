package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/martinemde/codeloop/agent"
	"github.com/martinemde/codeloop/internal/config"
	"github.com/martinemde/codeloop/internal/logging"
	"github.com/martinemde/codeloop/llm"
	"github.com/martinemde/codeloop/metrics"
	"github.com/martinemde/codeloop/tools"
	"github.com/martinemde/codeloop/transcript"
)

var solveCmd = &cobra.Command{
	Use:   "solve [task]",
	Short: "Solve a task with a plan-execute-observe loop",
	Long: `Solve runs one session for the given task. The task is read from the
arguments, or from stdin when no arguments are given or the only argument is "-".`,
	RunE: runSolve,
}

func init() {
	rootCmd.AddCommand(solveCmd)

	f := solveCmd.Flags()
	f.StringP("provider", "p", config.DefaultProvider, "Completion provider (openai, anthropic, ollama, ...)")
	f.StringP("model", "m", "", "Model ID or alias (default: the provider's catalog default)")
	f.IntP("budget", "b", config.DefaultBudget, "Maximum loop iterations")
	f.Int("max-tokens", config.DefaultMaxTokens, "Maximum tokens per completion")
	f.Float64("temperature", config.DefaultTemperature, "Sampling temperature")
	f.String("statement-timeout", "", "Per-statement time limit, e.g. 10s (default: unbounded)")
	f.String("tools", "", "YAML or JSON file describing process tools")
	f.Bool("scratch-tool", false, "Offer the model a separate scratch Lua interpreter as the lua(src) tool")
	f.String("transcript-file", "", "Append session events as JSON lines to this file")
	f.String("redis-addr", "", "Publish session events to a Redis stream at this address")
	f.String("redis-stream", config.DefaultRedisStream, "Redis stream name")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address while solving")
	f.Bool("no-color", false, "Disable colored output")
	f.Bool("quiet", false, "Do not print the transcript")
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(level)

	task, err := readTask(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	registry := tools.NewRegistry()
	if cfg.ToolsFile != "" {
		loaded, err := tools.LoadProcessTools(cfg.ToolsFile)
		if err != nil {
			return err
		}
		for _, t := range loaded {
			registry.Register(t)
		}
		logger.Info("tools loaded", "file", cfg.ToolsFile, "count", registry.Count())
	}

	sessionCfg, err := sessionConfig(cfg)
	if err != nil {
		return err
	}
	if cfg.ScratchTool {
		scratch := agent.NewScratch(sessionCfg.StatementTimeout)
		defer scratch.Close()
		registry.Register(scratch.Tool())
	}
	session, err := agent.NewSession(ctx, task, client, sessionCfg,
		agent.WithLogger(logger),
		agent.WithTools(registry),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	sinks, closeSinks, err := openSinks(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Sinks keep draining after an interrupt so the final events land.
		transcript.Pump(context.WithoutCancel(ctx), session.Events(), logger, sinks...)
	}()

	out, runErr := session.Run(ctx)
	session.Close()
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	if out.Signal != nil && out.Signal.Code != 0 {
		return &exitError{code: out.Signal.Code}
	}
	return nil
}

func readTask(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read task: %w", err)
	}
	task := strings.TrimSpace(string(data))
	if task == "" {
		return "", errors.New("no task given")
	}
	return task, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) (*llm.Client, error) {
	model := cfg.Model
	if info := llm.GetModelInfo(model); info != nil {
		model = info.ID
	}
	adapter, err := llm.NewGollmAdapter(cfg.Provider, cfg.APIKey,
		llm.WithModel(model),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, err
	}

	policy := llm.DefaultRetryPolicy()
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn("completion failed, retrying", "attempt", attempt+1, "delay", delay, "err", err)
	}
	return llm.NewClient(
		llm.WithProvider(cfg.Provider, adapter),
		llm.WithDefaultProvider(cfg.Provider),
		llm.WithRetryPolicy(policy),
	), nil
}

func sessionConfig(cfg *config.Config) (*agent.SessionConfig, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	sc := agent.DefaultSessionConfig()
	sc.Budget = cfg.Budget
	sc.StatementTimeout = timeout
	sc.ObservationLimit = cfg.ObservationLimit
	sc.LoopWindow = cfg.LoopWindow
	sc.Planner.Model = cfg.Model
	if info := llm.GetModelInfo(cfg.Model); info != nil {
		sc.Planner.Model = info.ID
	}
	sc.Planner.MaxTokens = cfg.MaxTokens
	sc.Planner.Temperature = cfg.Temperature
	sc.Planner.Stop = cfg.Stop
	sc.Planner.FailureLimit = cfg.FailureLimit
	return &sc, nil
}

// openSinks builds the transcript sinks the configuration asks for. The
// returned function releases them.
func openSinks(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) ([]transcript.Sink, func(), error) {
	var sinks []transcript.Sink
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("closing transcript sink", "err", err)
			}
		}
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		noColor, _ := cmd.Flags().GetBool("no-color")
		sinks = append(sinks, transcript.NewPrinter(cmd.OutOrStdout(), transcript.WithColor(!noColor)))
	}

	if cfg.Transcript.File != "" {
		jsonl, err := transcript.OpenJSONL(cfg.Transcript.File)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, jsonl)
		closers = append(closers, jsonl.Close)
	}

	if cfg.Transcript.RedisAddr != "" {
		stream := transcript.NewStream(cfg.Transcript.RedisAddr, cfg.Transcript.RedisStream)
		if err := stream.Ping(ctx); err != nil {
			stream.Close()
			closeAll()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Transcript.RedisAddr, err)
		}
		sinks = append(sinks, stream)
		closers = append(closers, stream.Close)
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, collector)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, metrics.Router(reg), logger); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	return sinks, closeAll, nil
}
