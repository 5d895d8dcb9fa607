package transcript

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/martinemde/codeloop/agent"
)

const (
	colorStatement = "#818cf8"
	colorValue     = "#34d399"
	colorFault     = "#f87171"
	colorWarn      = "#fbbf24"
)

// Printer renders events as a readable transcript.
type Printer struct {
	mu  sync.Mutex
	out *termenv.Output
}

// PrinterOption configures a Printer.
type PrinterOption func(*printerConfig)

type printerConfig struct {
	color bool
}

// WithColor enables or disables ANSI colors. Colors follow the terminal
// profile by default.
func WithColor(enabled bool) PrinterOption {
	return func(c *printerConfig) {
		c.color = enabled
	}
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	cfg := printerConfig{color: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	var outOpts []termenv.OutputOption
	if !cfg.color {
		outOpts = append(outOpts, termenv.WithProfile(termenv.Ascii))
	}
	return &Printer{out: termenv.NewOutput(w, outOpts...)}
}

func (p *Printer) Write(_ context.Context, ev agent.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	switch ev.Kind {
	case agent.EventSessionStart:
		fmt.Fprintf(&b, "%s\n", p.out.String(fmt.Sprintf("session %s (budget %d)", ev.SessionID, ev.Budget)).Faint())
		if task, ok := ev.Data["context"].(string); ok {
			fmt.Fprintf(&b, "%s\n", p.out.String(task).Bold())
		}
	case agent.EventStatement, agent.EventTerminated:
		if ev.Record != nil {
			p.writeStatement(&b, ev.Record.Source)
			switch {
			case ev.Record.Fault != nil:
				p.writeBlock(&b, ev.Record.Fault.Message, colorFault)
			case ev.Record.Stdout != "":
				p.writeBlock(&b, ev.Record.Stdout, "")
			case ev.Record.Repr != "":
				p.writeBlock(&b, ev.Record.Repr, colorValue)
			}
			if ev.Record.Stderr != "" {
				p.writeBlock(&b, ev.Record.Stderr, colorWarn)
			}
		}
		if ev.Kind == agent.EventTerminated {
			fmt.Fprintf(&b, "%s\n", p.out.String(fmt.Sprintf("quit(%v)", ev.Data["code"])).Faint())
		}
	case agent.EventPlan:
		sources, _ := ev.Data["sources"].([]string)
		if len(sources) == 0 {
			fmt.Fprintf(&b, "%s\n", p.out.String("plan: nothing further").Faint())
			break
		}
		fmt.Fprintf(&b, "%s\n", p.out.String(fmt.Sprintf("plan: %d statement(s)", len(sources))).Faint())
		for _, src := range sources {
			for _, line := range strings.Split(strings.TrimRight(src, "\n"), "\n") {
				fmt.Fprintf(&b, "%s\n", p.out.String("  "+line).Faint())
			}
		}
	case agent.EventParseFailure:
		if ev.Record != nil {
			p.writeStatement(&b, ev.Record.Source)
			p.writeBlock(&b, ev.Record.Stdout, colorWarn)
		}
	case agent.EventReplan:
		fmt.Fprintf(&b, "%s\n", p.out.String(fmt.Sprintf("re-planning, %v queued statement(s) dropped", ev.Data["dropped"])).Faint())
	case agent.EventLoopDetected:
		fmt.Fprintf(&b, "%s\n", p.out.String("warning: the last statements repeat").Foreground(p.out.Color(colorWarn)))
	case agent.EventError:
		fmt.Fprintf(&b, "%s\n", p.out.String(fmt.Sprintf("error: %v", ev.Data["error"])).Foreground(p.out.Color(colorFault)).Bold())
	case agent.EventSessionEnd:
		fmt.Fprintf(&b, "%s\n", p.out.String(fmt.Sprintf("done: %v after %d/%d steps", ev.Data["reason"], ev.Cost, ev.Budget)).Faint())
	default:
		return nil
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

func (p *Printer) writeStatement(b *strings.Builder, source string) {
	style := p.out.Color(colorStatement)
	for _, line := range strings.Split(strings.TrimRight(source, "\n"), "\n") {
		fmt.Fprintf(b, "%s\n", p.out.String(agent.StatementMarker+line).Foreground(style))
	}
}

func (p *Printer) writeBlock(b *strings.Builder, text, color string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	if color == "" {
		b.WriteString(text + "\n")
		return
	}
	fmt.Fprintf(b, "%s\n", p.out.String(text).Foreground(p.out.Color(color)))
}
