package interp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// Kind classifies a statement by what its execution yields.
type Kind int

const (
	// KindExec statements bind names or cause effects and yield no value.
	KindExec Kind = iota
	// KindExpression statements yield the values of a call or return.
	KindExpression
)

func (k Kind) String() string {
	if k == KindExpression {
		return "expression"
	}
	return "exec"
}

// Statement is one top-level unit of a program.
type Statement struct {
	// Source is the text exactly as it appears in the program.
	Source string
	Kind   Kind

	chunk string
}

// Chunk returns the text handed to the interpreter. It differs from Source
// when the statement is a bare call (run as a return) or a top-level local
// (promoted to a global so later statements can see it).
func (s Statement) Chunk() string {
	if s.chunk == "" {
		return s.Source
	}
	return s.chunk
}

// ParseError reports program text that is not valid Lua.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message())
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Message returns the first line of the underlying parser message.
func (e *ParseError) Message() string {
	msg := strings.TrimSpace(e.Err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

const chunkName = "stdin"

var (
	localPrefix   = regexp.MustCompile(`^(\s*)local\s+`)
	localFunction = regexp.MustCompile(`^\s*local\s+function\b`)
)

// Parse splits program text into its top-level statements, in source
// order. Text holding only blank lines and comments parses to no
// statements. When statement boundaries cannot be recovered exactly the
// whole program becomes a single statement.
func Parse(text string) ([]Statement, error) {
	stmts, err := parse.Parse(strings.NewReader(text), chunkName)
	if err != nil {
		return nil, &ParseError{Source: text, Err: err}
	}
	if len(stmts) == 0 {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	var starts []int
	for _, st := range stmts {
		line := st.Line()
		if line < 1 || line > len(lines) {
			return whole(lines)
		}
		// Statements sharing a line run together.
		if len(starts) == 0 || line > starts[len(starts)-1] {
			starts = append(starts, line)
		}
	}
	starts[0] = 1

	out := make([]Statement, 0, len(starts))
	// Comments that trail one statement introduce the next.
	var lead []string
	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		chunk := append(append([]string(nil), lead...), lines[start-1:end]...)
		body, tail := splitTrailingNoise(chunk)
		lead = commentLines(tail)
		st, err := newStatement(strings.Join(trimLeadingBlank(body), "\n"))
		if err != nil {
			return whole(lines)
		}
		out = append(out, st)
	}
	return out, nil
}

func whole(lines []string) ([]Statement, error) {
	body, _ := splitTrailingNoise(lines)
	st, err := newStatement(strings.Join(trimLeadingBlank(body), "\n"))
	if err != nil {
		// Trimming can cut into a long string or comment.
		src := strings.Join(lines, "\n")
		if st, err = newStatement(src); err != nil {
			return nil, &ParseError{Source: src, Err: err}
		}
	}
	return []Statement{st}, nil
}

// newStatement classifies one chunk of source. Leading comments stay in
// Source but are left out of the chunk.
func newStatement(src string) (Statement, error) {
	body := stripLeadingNoise(src)
	stmts, err := parse.Parse(strings.NewReader(body), chunkName)
	if err != nil {
		return Statement{}, err
	}
	st := Statement{Source: src, Kind: KindExec}
	if body != src {
		st.chunk = body
	}
	if len(stmts) != 1 {
		if exported := exportLocals(body, stmts); exported != body {
			st.chunk = exported
		}
		return st, nil
	}
	switch node := stmts[0].(type) {
	case *ast.FuncCallStmt:
		st.Kind = KindExpression
		st.chunk = "return " + body
	case *ast.ReturnStmt:
		st.Kind = KindExpression
	case *ast.LocalAssignStmt:
		if len(node.Exprs) == 0 {
			st.chunk = strings.Join(node.Names, ", ") + " = nil"
		} else {
			st.chunk = promoteLocal(body)
		}
	default:
		if localFunction.MatchString(body) {
			st.chunk = promoteLocal(body)
		}
	}
	return st, nil
}

// promoteLocal rewrites a top-level local declaration as a global
// assignment. Each statement runs as its own chunk, so a local would
// otherwise vanish as soon as the statement finished.
func promoteLocal(src string) string {
	return localPrefix.ReplaceAllString(src, "$1")
}

// exportLocals handles several statements sharing a line: the chunk is
// followed by an assignment copying its top-level locals into globals. A
// chunk ending in return cannot be extended, so its locals stay local.
func exportLocals(body string, stmts []ast.Stmt) string {
	if _, ok := stmts[len(stmts)-1].(*ast.ReturnStmt); ok {
		return body
	}
	var names []string
	seen := make(map[string]bool)
	for _, stmt := range stmts {
		local, ok := stmt.(*ast.LocalAssignStmt)
		if !ok {
			continue
		}
		for _, name := range local.Names {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return body
	}
	list := strings.Join(names, ", ")
	return body + "\n" + list + " = " + list
}

// splitTrailingNoise separates trailing blank and comment-only lines.
func splitTrailingNoise(lines []string) (body, tail []string) {
	last := len(lines)
	for last > 0 && isNoise(lines[last-1]) {
		last--
	}
	return lines[:last], lines[last:]
}

func trimLeadingBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return lines
}

func commentLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func stripLeadingNoise(src string) string {
	lines := strings.Split(src, "\n")
	for len(lines) > 0 && isNoise(lines[0]) {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func isNoise(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	return strings.HasPrefix(line, "--") && !strings.HasPrefix(line, "--[")
}
