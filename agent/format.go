package agent

import (
	"strings"

	"github.com/martinemde/codeloop/interp"
)

// Prompt template tokens.
const (
	UserTurn        = "<start_of_turn>user\n"
	EndOfTurn       = "<end_of_turn>\n"
	StatementMarker = ">>> "
	// TerminalMarker closes every bootstrap transcript.
	TerminalMarker = "quit()\n\n"
)

// DefaultObservationLines caps the lines of one observation in the prompt.
const DefaultObservationLines = 200

// Formatter renders session state as prompt text.
type Formatter struct {
	// ObservationLimit caps observation characters; zero disables the cap.
	ObservationLimit int
	// ObservationLines caps observation lines; zero disables the cap.
	ObservationLines int
}

// DefaultFormatter is the formatter used for bootstrap transcripts and
// live prompts unless a session overrides its limits.
var DefaultFormatter = Formatter{
	ObservationLimit: DefaultObservationLimit,
	ObservationLines: DefaultObservationLines,
}

// Format renders s with the default formatter.
func Format(s *State) string {
	return DefaultFormatter.Format(s)
}

// FormatRecord renders rec with the default formatter.
func FormatRecord(rec *interp.Record) string {
	return DefaultFormatter.FormatRecord(rec)
}

// Format renders the prefix, the task as a user turn, every record, and
// finally an open statement marker for the model to continue from. It is a
// pure function of s.
func (f Formatter) Format(s *State) string {
	var b strings.Builder
	b.WriteString(s.Prefix)
	b.WriteString(UserTurn)
	b.WriteString(s.Context)
	b.WriteString(EndOfTurn)
	for _, rec := range s.History {
		b.WriteString(f.FormatRecord(rec))
		b.WriteByte('\n')
	}
	b.WriteString(StatementMarker)
	return b.String()
}

// FormatRecord renders one record: the statement with every line marked,
// then its observation when there is one.
func (f Formatter) FormatRecord(rec *interp.Record) string {
	stmt := markLines(rec.Source)
	out := rec.Observation()
	if out == "" {
		return stmt
	}
	out = strings.TrimRight(out, "\n")
	out = TruncateLines(TruncateOutput(out, f.ObservationLimit, TruncateHeadTail), f.ObservationLines)
	return stmt + "\n" + out
}

// markLines prefixes each line of source with the statement marker.
func markLines(source string) string {
	lines := strings.Split(strings.TrimRight(source, "\n"), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = strings.TrimRight(StatementMarker, " ")
			continue
		}
		lines[i] = StatementMarker + line
	}
	return strings.Join(lines, "\n")
}

// ExtractCode recovers program text from a completion. A fenced block wins
// when it is closed or opens the completion. Leading blank lines are
// skipped. When later lines carry the statement marker, the completion is
// a transcript: the first line is taken as-is (the prompt already ended
// with a marker) together with each following marked line, and the first
// unmarked line ends the program since it is the model imagining an
// observation. Unmarked text is kept whole if it parses; otherwise its
// first line is used when that parses alone, and the whole text is
// returned so the failure can be reported against it.
func ExtractCode(text string) string {
	if code, ok := fencedBlock(text); ok {
		return code
	}

	lines := strings.Split(text, "\n")
	for len(lines) > 1 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}

	if !hasMarkedLine(lines[1:]) {
		whole := strings.Join(trimFenceTail(lines), "\n")
		if parses(whole) || !parses(lines[0]) {
			return whole
		}
		return lines[0]
	}

	out := []string{lines[0]}
	for _, line := range lines[1:] {
		code, ok := unmark(line)
		if !ok {
			break
		}
		out = append(out, code)
	}
	return strings.Join(trimFenceTail(out), "\n")
}

func hasMarkedLine(lines []string) bool {
	for _, line := range lines {
		if _, ok := unmark(line); ok {
			return true
		}
	}
	return false
}

// trimFenceTail drops trailing blank lines and stray closing fences.
func trimFenceTail(lines []string) []string {
	for len(lines) > 1 {
		last := strings.TrimSpace(lines[len(lines)-1])
		if last != "" && !strings.HasPrefix(last, "```") {
			break
		}
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 1 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		return nil
	}
	return lines
}

func parses(code string) bool {
	_, err := interp.Parse(code)
	return err == nil
}

func unmark(line string) (string, bool) {
	marker := strings.TrimRight(StatementMarker, " ")
	if !strings.HasPrefix(line, marker) {
		return "", false
	}
	rest := strings.TrimPrefix(line, marker)
	return strings.TrimPrefix(rest, " "), true
}

func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	body := text[start+3:]
	// Drop the language tag line.
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return "", false
	}
	body = body[nl+1:]
	end := strings.Index(body, "```")
	if end < 0 {
		// An opening fence cut off by the token limit still holds code.
		if strings.TrimSpace(text[:start]) != "" {
			return "", false
		}
		return strings.TrimRight(body, "\n"), true
	}
	return strings.TrimRight(body[:end], "\n"), true
}
