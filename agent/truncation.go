package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateHead     TruncationMode = "head"
)

// DefaultObservationLimit caps the characters of one observation in the
// prompt.
const DefaultObservationLimit = 4000

// DefaultFailureLimit caps the parse failure description.
const DefaultFailureLimit = 200

// TruncateOutput shortens output to about maxChars characters. A
// non-positive limit disables truncation.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	switch mode {
	case TruncateHead:
		return output[:runeStart(output, maxChars)] + "..."
	default:
		half := maxChars / 2
		tail := len(output) - half
		for tail < len(output) && !utf8.RuneStart(output[tail]) {
			tail++
		}
		return output[:runeStart(output, half)] +
			fmt.Sprintf("\n[... %d characters omitted ...]\n", removed) +
			output[tail:]
	}
}

// runeStart moves i back to the start of the character it falls in.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}
