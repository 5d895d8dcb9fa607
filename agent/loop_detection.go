package agent

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/martinemde/codeloop/interp"
)

// DefaultLoopWindow is the number of executed statements inspected for
// repetition.
const DefaultLoopWindow = 6

func statementSignature(source string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(source)))
	return fmt.Sprintf("%x", h[:8])
}

// recentSignatures returns the signatures of the last count executed
// statements in chronological order. Parse failures are skipped.
func recentSignatures(history []*interp.Record, count int) []string {
	var sigs []string
	for i := len(history) - 1; i >= 0 && len(sigs) < count; i-- {
		if history[i].Parsed {
			sigs = append(sigs, statementSignature(history[i].Source))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last windowSize executed statements
// repeat with a period of 1, 2 or 3.
func DetectLoop(history []*interp.Record, windowSize int) bool {
	if windowSize <= 1 {
		return false
	}
	sigs := recentSignatures(history, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 || patternLen >= windowSize {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}
