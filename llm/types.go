package llm

import "strings"

// Request is a raw-text completion request.
type Request struct {
	Prompt      string  `json:"prompt"`
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
	// Stop ends the completion at its first occurrence. Empty disables it.
	Stop string `json:"stop,omitempty"`
}

// Completion is the continuation returned by a backend.
type Completion struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Finish reasons.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// TruncateAtStop cuts text at the first occurrence of stop. It reports
// whether the marker was found.
func TruncateAtStop(text, stop string) (string, bool) {
	if stop == "" {
		return text, false
	}
	if i := strings.Index(text, stop); i >= 0 {
		return text[:i], true
	}
	return text, false
}
