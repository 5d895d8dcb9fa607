package llm

// ModelInfo describes a known model.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	ContextWindow int      `json:"context_window"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in catalog. The first entry per provider is its
// default model.
var Models = []ModelInfo{
	{ID: "gpt-4o-mini", Provider: "openai", ContextWindow: 128000, Aliases: []string{"mini"}},
	{ID: "gpt-4o", Provider: "openai", ContextWindow: 128000},
	{ID: "claude-sonnet-4-5", Provider: "anthropic", ContextWindow: 200000, Aliases: []string{"sonnet"}},
	{ID: "claude-haiku-4-5", Provider: "anthropic", ContextWindow: 200000, Aliases: []string{"haiku"}},
	{ID: "gemma2", Provider: "ollama", ContextWindow: 8192, Aliases: []string{"gemma"}},
	{ID: "llama3.1", Provider: "ollama", ContextWindow: 128000},
}

// GetModelInfo returns the catalog entry for an ID or alias, or nil.
func GetModelInfo(id string) *ModelInfo {
	for i := range Models {
		m := &Models[i]
		if m.ID == id {
			return m
		}
		for _, alias := range m.Aliases {
			if alias == id {
				return m
			}
		}
	}
	return nil
}

// DefaultModel returns the default model for a provider, or "" when the
// provider is not in the catalog.
func DefaultModel(provider string) string {
	for _, m := range Models {
		if m.Provider == provider {
			return m.ID
		}
	}
	return ""
}
