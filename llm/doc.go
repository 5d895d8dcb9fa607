// Package llm is the completion backend used by the solver. It exposes a
// single raw-text operation: send a prompt, receive the continuation.
//
// # Architecture
//
//   - Backend: the interface every provider implements
//   - Client: provider routing, middleware, retries and stop-marker truncation
//   - GollmAdapter: a Backend built on github.com/teilomillet/gollm
//
// # Quick Start
//
//	adapter, _ := llm.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"))
//	client := llm.NewClient(llm.WithProvider("openai", adapter))
//
//	c, _ := client.Complete(ctx, llm.Request{
//	    Prompt:      prompt,
//	    MaxTokens:   512,
//	    Temperature: 0.8,
//	    Stop:        "<start_of_turn>",
//	})
//	fmt.Println(c.Text)
//
// Providers do not agree on stop-sequence support, so the Client cuts every
// completion at the first occurrence of Request.Stop itself.
package llm
