package llm

import (
	"context"
	"sync"
)

// Middleware wraps a backend call. It receives the request and a next
// function that calls the downstream handler.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Completion, error)) (*Completion, error)

// Client holds registered backends, routes requests by provider name,
// applies middleware and retries, and enforces the stop marker.
type Client struct {
	providers       map[string]Backend
	defaultProvider string
	middleware      []Middleware
	retry           *RetryPolicy
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a backend.
func WithProvider(name string, backend Backend) ClientOption {
	return func(c *Client) {
		c.providers[name] = backend
	}
}

// WithDefaultProvider sets the default provider name.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware adds middleware to the client.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithRetryPolicy retries retryable backend errors.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = &policy
	}
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]Backend),
	}
	for _, opt := range opts {
		opt(c)
	}
	// If no default and exactly one provider, use it.
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for name := range c.providers {
			c.defaultProvider = name
		}
	}
	return c
}

// RegisterProvider adds a backend to the client.
func (c *Client) RegisterProvider(name string, backend Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = backend
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

func (c *Client) resolveProvider(req Request) (Backend, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		if info := GetModelInfo(req.Model); info != nil {
			name = info.Provider
		}
	}
	if name == "" {
		return nil, configError("no provider specified and no default provider configured")
	}

	backend, ok := c.providers[name]
	if !ok {
		return nil, configError("provider %q is not registered", name)
	}
	return backend, nil
}

// Complete sends a request through middleware to the resolved backend and
// cuts the returned text at the stop marker.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	backend, err := c.resolveProvider(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = backend.Name()
	}

	handler := func(ctx context.Context, r Request) (*Completion, error) {
		return backend.Complete(ctx, r)
	}
	// Apply in reverse so the first registered runs first.
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := handler
		handler = func(ctx context.Context, r Request) (*Completion, error) {
			return mw(ctx, r, next)
		}
	}

	var completion *Completion
	if c.retry != nil {
		completion, err = Retry(ctx, *c.retry, func(ctx context.Context) (*Completion, error) {
			return handler(ctx, req)
		})
	} else {
		completion, err = handler(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if completion == nil {
		return &Completion{Provider: req.Provider, Model: req.Model}, nil
	}

	if text, cut := TruncateAtStop(completion.Text, req.Stop); cut {
		out := *completion
		out.Text = text
		out.FinishReason = FinishStop
		return &out, nil
	}
	return completion, nil
}

// Close releases resources held by all registered backends.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, backend := range c.providers {
		if closer, ok := backend.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
