package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mnemo/internal/models"
	"mnemo/pkg/logger"
)

// DefaultTimeout bounds a single provider attempt when the request does not
// set its own timeout. The total wall time of a Generate call can reach
// (attempted providers x timeout).
const DefaultTimeout = 10 * time.Second

var (
	// ErrNoProviders is returned when the resolved call order is empty.
	ErrNoProviders = errors.New("no providers configured")
	// ErrAllProvidersFailed is returned when every provider in the call
	// order failed; it wraps the last underlying error.
	ErrAllProvidersFailed = errors.New("no provider succeeded")
)

// Provider is the capability interface a text-generation backend must
// implement to participate in the fallback chain.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)
}

// Client manages a set of named providers and tries them in preference order
// until one succeeds. It holds no state across calls beyond the registered
// provider set.
type Client struct {
	mu        sync.RWMutex
	providers map[string]Provider
	guards    map[string]*guard
	// order is the default fallback preference; registering an unknown
	// name appends it.
	order []string
	// defaultTimeout overrides DefaultTimeout when set.
	defaultTimeout time.Duration

	logger *logger.Logger
}

// NewClient creates a client with the standard preference order. Providers
// named in the order but never registered are skipped at call time.
func NewClient(log *logger.Logger) *Client {
	return &Client{
		providers: make(map[string]Provider),
		guards:    make(map[string]*guard),
		order:     []string{"gemini", "openai", "ollama"},
		logger:    log,
	}
}

// SetOrder replaces the fallback preference order. Unknown names in the
// list are tolerated and skipped at call time.
func (c *Client) SetOrder(names []string) {
	if len(names) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = append([]string(nil), names...)
}

// SetDefaultTimeout replaces the per-attempt timeout used when a request
// does not carry its own. Non-positive values are ignored.
func (c *Client) SetDefaultTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultTimeout = d
}

// SetRateLimit caps local calls to a registered provider at rate per second
// with the given burst. Requests past the limit skip the provider and fall
// through to the next one.
func (c *Client) SetRateLimit(name string, rate float64, burst int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.guards[name]
	if !ok {
		g = newGuard()
		c.guards[name] = g
	}
	g.setRateLimit(rate, burst)
}

// Register adds a provider under the given name, appending the name to the
// preference order if it is new. Registering an existing name replaces the
// implementation.
func (c *Client) Register(name string, p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = p
	if _, ok := c.guards[name]; !ok {
		c.guards[name] = newGuard()
	}
	for _, n := range c.order {
		if n == name {
			return
		}
	}
	c.order = append(c.order, name)
}

// Generate tries the request's priority provider first, then the remaining
// registered providers in preference order. Each attempt runs under its own
// timeout; a timeout or provider error is logged and the next provider is
// tried. The first success is returned immediately. Caller cancellation
// stops the chain without trying further providers.
func (c *Client) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		c.mu.RLock()
		timeout = c.defaultTimeout
		c.mu.RUnlock()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	order := c.callOrder(req.ProviderPriority)
	if len(order) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.mu.RLock()
		p := c.providers[name]
		g := c.guards[name]
		c.mu.RUnlock()

		// An open breaker or exhausted rate budget skips the provider
		// without spending a timeout on it.
		if !g.allow() {
			c.logger.Warn(fmt.Sprintf("provider '%s' unavailable, trying next", name))
			lastErr = fmt.Errorf("%w: %s", ErrProviderUnavailable, name)
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := p.Generate(attemptCtx, req)
		cancel()
		if err != nil {
			// A cancelled caller must not fall through to the next
			// provider, and the cancellation is not held against it.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.record(false)
			c.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "provider_error"}).
				Warn(fmt.Sprintf("provider '%s' failed, trying next", name))
			lastErr = err
			continue
		}
		g.record(true)
		if resp.Provider == "" {
			resp.Provider = name
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// callOrder resolves the provider names to attempt: the priority name first
// (when registered), then the preference order, skipping unregistered names
// and duplicates.
func (c *Client) callOrder(priority string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var order []string
	seen := make(map[string]bool)
	if priority != "" {
		if _, ok := c.providers[priority]; ok {
			order = append(order, priority)
			seen[priority] = true
		}
	}
	for _, name := range c.order {
		if seen[name] {
			continue
		}
		if _, ok := c.providers[name]; !ok {
			continue
		}
		order = append(order, name)
		seen[name] = true
	}
	return order
}
