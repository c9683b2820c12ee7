package translator

import (
	"context"
	"fmt"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/folio-cms/folio/internal/pkg/metrics"
)

// Result describes one finished call.
type Result struct {
	Text     string
	Provider string
	Cached   bool
	Duration time.Duration
}

// Client wraps a Provider with the per-call timeout, rate limiting, caching
// and html sanitising.
type Client struct {
	provider  Provider
	timeout   time.Duration
	limiter   *RateLimiter
	cache     Cache
	sanitizer *Sanitizer
}

type Option func(*Client)

func WithCache(c Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

func WithRateLimiter(l *RateLimiter) Option {
	return func(cl *Client) { cl.limiter = l }
}

func NewClient(provider Provider, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		provider:  provider,
		timeout:   timeout,
		sanitizer: NewSanitizer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Translate runs one request under the configured timeout. The deadline
// covers the rate limiter wait as well as the remote call.
func (c *Client) Translate(ctx context.Context, req Request) (Result, error) {
	name := c.provider.Name()
	key := CacheKey(name, req)

	if c.cache != nil {
		text, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("translation cache read failed", "module", "translator", "action", "cache_get", "error", err)
		} else if ok {
			return Result{Text: text, Provider: name, Cached: true}, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if c.limiter != nil {
		if err := c.limiter.Wait(callCtx); err != nil {
			if ctx.Err() == nil {
				// the limiter refuses waits that cannot finish before the deadline
				err = fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return Result{Provider: name, Duration: time.Since(start)}, err
		}
	}

	text, err := c.provider.Translate(callCtx, req)
	elapsed := time.Since(start)
	metrics.TranslationDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		return Result{Provider: name, Duration: elapsed}, normalize(callCtx, err)
	}

	text = c.sanitizer.Clean(req.Format, text)
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, text); err != nil {
			logger.Warn("translation cache write failed", "module", "translator", "action", "cache_set", "error", err)
		}
	}
	return Result{Text: text, Provider: name, Duration: elapsed}, nil
}

// NewFromConfig builds the client the server and CLI share. It returns nil
// when automatic translation is disabled.
func NewFromConfig(cfg config.TranslationConfig, cache Cache) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	provider, err := New(cfg)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithRateLimiter(NewRateLimiter(cfg.RateLimitQPS))}
	if cache != nil {
		opts = append(opts, WithCache(cache))
	}
	return NewClient(provider, cfg.Timeout(), opts...), nil
}
