// Package token holds and refreshes the single short-lived connection token
// shared by the rest of the SDK. The cache calls the host-supplied provider
// at most once per concurrent burst of requests: callers that arrive while a
// fetch is in flight share that fetch's result. Provider failures are
// surfaced to the caller unretried.
package token

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/errs"
)

// Provider is implemented by the host to fetch connection tokens from its
// backend. It must be safe to call repeatedly across the app lifetime.
type Provider interface {
	FetchConnectionToken(ctx context.Context) (string, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context) (string, error)

// FetchConnectionToken calls f.
func (f ProviderFunc) FetchConnectionToken(ctx context.Context) (string, error) {
	return f(ctx)
}

type fetch struct {
	done  chan struct{}
	token string
	err   error
}

// Cache owns the single live connection token. At most one token is cached
// at a time; Clear invalidates it so the next Token call fetches fresh.
type Cache struct {
	provider Provider

	mu       sync.Mutex
	token    string
	gen      uint64
	inflight *fetch
}

// NewCache returns a cache backed by the given provider.
func NewCache(provider Provider) *Cache {
	return &Cache{provider: provider}
}

// Token returns the cached connection token, fetching one from the provider
// if none is cached. Concurrent callers during an in-flight fetch share its
// result; exactly one provider invocation happens per burst. A provider
// failure is returned as a ProviderError and nothing is cached.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" {
		t := c.token
		c.mu.Unlock()
		return t, nil
	}
	if f := c.inflight; f != nil {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.token, f.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f := &fetch{done: make(chan struct{})}
	c.inflight = f
	gen := c.gen
	c.mu.Unlock()

	t, err := c.provider.FetchConnectionToken(ctx)
	if err != nil {
		f.err = errs.Wrap(errs.ProviderError, "connection token fetch failed", err)
	} else if t == "" {
		f.err = errs.New(errs.ProviderError, "provider returned an empty connection token")
	} else {
		f.token = t
	}
	close(f.done)

	c.mu.Lock()
	if c.inflight == f {
		c.inflight = nil
	}
	// A Clear during the fetch bumps gen; the result is still handed to
	// waiters but must not be cached.
	if f.err == nil && c.gen == gen {
		c.token = f.token
	}
	c.mu.Unlock()

	return f.token, f.err
}

// Clear unconditionally invalidates the cached token. An outstanding fetch
// is not canceled, but its result is discarded rather than cached.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.token = ""
	c.gen++
	c.mu.Unlock()
	zap.L().Debug("connection token cleared")
}

// Cached reports whether a token is currently cached.
func (c *Cache) Cached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Warm proactively fetches a token in the background so the first connect
// does not pay the provider round trip. Failures are logged, not surfaced;
// the next Token call will retry.
func (c *Cache) Warm(ctx context.Context) {
	go func() {
		if _, err := c.Token(ctx); err != nil {
			zap.L().Warn("proactive connection token fetch failed", zap.Error(err))
		}
	}()
}
