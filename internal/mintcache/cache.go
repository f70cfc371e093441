// Package mintcache implements the read-through mint-decimals cache the
// Transaction Classifier depends on. A mint's decimals never change once
// observed, so a successful lookup is cached for the process lifetime;
// concurrent misses for the same mint are coalesced into a single upstream
// fetch.
package mintcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Fetcher resolves a mint's decimals from an upstream source (typically a
// Solana RPC getAccountInfo call). Implementations should apply their own
// timeout; Cache does not impose one.
type Fetcher interface {
	FetchDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// inflight tracks one in-progress fetch so concurrent callers for the same
// mint share its result instead of issuing duplicate upstream calls.
type inflight struct {
	done     chan struct{}
	decimals uint8
	err      error
}

// Cache is a concurrency-safe, coalescing, read-through cache in front of a
// Fetcher. It satisfies classify.MintDecimals.
type Cache struct {
	fetcher Fetcher

	mu       sync.Mutex
	values   map[solana.PublicKey]uint8
	inflight map[solana.PublicKey]*inflight
}

// New builds a Cache backed by fetcher.
func New(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher:  fetcher,
		values:   make(map[solana.PublicKey]uint8),
		inflight: make(map[solana.PublicKey]*inflight),
	}
}

// Decimals returns mint's decimals, serving from cache on a hit and
// coalescing concurrent misses into one upstream fetch.
func (c *Cache) Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	c.mu.Lock()
	if decimals, ok := c.values[mint]; ok {
		c.mu.Unlock()
		return decimals, nil
	}

	if existing, ok := c.inflight[mint]; ok {
		c.mu.Unlock()
		return waitFor(ctx, existing)
	}

	leader := &inflight{done: make(chan struct{})}
	c.inflight[mint] = leader
	c.mu.Unlock()

	decimals, err := c.fetcher.FetchDecimals(ctx, mint)

	c.mu.Lock()
	if err == nil {
		c.values[mint] = decimals
	}
	delete(c.inflight, mint)
	c.mu.Unlock()

	leader.decimals = decimals
	leader.err = err
	close(leader.done)

	return decimals, err
}

func waitFor(ctx context.Context, f *inflight) (uint8, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("mintcache: %w", ctx.Err())
	case <-f.done:
		return f.decimals, f.err
	}
}
