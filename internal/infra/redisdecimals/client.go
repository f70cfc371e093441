// Package redisdecimals is an optional durable layer in front of
// internal/mintcache: a mint's decimals never change once observed, so
// persisting them across restarts saves an RPC round trip the first time
// each mint is seen after every process start. Adapted from the teacher's
// internal/infra/storage/redis key/value conventions.
package redisdecimals

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	redis "github.com/redis/go-redis/v9"

	"github.com/tierwatch/tierwatch/internal/mintcache"
)

const mintDecimalsKeyPrefix = "tierwatch:mint_decimals"

func mintDecimalsKey(mint solana.PublicKey) string {
	return fmt.Sprintf("%s:%s", mintDecimalsKeyPrefix, mint)
}

// Store wraps an mintcache.Fetcher with a Redis-backed read-through layer:
// a hit in Redis is returned directly; a miss falls through to the wrapped
// Fetcher and the result is persisted before returning.
type Store struct {
	conn    *redis.Client
	fetcher mintcache.Fetcher
}

var _ mintcache.Fetcher = (*Store)(nil)

// NewClient dials addr and returns a *redis.Client the caller can pass to
// New, mirroring the teacher's infra/storage/redis.NewClient connectivity
// check (Ping on construction).
func NewClient(ctx context.Context, addr, username, password string, db int) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisdecimals: connecting: %w", err)
	}

	return conn, nil
}

// New builds a Store backed by conn, falling through to fetcher on a cache
// miss.
func New(conn *redis.Client, fetcher mintcache.Fetcher) *Store {
	return &Store{conn: conn, fetcher: fetcher}
}

// FetchDecimals implements mintcache.Fetcher.
func (s *Store) FetchDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	key := mintDecimalsKey(mint)

	val, err := s.conn.Get(ctx, key).Int64()
	if err == nil {
		return uint8(val), nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redisdecimals: reading %s: %w", key, err)
	}

	decimals, err := s.fetcher.FetchDecimals(ctx, mint)
	if err != nil {
		return 0, err
	}

	// Decimals are immutable once observed, so the entry never expires.
	if err := s.conn.Set(ctx, key, int64(decimals), 0).Err(); err != nil {
		return decimals, fmt.Errorf("redisdecimals: persisting %s: %w", key, err)
	}

	return decimals, nil
}

// MaybeWrap returns New(conn, fetcher) when conn is non-nil, or fetcher
// unchanged otherwise — the transparent fallback to the in-memory-only
// mintcache.Cache when no Redis address is configured.
func MaybeWrap(conn *redis.Client, fetcher mintcache.Fetcher) mintcache.Fetcher {
	if conn == nil {
		return fetcher
	}
	return New(conn, fetcher)
}
