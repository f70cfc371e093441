package redisdecimals

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type fakeFetcher struct {
	decimals uint8
}

func (f fakeFetcher) FetchDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	return f.decimals, nil
}

func TestMaybeWrap(t *testing.T) {
	t.Run("should return the fetcher unchanged when no redis client is configured", func(t *testing.T) {
		fetcher := fakeFetcher{decimals: 9}

		result := MaybeWrap(nil, fetcher)
		assert.Equal(t, fetcher, result)
	})

	t.Run("should wrap the fetcher in a Store when a redis client is configured", func(t *testing.T) {
		result := MaybeWrap(&redis.Client{}, fakeFetcher{decimals: 9})

		_, ok := result.(*Store)
		assert.True(t, ok)
	})
}
