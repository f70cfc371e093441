package mintcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls    atomic.Int64
	decimals uint8
	err      error
	release  chan struct{}
}

func (f *countingFetcher) FetchDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.decimals, f.err
}

func TestCache(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	t.Run("should fetch once on a miss and cache the result", func(t *testing.T) {
		fetcher := &countingFetcher{decimals: 9}
		cache := New(fetcher)

		decimals, err := cache.Decimals(context.Background(), mint)
		require.NoError(t, err)
		assert.Equal(t, uint8(9), decimals)

		decimals, err = cache.Decimals(context.Background(), mint)
		require.NoError(t, err)
		assert.Equal(t, uint8(9), decimals)

		assert.Equal(t, int64(1), fetcher.calls.Load())
	})

	t.Run("should not cache a failed fetch", func(t *testing.T) {
		fetcher := &countingFetcher{err: errors.New("rpc down")}
		cache := New(fetcher)

		_, err := cache.Decimals(context.Background(), mint)
		require.Error(t, err)

		_, err = cache.Decimals(context.Background(), mint)
		require.Error(t, err)

		assert.Equal(t, int64(2), fetcher.calls.Load())
	})

	t.Run("should coalesce concurrent misses for the same mint into one fetch", func(t *testing.T) {
		fetcher := &countingFetcher{decimals: 6, release: make(chan struct{})}
		cache := New(fetcher)

		var wg sync.WaitGroup
		results := make([]uint8, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				decimals, err := cache.Decimals(context.Background(), mint)
				assert.NoError(t, err)
				results[i] = decimals
			}(i)
		}

		close(fetcher.release)
		wg.Wait()

		for _, d := range results {
			assert.Equal(t, uint8(6), d)
		}
		assert.Equal(t, int64(1), fetcher.calls.Load())
	})

	t.Run("should keep each mint's entry independent", func(t *testing.T) {
		fetcher := &countingFetcher{decimals: 2}
		cache := New(fetcher)

		other := solana.NewWallet().PublicKey()

		_, err := cache.Decimals(context.Background(), mint)
		require.NoError(t, err)
		_, err = cache.Decimals(context.Background(), other)
		require.NoError(t, err)

		assert.Equal(t, int64(2), fetcher.calls.Load())
	})
}
