package solanarpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierwatch/tierwatch/internal/pkg/resilience/retry"
)

func noRetry() retry.Retry {
	return retry.New(retry.WithAttempts(1))
}

type fakeAccountInfoFetcher struct {
	result *rpc.GetAccountInfoResult
	err    error
}

func (f fakeAccountInfoFetcher) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	return f.result, f.err
}

// mintAccountInfoResult builds a *rpc.GetAccountInfoResult the way the
// upstream RPC server would serialize one for a base64-encoded mint account,
// letting the library's own JSON decoding populate Data rather than poking
// at its internals directly.
func mintAccountInfoResult(t *testing.T, decimals byte) *rpc.GetAccountInfoResult {
	t.Helper()

	data := make([]byte, mintDecimalsByteOffset+1)
	data[mintDecimalsByteOffset] = decimals
	encoded := base64.StdEncoding.EncodeToString(data)

	body := `{"context":{"slot":1},"value":{"lamports":1,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","data":["` + encoded + `","base64"],"executable":false,"rentEpoch":0}}`

	var out rpc.GetAccountInfoResult
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return &out
}

func TestFetchDecimals(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	t.Run("should decode the decimals byte from a base64 mint account", func(t *testing.T) {
		client := &Client{conn: fakeAccountInfoFetcher{result: mintAccountInfoResult(t, 6)}, retry: noRetry()}

		decimals, err := client.FetchDecimals(context.Background(), mint)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), decimals)
	})

	t.Run("should fail with ErrAccountNotFound when value is null", func(t *testing.T) {
		client := &Client{conn: fakeAccountInfoFetcher{result: &rpc.GetAccountInfoResult{}}, retry: noRetry()}

		_, err := client.FetchDecimals(context.Background(), mint)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("should propagate a transport error", func(t *testing.T) {
		client := &Client{conn: fakeAccountInfoFetcher{err: errors.New("boom")}, retry: noRetry()}

		_, err := client.FetchDecimals(context.Background(), mint)
		assert.Error(t, err)
	})
}
