// Package solanarpc implements mintcache.Fetcher against a Solana RPC
// endpoint, using gagliardetto/solana-go's own rpc.Client rather than the
// teacher's generic JSON-RPC transport — the same client the corpus's
// Arkham-dVPN-cli history reader uses for getTransaction/getAccountInfo.
package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/tierwatch/tierwatch/internal/mintcache"
	"github.com/tierwatch/tierwatch/internal/pkg/resilience/retry"
)

// mintDecimalsByteOffset is the byte offset of the `decimals` field within
// an SPL Token Mint account's data, per the program's fixed account layout:
// COption<Pubkey> mint_authority (4+32) + u64 supply (8) + u8 decimals.
const mintDecimalsByteOffset = 4 + 32 + 8

// fetchTimeout bounds a single getAccountInfo attempt, per spec.md §5's
// mint-metadata RPC timeout.
const fetchTimeout = 5 * time.Second

// ErrAccountNotFound means getAccountInfo returned no value for the
// requested mint address.
var ErrAccountNotFound = errors.New("solanarpc: mint account not found")

// accountInfoFetcher is the one rpc.Client method this package depends on,
// narrowed to an interface so tests can fake the RPC round trip without a
// live endpoint.
type accountInfoFetcher interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// Client fetches SPL mint metadata over the Solana RPC client.
type Client struct {
	conn  accountInfoFetcher
	retry retry.Retry
}

var _ mintcache.Fetcher = (*Client)(nil)

// NewClient builds a Client against endpoint. A transient getAccountInfo
// failure is retried a few times before giving up — mintcache.Cache never
// retries on its own, so the retry has to happen here.
func NewClient(endpoint string) *Client {
	return &Client{conn: rpc.New(endpoint), retry: retry.New()}
}

// FetchDecimals resolves mint's decimals by reading its raw Mint account
// data and decoding the fixed-offset decimals byte directly, rather than
// depending on the jsonParsed encoding's account-specific shape.
func (c *Client) FetchDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	var decimals uint8

	err := c.retry.Execute(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		out, err := c.conn.GetAccountInfoWithOpts(attemptCtx, mint, &rpc.GetAccountInfoOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
		})
		if err != nil {
			return fmt.Errorf("solanarpc: getAccountInfo: %w", err)
		}

		if out == nil || out.Value == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, mint)
		}

		data := out.Value.Data.GetBinary()
		if len(data) <= mintDecimalsByteOffset {
			return fmt.Errorf("solanarpc: mint account data too short for %s", mint)
		}

		decimals = data[mintDecimalsByteOffset]
		return nil
	})

	return decimals, err
}
