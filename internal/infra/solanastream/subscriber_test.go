package solanastream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierwatch/tierwatch/internal/chain"
)

type fakeRPCClient struct {
	signatures    map[solana.PublicKey][]*rpc.TransactionSignature
	signaturesErr error

	transactions    map[solana.Signature]*rpc.GetTransactionResult
	transactionsErr error
}

func (f *fakeRPCClient) GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	if f.signaturesErr != nil {
		return nil, f.signaturesErr
	}

	all := f.signatures[account]
	if opts == nil || opts.Until == (solana.Signature{}) {
		return all, nil
	}

	var cut []*rpc.TransactionSignature
	for _, sig := range all {
		if sig.Signature == opts.Until {
			break
		}
		cut = append(cut, sig)
	}
	return cut, nil
}

func (f *fakeRPCClient) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if f.transactionsErr != nil {
		return nil, f.transactionsErr
	}
	return f.transactions[signature], nil
}

func sig(b byte) solana.Signature {
	var s solana.Signature
	s[0] = b
	return s
}

func TestIsAuthError(t *testing.T) {
	t.Run("should recognize a 401 response", func(t *testing.T) {
		assert.True(t, isAuthError(errors.New("server responded with 401 Unauthorized")))
	})

	t.Run("should recognize a forbidden response", func(t *testing.T) {
		assert.True(t, isAuthError(errors.New("request forbidden")))
	})

	t.Run("should not flag an ordinary timeout", func(t *testing.T) {
		assert.False(t, isAuthError(errors.New("context deadline exceeded")))
	})
}

func TestSubscribeWatermarkPriming(t *testing.T) {
	t.Run("should start from the latest signature without backfilling", func(t *testing.T) {
		programID := solana.NewWallet().PublicKey()

		fake := &fakeRPCClient{
			signatures: map[solana.PublicKey][]*rpc.TransactionSignature{
				programID: {
					{Signature: sig(3)},
					{Signature: sig(2)},
					{Signature: sig(1)},
				},
			},
		}

		s := &Subscriber{conn: fake, pollInterval: time.Millisecond}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := s.Subscribe(ctx, []solana.PublicKey{programID})
		require.NoError(t, err)

		select {
		case update := <-ch:
			t.Fatalf("expected no transactions before any new signature arrives, got %+v", update)
		case <-time.After(20 * time.Millisecond):
		}
	})

	t.Run("should fail Subscribe with a wrapped ErrAuthenticationFailure on a 401 during priming", func(t *testing.T) {
		programID := solana.NewWallet().PublicKey()

		fake := &fakeRPCClient{signaturesErr: errors.New("401 unauthorized")}
		s := &Subscriber{conn: fake, pollInterval: time.Millisecond}

		_, err := s.Subscribe(context.Background(), []solana.PublicKey{programID})
		assert.ErrorIs(t, err, chain.ErrAuthenticationFailure)
	})
}

func TestTokenBalanceDeltas(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	t.Run("should compute a delta for an account present in both snapshots", func(t *testing.T) {
		pre := []rpc.TokenBalance{{AccountIndex: 1, Mint: mint, UiTokenAmount: rpc.UiTokenAmount{Amount: "100", Decimals: 9}}}
		post := []rpc.TokenBalance{{AccountIndex: 1, Mint: mint, UiTokenAmount: rpc.UiTokenAmount{Amount: "150", Decimals: 9}}}

		deltas := tokenBalanceDeltas(pre, post)
		require.Len(t, deltas, 1)
		assert.Equal(t, uint64(100), deltas[0].PreAmount)
		assert.Equal(t, uint64(150), deltas[0].PostAmount)
	})

	t.Run("should surface an account fully drained to zero", func(t *testing.T) {
		pre := []rpc.TokenBalance{{AccountIndex: 2, Mint: mint, UiTokenAmount: rpc.UiTokenAmount{Amount: "50", Decimals: 6}}}

		deltas := tokenBalanceDeltas(pre, nil)
		require.Len(t, deltas, 1)
		assert.Equal(t, uint64(50), deltas[0].PreAmount)
		assert.Equal(t, uint64(0), deltas[0].PostAmount)
	})
}

func TestResolveInstruction(t *testing.T) {
	t.Run("should resolve account indices and attach flat inner instructions", func(t *testing.T) {
		programA := solana.NewWallet().PublicKey()
		programB := solana.NewWallet().PublicKey()
		accountKeys := []solana.PublicKey{programA, programB}

		outer := solana.CompiledInstruction{ProgramIDIndex: 0, Accounts: []uint16{1}, Data: []byte{1}}
		inner := []solana.CompiledInstruction{{ProgramIDIndex: 1, Accounts: []uint16{0}, Data: []byte{2}}}

		resolved := resolveInstruction(accountKeys, outer, inner)

		assert.Equal(t, programA, resolved.ProgramID)
		assert.Equal(t, []solana.PublicKey{programB}, resolved.Accounts)
		require.Len(t, resolved.Inner, 1)
		assert.Equal(t, programB, resolved.Inner[0].ProgramID)
	})

	t.Run("should resolve an out-of-range index to the zero public key", func(t *testing.T) {
		resolved := resolveKey([]solana.PublicKey{}, 0)
		assert.Equal(t, solana.PublicKey{}, resolved)
	})
}
