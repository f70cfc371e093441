package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierwatch/tierwatch/internal/chain"
	"github.com/tierwatch/tierwatch/internal/decode"
)

type stubMintDecimals struct {
	decimals map[solana.PublicKey]uint8
	err      error
}

func (s stubMintDecimals) Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.decimals[mint], nil
}

func TestClassify(t *testing.T) {
	sig := solana.Signature{1, 2, 3}
	stakePool := solana.NewWallet().PublicKey()
	poolMint := solana.NewWallet().PublicKey()
	vrtMint := solana.NewWallet().PublicKey()

	t.Run("should derive SOL amount directly from lamports for deposit_sol", func(t *testing.T) {
		classifier := New(stubMintDecimals{})
		decoded := decode.Decoded{
			Kind:        decode.KindStakePool,
			Instruction: "deposit_sol",
			PoolMint:    poolMint,
			Lamports:    1_500_000_000,
		}

		event, err := classifier.Classify(context.Background(), "spl_stake_pool", decoded, chain.Transaction{Signature: sig})
		require.NoError(t, err)
		assert.Equal(t, "SOL", event.CurrencyUnit)
		assert.Equal(t, poolMint.String(), event.AssetKey)
		assert.True(t, decimal.NewFromFloat(1.5).Equal(event.AmountHuman))
	})

	t.Run("should key increase_validator_stake on the stake pool address", func(t *testing.T) {
		classifier := New(stubMintDecimals{})
		decoded := decode.Decoded{
			Kind:        decode.KindStakePool,
			Instruction: "increase_validator_stake",
			StakePool:   stakePool,
			Lamports:    12_000_000_000_000,
		}

		event, err := classifier.Classify(context.Background(), "spl_stake_pool", decoded, chain.Transaction{Signature: sig})
		require.NoError(t, err)
		assert.Equal(t, stakePool.String(), event.AssetKey)
		assert.True(t, decimal.NewFromInt(12000).Equal(event.AmountHuman))
	})

	t.Run("should derive deposit_stake amount from the token balance delta on the pool mint", func(t *testing.T) {
		classifier := New(stubMintDecimals{})
		decoded := decode.Decoded{
			Kind:        decode.KindStakePool,
			Instruction: "deposit_stake",
			PoolMint:    poolMint,
		}
		tx := chain.Transaction{
			Signature: sig,
			TokenBalances: []chain.TokenBalanceDelta{
				{Mint: poolMint, Decimals: 9, PreAmount: 1_000_000_000, PostAmount: 1_500_000_000_000},
			},
		}

		event, err := classifier.Classify(context.Background(), "spl_stake_pool", decoded, tx)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1499).Equal(event.AmountHuman))
	})

	t.Run("should fail with ErrTokenBalanceNotFound when no matching balance exists", func(t *testing.T) {
		classifier := New(stubMintDecimals{})
		decoded := decode.Decoded{
			Kind:        decode.KindStakePool,
			Instruction: "withdraw_stake",
			PoolMint:    poolMint,
		}

		_, err := classifier.Classify(context.Background(), "spl_stake_pool", decoded, chain.Transaction{Signature: sig})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenBalanceNotFound)
	})

	t.Run("should scale mint_to amount_in by the VRT mint's cached decimals", func(t *testing.T) {
		classifier := New(stubMintDecimals{decimals: map[solana.PublicKey]uint8{vrtMint: 6}})
		decoded := decode.Decoded{
			Kind:        decode.KindVault,
			Instruction: "mint_to",
			VRTMint:     vrtMint,
			AmountIn:    5_000_000_000,
		}

		event, err := classifier.Classify(context.Background(), "jito_vault", decoded, chain.Transaction{Signature: sig})
		require.NoError(t, err)
		assert.Equal(t, "VRT", event.CurrencyUnit)
		assert.Equal(t, vrtMint.String(), event.AssetKey)
		assert.True(t, decimal.NewFromInt(5000).Equal(event.AmountHuman))
	})

	t.Run("should fail with ErrMintMetadataUnavailable when the decimals lookup fails", func(t *testing.T) {
		classifier := New(stubMintDecimals{err: errors.New("rpc timeout")})
		decoded := decode.Decoded{
			Kind:        decode.KindVault,
			Instruction: "enqueue_withdrawal",
			VRTMint:     vrtMint,
			Amount:      100,
		}

		_, err := classifier.Classify(context.Background(), "jito_vault", decoded, chain.Transaction{Signature: sig})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMintMetadataUnavailable)
	})

	t.Run("should isolate a ClassifyError to one instruction without affecting another", func(t *testing.T) {
		classifier := New(stubMintDecimals{decimals: map[solana.PublicKey]uint8{vrtMint: 6}})
		tx := chain.Transaction{Signature: sig}

		failing := decode.Decoded{Kind: decode.KindStakePool, Instruction: "withdraw_stake", PoolMint: poolMint}
		_, err := classifier.Classify(context.Background(), "spl_stake_pool", failing, tx)
		require.Error(t, err)

		succeeding := decode.Decoded{Kind: decode.KindVault, Instruction: "mint_to", VRTMint: vrtMint, AmountIn: 1_000_000}
		event, err := classifier.Classify(context.Background(), "jito_vault", succeeding, tx)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1).Equal(event.AmountHuman))
	})
}
