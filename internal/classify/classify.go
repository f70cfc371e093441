// Package classify turns a decoded instruction plus its enclosing
// transaction into an Event whose amount reflects the actual value moved,
// in human units.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/tierwatch/tierwatch/internal/chain"
	"github.com/tierwatch/tierwatch/internal/decode"
)

// ErrMintMetadataUnavailable means the VRT mint's decimals could not be
// resolved (cache miss and the upstream RPC lookup failed).
var ErrMintMetadataUnavailable = errors.New("classify: mint metadata unavailable")

// ErrTokenBalanceNotFound means the transaction's token-balance listing has
// no entry for the mint the instruction references.
var ErrTokenBalanceNotFound = errors.New("classify: token balance not found for mint")

const lamportsPerSOL = 1_000_000_000

// Event is produced by the Classifier and consumed immediately by the
// Policy Engine — it is never persisted.
type Event struct {
	ProgramAlias         string
	InstructionName      string
	AssetKey             string // base58 address; meaning depends on InstructionName, per §3
	AmountHuman          decimal.Decimal
	TransactionSignature string
	CurrencyUnit         string // "SOL" for stake-pool events, "VRT" for vault events
}

// MintDecimals resolves a mint's on-chain decimals, reading through a cache.
// Implementations must make a successful lookup's value stable for the
// process lifetime (spec.md §5 — "a successful lookup never changes its
// cached value").
type MintDecimals interface {
	Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// Classifier converts decoded instructions into Events.
type Classifier struct {
	mintDecimals MintDecimals
}

// New builds a Classifier backed by mintDecimals for vault-instruction
// decimal lookups.
func New(mintDecimals MintDecimals) *Classifier {
	return &Classifier{mintDecimals: mintDecimals}
}

// Classify derives the Event for one decoded instruction within tx. Per
// spec.md §4.2/§7, a ClassifyError here is isolated to this instruction —
// callers must continue processing the rest of the transaction regardless.
func (c *Classifier) Classify(ctx context.Context, programAlias string, decoded decode.Decoded, tx chain.Transaction) (Event, error) {
	base := Event{
		ProgramAlias:         programAlias,
		InstructionName:      decoded.Instruction,
		TransactionSignature: tx.Signature.String(),
	}

	switch decoded.Instruction {
	case "increase_validator_stake", "decrease_validator_stake_with_reserve", "deposit_sol", "withdraw_sol":
		base.CurrencyUnit = "SOL"
		base.AssetKey = assetKeyFor(decoded)
		lamports := decoded.Lamports
		if decoded.Instruction == "withdraw_sol" {
			lamports = decoded.PoolTokens
		}
		base.AmountHuman = decimal.NewFromInt(int64(lamports)).Shift(-9)
		return base, nil

	case "deposit_stake", "withdraw_stake":
		base.CurrencyUnit = "SOL"
		base.AssetKey = decoded.PoolMint.String()
		amount, err := tokenBalanceDelta(tx, decoded.PoolMint)
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", decoded.Instruction, err)
		}
		base.AmountHuman = amount
		return base, nil

	case "mint_to":
		base.CurrencyUnit = "VRT"
		base.AssetKey = decoded.VRTMint.String()
		decimals, err := c.mintDecimals.Decimals(ctx, decoded.VRTMint)
		if err != nil {
			return Event{}, fmt.Errorf("mint_to: %w: %w", ErrMintMetadataUnavailable, err)
		}
		base.AmountHuman = decimal.NewFromInt(int64(decoded.AmountIn)).Shift(-int32(decimals))
		return base, nil

	case "enqueue_withdrawal":
		base.CurrencyUnit = "VRT"
		base.AssetKey = decoded.VRTMint.String()
		decimals, err := c.mintDecimals.Decimals(ctx, decoded.VRTMint)
		if err != nil {
			return Event{}, fmt.Errorf("enqueue_withdrawal: %w: %w", ErrMintMetadataUnavailable, err)
		}
		base.AmountHuman = decimal.NewFromInt(int64(decoded.Amount)).Shift(-int32(decimals))
		return base, nil

	default:
		return Event{}, fmt.Errorf("classify: unrecognized instruction %q", decoded.Instruction)
	}
}

// assetKeyFor returns the stake-pool address for the SOL-denominated
// stake-pool instructions that key on it, or the LST pool mint for the
// rest. decoded.StakePool is the zero PublicKey when unset, which only
// happens for instructions not in this switch branch's set.
func assetKeyFor(decoded decode.Decoded) string {
	switch decoded.Instruction {
	case "increase_validator_stake", "decrease_validator_stake_with_reserve":
		return decoded.StakePool.String()
	default:
		return decoded.PoolMint.String()
	}
}

func tokenBalanceDelta(tx chain.Transaction, mint solana.PublicKey) (decimal.Decimal, error) {
	for _, balance := range tx.TokenBalances {
		if balance.Mint != mint {
			continue
		}

		pre := decimal.NewFromInt(int64(balance.PreAmount))
		post := decimal.NewFromInt(int64(balance.PostAmount))
		delta := post.Sub(pre).Abs()

		return delta.Shift(-int32(balance.Decimals)), nil
	}

	return decimal.Decimal{}, fmt.Errorf("%w: mint %s", ErrTokenBalanceNotFound, mint)
}
