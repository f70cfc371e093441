package decode

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Stake-pool instruction discriminators, the leading byte of the payload,
// per the program's wire format (spec.md §4.1).
const (
	discIncreaseValidatorStake            = 4
	discDepositStake                      = 9
	discWithdrawStake                     = 10
	discDepositSol                        = 14
	discWithdrawSol                       = 16
	discDecreaseValidatorStakeWithReserve = 19
)

// Fixed account-index positions per the spl-stake-pool program's account
// layout for each instruction. Only the positions this decoder needs are
// named; every other account in the list is a transport detail the
// classifier never looks at.
const (
	idxIncreaseValidatorStakePool = 0
	idxDecreaseValidatorStakePool = 0

	idxDepositSolPoolMint    = 7
	idxDepositStakePoolMint  = 10
	idxWithdrawStakePoolMint = 9
	idxWithdrawSolPoolMint   = 7
)

// StakePoolDecoder decodes spl_stake_pool instructions.
type StakePoolDecoder struct {
	programID solana.PublicKey
}

// NewStakePoolDecoder builds a StakePoolDecoder bound to programID, the
// configured spl_stake_pool deployment address.
func NewStakePoolDecoder(programID solana.PublicKey) *StakePoolDecoder {
	return &StakePoolDecoder{programID: programID}
}

func (d *StakePoolDecoder) ProgramID() solana.PublicKey {
	return d.programID
}

func (d *StakePoolDecoder) Decode(ix Instruction) (Decoded, bool, error) {
	if len(ix.Data) < 1 {
		return Decoded{}, false, nil
	}

	discriminator := ix.Data[0]
	decoder := bin.NewBorshDecoder(ix.Data[1:])

	switch discriminator {
	case discIncreaseValidatorStake:
		lamports, seed, err := decodeU64Pair(decoder)
		if err != nil {
			return Decoded{}, false, fmt.Errorf("increase_validator_stake: %w", err)
		}
		stakePool, err := account(ix.Accounts, idxIncreaseValidatorStakePool)
		if err != nil {
			return Decoded{}, false, err
		}
		return Decoded{
			Kind:               KindStakePool,
			Instruction:        "increase_validator_stake",
			StakePool:          stakePool,
			Lamports:           lamports,
			TransientStakeSeed: seed,
		}, true, nil

	case discDecreaseValidatorStakeWithReserve:
		lamports, seed, err := decodeU64Pair(decoder)
		if err != nil {
			return Decoded{}, false, fmt.Errorf("decrease_validator_stake_with_reserve: %w", err)
		}
		stakePool, err := account(ix.Accounts, idxDecreaseValidatorStakePool)
		if err != nil {
			return Decoded{}, false, err
		}
		return Decoded{
			Kind:               KindStakePool,
			Instruction:        "decrease_validator_stake_with_reserve",
			StakePool:          stakePool,
			Lamports:           lamports,
			TransientStakeSeed: seed,
		}, true, nil

	case discDepositStake:
		poolMint, err := account(ix.Accounts, idxDepositStakePoolMint)
		if err != nil {
			return Decoded{}, false, err
		}
		return Decoded{
			Kind:        KindStakePool,
			Instruction: "deposit_stake",
			PoolMint:    poolMint,
		}, true, nil

	case discWithdrawStake:
		poolTokens, err := decodeU64(decoder)
		if err != nil {
			return Decoded{}, false, fmt.Errorf("withdraw_stake: %w", err)
		}
		poolMint, err := account(ix.Accounts, idxWithdrawStakePoolMint)
		if err != nil {
			return Decoded{}, false, err
		}
		return Decoded{
			Kind:        KindStakePool,
			Instruction: "withdraw_stake",
			PoolMint:    poolMint,
			PoolTokens:  poolTokens,
		}, true, nil

	case discDepositSol:
		lamports, err := decodeU64(decoder)
		if err != nil {
			return Decoded{}, false, fmt.Errorf("deposit_sol: %w", err)
		}
		poolMint, err := account(ix.Accounts, idxDepositSolPoolMint)
		if err != nil {
			return Decoded{}, false, err
		}
		return Decoded{
			Kind:        KindStakePool,
			Instruction: "deposit_sol",
			PoolMint:    poolMint,
			Lamports:    lamports,
		}, true, nil

	case discWithdrawSol:
		poolTokens, err := decodeU64(decoder)
		if err != nil {
			return Decoded{}, false, fmt.Errorf("withdraw_sol: %w", err)
		}
		poolMint, err := account(ix.Accounts, idxWithdrawSolPoolMint)
		if err != nil {
			return Decoded{}, false, err
		}
		return Decoded{
			Kind:        KindStakePool,
			Instruction: "withdraw_sol",
			PoolMint:    poolMint,
			PoolTokens:  poolTokens,
		}, true, nil

	default:
		return Decoded{}, false, nil
	}
}

func decodeU64(decoder *bin.Decoder) (uint64, error) {
	var v uint64
	if err := decoder.Decode(&v); err != nil {
		return 0, ErrTruncated
	}
	return v, nil
}

func decodeU64Pair(decoder *bin.Decoder) (uint64, uint64, error) {
	a, err := decodeU64(decoder)
	if err != nil {
		return 0, 0, err
	}
	b, err := decodeU64(decoder)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func account(accounts []solana.PublicKey, index int) (solana.PublicKey, error) {
	if index >= len(accounts) {
		return solana.PublicKey{}, fmt.Errorf("%w: missing account at index %d", ErrTruncated, index)
	}
	return accounts[index], nil
}
