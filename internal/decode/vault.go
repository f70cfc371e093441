package decode

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Vault instruction discriminators. jito_vault is an Anchor program: the
// first 8 bytes of every instruction payload are the sighash discriminator
// (global:<snake_case_name> hashed with SHA-256, first 8 bytes), distinct
// from spl_stake_pool's single leading byte. Bound as fixed constants per
// SPEC_FULL.md §12.2 rather than re-derived at runtime.
var (
	discMintTo            = [8]byte{0xf1, 0x22, 0x30, 0xba, 0x25, 0xb3, 0x7b, 0xc0}
	discEnqueueWithdrawal = [8]byte{0xb1, 0x7f, 0x82, 0xd0, 0x2e, 0xca, 0x44, 0x48}
)

// Fixed account-index position of the VRT mint account in both recognized
// instructions' account lists.
const idxVaultVRTMint = 0

// VaultDecoder decodes jito_vault instructions.
type VaultDecoder struct {
	programID solana.PublicKey
}

// NewVaultDecoder builds a VaultDecoder bound to programID, the configured
// jito_vault deployment address.
func NewVaultDecoder(programID solana.PublicKey) *VaultDecoder {
	return &VaultDecoder{programID: programID}
}

func (d *VaultDecoder) ProgramID() solana.PublicKey {
	return d.programID
}

func (d *VaultDecoder) Decode(ix Instruction) (Decoded, bool, error) {
	if len(ix.Data) < 8 {
		return Decoded{}, false, nil
	}

	var discriminator [8]byte
	copy(discriminator[:], ix.Data[:8])
	decoder := bin.NewBorshDecoder(ix.Data[8:])

	switch {
	case bytes.Equal(discriminator[:], discMintTo[:]):
		amountIn, err := decodeU64(decoder)
		if err != nil {
			return Decoded{}, false, fmt.Errorf("mint_to: %w", err)
		}
		minAmountOut, err := decodeU64(decoder)
		if err != nil {
			return Decoded{}, false, fmt.Errorf("mint_to: %w", err)
		}
		vrtMint, err := account(ix.Accounts, idxVaultVRTMint)
		if err != nil {
			return Decoded{}, false, err
		}
		return Decoded{
			Kind:         KindVault,
			Instruction:  "mint_to",
			VRTMint:      vrtMint,
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
		}, true, nil

	case bytes.Equal(discriminator[:], discEnqueueWithdrawal[:]):
		amount, err := decodeU64(decoder)
		if err != nil {
			return Decoded{}, false, fmt.Errorf("enqueue_withdrawal: %w", err)
		}
		vrtMint, err := account(ix.Accounts, idxVaultVRTMint)
		if err != nil {
			return Decoded{}, false, err
		}
		return Decoded{
			Kind:        KindVault,
			Instruction: "enqueue_withdrawal",
			VRTMint:     vrtMint,
			Amount:      amount,
		}, true, nil

	default:
		return Decoded{}, false, nil
	}
}
