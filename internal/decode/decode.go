// Package decode turns raw program instruction bytes into typed, decoded
// variants for the two monitored Solana programs. Unknown discriminators are
// skipped rather than treated as errors; only a truncated payload for a
// recognized discriminator is a decode failure.
package decode

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrTruncated is returned when a recognized discriminator's payload is
// shorter than its fixed trailing-field layout requires.
var ErrTruncated = errors.New("decode: truncated instruction payload")

// Kind distinguishes which monitored program a Decoded value came from.
type Kind int

const (
	KindUnknown Kind = iota
	KindStakePool
	KindVault
)

func (k Kind) String() string {
	switch k {
	case KindStakePool:
		return "stake_pool"
	case KindVault:
		return "vault"
	default:
		return "unknown"
	}
}

// Decoded is the tagged union of every recognized instruction variant. Only
// the fields relevant to Instruction are populated; the rest carry their
// zero value.
type Decoded struct {
	Kind        Kind
	Instruction string // snake_case, matches spec.md §4.1/§6 naming exactly

	StakePool solana.PublicKey // set for stake-pool instructions keyed by pool address
	PoolMint  solana.PublicKey // set for stake-pool instructions keyed by LST mint
	VRTMint   solana.PublicKey // set for vault instructions

	Lamports           uint64
	PoolTokens         uint64
	TransientStakeSeed uint64
	AmountIn           uint64
	MinAmountOut       uint64
	Amount             uint64
}

// Instruction is the minimal shape a ProgramDecoder needs: the raw payload
// bytes and the resolved account keys in instruction order.
type Instruction struct {
	Accounts []solana.PublicKey
	Data     []byte
}

// ProgramDecoder decodes instructions belonging to one on-chain program.
// Decode returns ok=false (with a nil error) when the instruction's
// discriminator is not one this decoder recognizes — that is Skip, not a
// failure.
type ProgramDecoder interface {
	ProgramID() solana.PublicKey
	Decode(ix Instruction) (decoded Decoded, ok bool, err error)
}

// Registry dispatches an instruction to the decoder registered for its
// program ID, by base58 string equality.
type Registry struct {
	decoders map[solana.PublicKey]ProgramDecoder
}

// NewRegistry builds a Registry from a set of decoders, keyed by their own
// ProgramID(). Registration is additive: wiring in a third program later
// means adding one more ProgramDecoder here, nothing else.
func NewRegistry(decoders ...ProgramDecoder) *Registry {
	r := &Registry{decoders: make(map[solana.PublicKey]ProgramDecoder, len(decoders))}
	for _, d := range decoders {
		r.decoders[d.ProgramID()] = d
	}
	return r
}

// ProgramIDs returns every program ID this registry has a decoder for, for
// use as the subscription filter on the upstream transaction feed.
func (r *Registry) ProgramIDs() []solana.PublicKey {
	ids := make([]solana.PublicKey, 0, len(r.decoders))
	for id := range r.decoders {
		ids = append(ids, id)
	}
	return ids
}

// Decode dispatches ix to the decoder registered for programID. A program ID
// with no registered decoder is Skip (ok=false, err=nil): the Stream Driver
// only invokes Decode for programs declared in Config, but a defensive call
// site should still treat unregistered programs as uninteresting rather than
// erroring.
func (r *Registry) Decode(programID solana.PublicKey, ix Instruction) (Decoded, bool, error) {
	decoder, ok := r.decoders[programID]
	if !ok {
		return Decoded{}, false, nil
	}

	decoded, ok, err := decoder.Decode(ix)
	if err != nil {
		return Decoded{}, false, fmt.Errorf("%s: %w", programID, err)
	}
	return decoded, ok, nil
}
