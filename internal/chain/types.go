// Package chain defines the transaction record shape consumed from the
// upstream subscription feed. The feed itself — the concrete gRPC/geyser
// transport — is an external collaborator; only this consumed shape is
// specified here.
package chain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrAuthenticationFailure is the sentinel a Subscriber implementation wraps
// into a TransactionUpdate.Err (or returns from Subscribe itself) when the
// upstream feed rejected the connection's credentials, as opposed to an
// ordinary network disconnect. The Stream Driver only counts failures
// matching this sentinel toward the persistent-auth-failure-is-fatal rule.
var ErrAuthenticationFailure = errors.New("chain: upstream authentication failure")

// Instruction is one instruction invocation within a transaction, with its
// account keys already resolved from the transaction's account-keys table.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey // resolved account keys, in instruction order
	Data      []byte             // raw instruction payload
	Inner     []Instruction      // CPI instructions nested under this one, in emit order
}

// TokenBalanceDelta is one entry in a transaction's pre/post SPL token
// balance listing.
type TokenBalanceDelta struct {
	AccountIndex int
	Mint         solana.PublicKey
	Owner        solana.PublicKey
	Decimals     uint8
	PreAmount    uint64 // raw, pre-instruction balance in base units
	PostAmount   uint64 // raw, post-instruction balance in base units
}

// Transaction is one confirmed transaction as yielded by the upstream feed.
type Transaction struct {
	Signature     solana.Signature
	Slot          uint64
	Instructions  []Instruction
	TokenBalances []TokenBalanceDelta
}

// TransactionUpdate is one item off a Subscriber's channel: either a
// Transaction or a terminal stream error.
type TransactionUpdate struct {
	Transaction Transaction
	Err         error
}

// Subscriber is the injected collaborator standing in for the out-of-scope
// gRPC/geyser feed. Implementations filter the upstream stream to the given
// program IDs and yield every matching transaction until ctx is canceled or
// the connection drops (signaled by a TransactionUpdate carrying a non-nil
// Err, after which the channel is closed).
type Subscriber interface {
	Subscribe(ctx context.Context, programIDs []solana.PublicKey) (<-chan TransactionUpdate, error)
}
