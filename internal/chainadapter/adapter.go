// Package chainadapter defines the collaborator boundary between the
// gateway core and a concrete blockchain SDK. The
// core never imports a chain SDK directly; it only calls this interface.
package chainadapter

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/shopspring/decimal"
)

// Errors the core recognizes and handles specially.
var (
	// ErrBlockMissing means the requested block has not been produced yet.
	// Transient: retry after one block-time.
	ErrBlockMissing = errors.New("chainadapter: block missing")

	// ErrNodeUnreachable means every configured node failed to connect.
	ErrNodeUnreachable = errors.New("chainadapter: node unreachable")

	// ErrTransactionNotFound is tx-hash-from-op's zero-match case.
	ErrTransactionNotFound = errors.New("chainadapter: transaction not found")

	// ErrOperationsCollision is tx-hash-from-op's two-or-more-match case.
	ErrOperationsCollision = errors.New("chainadapter: operations collision")
)

// RawOperation is the untyped operation the Validator consumes.
type RawOperation struct {
	ID       string // "<account>.<space>.<seq_num>"
	SeqNum   int64
	Type     int
	Payload  TransferPayload
	BlockNum int64
}

// TransferPayload is the decoded native-transfer operation body.
type TransferPayload struct {
	From   string
	To     string
	Amount decimal.Decimal
	Asset  string
	Memo   *EncryptedMemo
}

// EncryptedMemo is an opaque, adapter-owned memo object; only the adapter
// can decrypt it.
type EncryptedMemo struct {
	Opaque []byte
}

// Block is a chain block and the transactions it contains.
type Block struct {
	Number       int64
	Transactions []Transaction
}

// Transaction is a signed transaction as returned by get_block.
type Transaction struct {
	ID         string
	Operations []RawOperation
}

// BroadcastResult is what broadcast(tx) returns.
type BroadcastResult struct {
	ID         string
	BlockNum   int64
	Expiration time.Time
}

// UnbroadcastTx is an assembled-but-unsigned-or-unsent transaction object
// returned by transfer/issue/burn, opaque to the core except for Broadcast.
type UnbroadcastTx struct {
	Opaque any
}

// Adapter is the full surface the core requires from a blockchain SDK. A
// concrete implementation owns node connections, keys and the wire
// protocol; none of that crosses this boundary.
type Adapter interface {
	// Connect tries nodes in order; fails if all are unreachable.
	Connect(ctx context.Context, nodes []string, keysFile, defaultAccount string) error

	// GetCurrentBlockNum returns the highest irreversible block height.
	GetCurrentBlockNum(ctx context.Context) (int64, error)

	// GetLastOpNum returns the integer suffix of account's most recent operation.
	GetLastOpNum(ctx context.Context, account string) (int64, error)

	// TailHistory yields operations with SeqNum > sinceOp, oldest first,
	// blocking (via the iterator's Stop-aware pull) while there is nothing
	// new, polling at the chain's block time.
	TailHistory(ctx context.Context, account string, sinceOp int64) iter.Seq[RawOperation]

	// GetBlock returns ErrBlockMissing until height is produced.
	GetBlock(ctx context.Context, height int64) (*Block, error)

	// ReadMemo decrypts memo with the gateway's memo key; nil if memo is nil.
	ReadMemo(ctx context.Context, memo *EncryptedMemo) (*string, error)

	// Transfer constructs an unbroadcast transfer transaction.
	Transfer(ctx context.Context, from, to, asset string, amount decimal.Decimal, memo string) (*UnbroadcastTx, error)

	// Issue constructs an unbroadcast issue (mint) transaction.
	Issue(ctx context.Context, to, asset string, amount decimal.Decimal) (*UnbroadcastTx, error)

	// Burn constructs an unbroadcast burn transaction.
	Burn(ctx context.Context, from, asset string, amount decimal.Decimal) (*UnbroadcastTx, error)

	// Broadcast submits tx and returns its id/block/expiration.
	Broadcast(ctx context.Context, tx *UnbroadcastTx) (*BroadcastResult, error)

	// ValidateAddress is true iff name resolves to an existing account.
	ValidateAddress(ctx context.Context, name string) (bool, error)

	// TxHashFromOp resolves the signed-transaction id containing op, by
	// matching (amount, asset, from, to) against every tx in op's block.
	// Returns ErrTransactionNotFound or ErrOperationsCollision on a bad match.
	TxHashFromOp(ctx context.Context, op RawOperation) (string, error)
}
