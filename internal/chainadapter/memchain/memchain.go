// Package memchain is a deterministic, in-process reference implementation
// of chainadapter.Adapter. It exists so the core's components, the test
// suite and a local gatewayd run can all exercise the full
// ingest->validate->confirm->broadcast pipeline without a live chain node.
// It is not, and must never become, a blockchain SDK.
package memchain

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fincubator/bitshares-gateway/internal/chainadapter"
)

// Chain is an in-memory chain: a list of blocks, each holding transactions,
// plus an account->op-count index used to assign sequence numbers.
type Chain struct {
	mu sync.Mutex

	blocks     []chainadapter.Block
	accountSeq map[string]int64
	accounts   map[string]bool
	blockTime  time.Duration

	newOp chan struct{} // closed+replaced each time an op is appended
}

// New creates an empty in-memory chain with the given simulated block time.
func New(blockTime time.Duration) *Chain {
	c := &Chain{
		accountSeq: make(map[string]int64),
		accounts:   map[string]bool{},
		blockTime:  blockTime,
		newOp:      make(chan struct{}),
	}
	// Genesis block so GetBlock(0) never 404s.
	c.blocks = append(c.blocks, chainadapter.Block{Number: 0})
	return c
}

// RegisterAccount marks name as an address validate_address will accept.
func (c *Chain) RegisterAccount(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[name] = true
}

// PushTransfer appends a new block containing a single native transfer and
// returns the resulting RawOperation (seq_num and block_num already set).
// Used by tests to simulate an observed on-chain transfer.
func (c *Chain) PushTransfer(from, to, asset string, amount decimal.Decimal, memo *chainadapter.EncryptedMemo) chainadapter.RawOperation {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accountSeq[from]++
	c.accountSeq[to]++
	seq := c.accountSeq[from]
	if c.accountSeq[to] > seq {
		seq = c.accountSeq[to]
	}

	txID := uuid.New().String()
	raw := chainadapter.RawOperation{
		ID:     fmt.Sprintf("%s.0.%d", from, seq),
		SeqNum: seq,
		Type:   0,
		Payload: chainadapter.TransferPayload{
			From: from, To: to, Amount: amount, Asset: asset, Memo: memo,
		},
		BlockNum: int64(len(c.blocks)),
	}

	c.blocks = append(c.blocks, chainadapter.Block{
		Number: raw.BlockNum,
		Transactions: []chainadapter.Transaction{{
			ID:         txID,
			Operations: []chainadapter.RawOperation{raw},
		}},
	})

	close(c.newOp)
	c.newOp = make(chan struct{})
	return raw
}

// opsFor returns every RawOperation touching account with seq_num > since,
// in chain order.
func (c *Chain) opsFor(account string, since int64) []chainadapter.RawOperation {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []chainadapter.RawOperation
	for _, b := range c.blocks {
		for _, tx := range b.Transactions {
			for _, op := range tx.Operations {
				if op.SeqNum <= since {
					continue
				}
				if op.Payload.From == account || op.Payload.To == account {
					out = append(out, op)
				}
			}
		}
	}
	return out
}

// Adapter wraps a Chain behind chainadapter.Adapter.
type Adapter struct {
	chain          *Chain
	defaultAccount string
}

// NewAdapter binds an Adapter to chain; Connect still must be called.
func NewAdapter(chain *Chain) *Adapter {
	return &Adapter{chain: chain}
}

func (a *Adapter) Connect(_ context.Context, nodes []string, _ string, defaultAccount string) error {
	if len(nodes) == 0 {
		return chainadapter.ErrNodeUnreachable
	}
	a.defaultAccount = defaultAccount
	a.chain.RegisterAccount(defaultAccount)
	return nil
}

func (a *Adapter) GetCurrentBlockNum(_ context.Context) (int64, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	return int64(len(a.chain.blocks) - 1), nil
}

func (a *Adapter) GetLastOpNum(_ context.Context, account string) (int64, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	return a.chain.accountSeq[account], nil
}

// TailHistory polls the chain every blockTime and yields new ops oldest
// first, stopping early if the consumer breaks or ctx is cancelled.
func (a *Adapter) TailHistory(ctx context.Context, account string, sinceOp int64) iter.Seq[chainadapter.RawOperation] {
	return func(yield func(chainadapter.RawOperation) bool) {
		cursor := sinceOp
		for {
			for _, op := range a.chain.opsFor(account, cursor) {
				if !yield(op) {
					return
				}
				cursor = op.SeqNum
			}

			a.chain.mu.Lock()
			wait := a.chain.newOp
			a.chain.mu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-wait:
			case <-time.After(a.chain.blockTime):
			}
		}
	}
}

func (a *Adapter) GetBlock(_ context.Context, height int64) (*chainadapter.Block, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	if height < 0 || height >= int64(len(a.chain.blocks)) {
		return nil, chainadapter.ErrBlockMissing
	}
	b := a.chain.blocks[height]
	return &b, nil
}

func (a *Adapter) ReadMemo(_ context.Context, memo *chainadapter.EncryptedMemo) (*string, error) {
	if memo == nil {
		return nil, nil
	}
	plain := string(memo.Opaque)
	return &plain, nil
}

func (a *Adapter) Transfer(_ context.Context, from, to, asset string, amount decimal.Decimal, memo string) (*chainadapter.UnbroadcastTx, error) {
	return &chainadapter.UnbroadcastTx{Opaque: chainadapter.TransferPayload{
		From: from, To: to, Asset: asset, Amount: amount,
		Memo: &chainadapter.EncryptedMemo{Opaque: []byte(memo)},
	}}, nil
}

func (a *Adapter) Issue(_ context.Context, to, asset string, amount decimal.Decimal) (*chainadapter.UnbroadcastTx, error) {
	return &chainadapter.UnbroadcastTx{Opaque: chainadapter.TransferPayload{To: to, Asset: asset, Amount: amount}}, nil
}

func (a *Adapter) Burn(_ context.Context, from, asset string, amount decimal.Decimal) (*chainadapter.UnbroadcastTx, error) {
	return &chainadapter.UnbroadcastTx{Opaque: chainadapter.TransferPayload{From: from, Asset: asset, Amount: amount}}, nil
}

func (a *Adapter) Broadcast(_ context.Context, tx *chainadapter.UnbroadcastTx) (*chainadapter.BroadcastResult, error) {
	payload, ok := tx.Opaque.(chainadapter.TransferPayload)
	if !ok {
		return nil, fmt.Errorf("memchain: unrecognized tx payload %T", tx.Opaque)
	}
	var memo *chainadapter.EncryptedMemo
	if payload.Memo != nil {
		memo = payload.Memo
	}
	raw := a.chain.PushTransfer(payload.From, payload.To, payload.Asset, payload.Amount, memo)
	block, err := a.GetBlock(context.Background(), raw.BlockNum)
	if err != nil {
		return nil, err
	}
	return &chainadapter.BroadcastResult{
		ID:         block.Transactions[0].ID,
		BlockNum:   raw.BlockNum,
		Expiration: time.Now().Add(time.Minute),
	}, nil
}

func (a *Adapter) ValidateAddress(_ context.Context, name string) (bool, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	return a.chain.accounts[name], nil
}

// TxHashFromOp matches op against every tx in its block on
// (amount, asset, from, to).
func (a *Adapter) TxHashFromOp(ctx context.Context, op chainadapter.RawOperation) (string, error) {
	block, err := a.GetBlock(ctx, op.BlockNum)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, tx := range block.Transactions {
		for _, candidate := range tx.Operations {
			if candidate.Payload.Amount.Equal(op.Payload.Amount) &&
				candidate.Payload.Asset == op.Payload.Asset &&
				candidate.Payload.From == op.Payload.From &&
				candidate.Payload.To == op.Payload.To {
				matches = append(matches, tx.ID)
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", chainadapter.ErrTransactionNotFound
	case 1:
		return matches[0], nil
	default:
		return "", chainadapter.ErrOperationsCollision
	}
}
