package memchain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincubator/bitshares-gateway/internal/chainadapter"
)

func TestAdapterConnectAndValidateAddress(t *testing.T) {
	chain := New(time.Millisecond)
	adapter := NewAdapter(chain)

	if err := adapter.Connect(context.Background(), nil, "", "gateway"); err != chainadapter.ErrNodeUnreachable {
		t.Fatalf("Connect() with no nodes error = %v, want ErrNodeUnreachable", err)
	}
	if err := adapter.Connect(context.Background(), []string{"ws://node"}, "", "gateway"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	valid, err := adapter.ValidateAddress(context.Background(), "gateway")
	if err != nil {
		t.Fatalf("ValidateAddress() error = %v", err)
	}
	if !valid {
		t.Errorf("ValidateAddress(%q) = false, want true after Connect registers the default account", "gateway")
	}

	unknown, err := adapter.ValidateAddress(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ValidateAddress() error = %v", err)
	}
	if unknown {
		t.Errorf("ValidateAddress(%q) = true, want false", "nobody")
	}
}

func TestTxHashFromOpResolvesUniqueMatch(t *testing.T) {
	chain := New(time.Millisecond)
	adapter := NewAdapter(chain)
	chain.RegisterAccount("alice")
	chain.RegisterAccount("gateway")

	op := chain.PushTransfer("alice", "gateway", "FINTEHTEST.ETH", decimal.RequireFromString("1"), nil)

	hash, err := adapter.TxHashFromOp(context.Background(), op)
	if err != nil {
		t.Fatalf("TxHashFromOp() error = %v", err)
	}
	if hash == "" {
		t.Errorf("TxHashFromOp() = empty hash")
	}
}

func TestTxHashFromOpNotFound(t *testing.T) {
	chain := New(time.Millisecond)
	adapter := NewAdapter(chain)

	real := chain.PushTransfer("alice", "gateway", "FINTEHTEST.ETH", decimal.RequireFromString("1"), nil)
	// Mutate the amount so it no longer matches anything actually on chain.
	fake := real
	fake.Payload.Amount = decimal.RequireFromString("999")

	if _, err := adapter.TxHashFromOp(context.Background(), fake); err != chainadapter.ErrTransactionNotFound {
		t.Errorf("TxHashFromOp() error = %v, want ErrTransactionNotFound", err)
	}
}

func TestGetBlockMissing(t *testing.T) {
	chain := New(time.Millisecond)
	adapter := NewAdapter(chain)

	if _, err := adapter.GetBlock(context.Background(), 999); err != chainadapter.ErrBlockMissing {
		t.Errorf("GetBlock() error = %v, want ErrBlockMissing", err)
	}
}

func TestBroadcastAdvancesChain(t *testing.T) {
	chain := New(time.Millisecond)
	adapter := NewAdapter(chain)

	before, err := adapter.GetCurrentBlockNum(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentBlockNum() error = %v", err)
	}

	tx, err := adapter.Transfer(context.Background(), "gateway", "alice", "FINTEHTEST.ETH", decimal.RequireFromString("2"), "memo")
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	result, err := adapter.Broadcast(context.Background(), tx)
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	after, err := adapter.GetCurrentBlockNum(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentBlockNum() error = %v", err)
	}
	if after <= before {
		t.Errorf("GetCurrentBlockNum() after broadcast = %d, want > %d", after, before)
	}
	if result.BlockNum != after {
		t.Errorf("BroadcastResult.BlockNum = %d, want %d", result.BlockNum, after)
	}
}
