package watcher

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincubator/bitshares-gateway/internal/chainadapter/memchain"
	"github.com/fincubator/bitshares-gateway/internal/domain"
	"github.com/fincubator/bitshares-gateway/internal/store"
	"github.com/fincubator/bitshares-gateway/internal/validator"
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

func createPlanned(ctx context.Context, st *store.Store, op *domain.Operation) error {
	return st.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := st.CreateOperationTx(ctx, tx, op)
		return err
	})
}

const (
	testAsset   = "FINTEHTEST.ETH"
	gatewayAcct = "fincubator-gateway"
)

func quietLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "error", Output: io.Discard})
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "gateway-watcher-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	st, err := store.New(store.Config{Driver: store.DriverSQLite, Name: filepath.Join(dir, "gateway.db")})
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testValidator(adapter *memchain.Adapter) *validator.Validator {
	return validator.New(adapter, validator.Thresholds{
		GatewayAccount: gatewayAcct,
		Asset:          testAsset,
		AssetCode:      "ETH",
		MinDeposit:     decimal.RequireFromString("0.001"),
		MaxDeposit:     decimal.RequireFromString("1000"),
		MinWithdrawal:  decimal.RequireFromString("0.001"),
		MaxWithdrawal:  decimal.RequireFromString("1000"),
	})
}

func TestWatcherIgnoresSpuriousDeposit(t *testing.T) {
	st := newTestStore(t)
	chain := memchain.New(time.Millisecond)
	chain.RegisterAccount(gatewayAcct)
	chain.RegisterAccount("alice")
	adapter := memchain.NewAdapter(chain)
	ctx := context.Background()
	if err := adapter.Connect(ctx, []string{"mem"}, "", gatewayAcct); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	v := testValidator(adapter)

	var notified []*domain.Operation
	notify := func(_ context.Context, op *domain.Operation) { notified = append(notified, op) }

	w := New(gatewayAcct, adapter, st, v, notify, quietLogger())
	if _, err := w.Synchronize(ctx); err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}

	// A deposit with no matching planned WAIT row in the store: spurious,
	// should advance the cursor but never notify.
	op := chain.PushTransfer(gatewayAcct, "alice", testAsset, decimal.RequireFromString("5"), nil)
	if err := w.apply(ctx, op); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	if len(notified) != 0 {
		t.Errorf("notified = %v, want none for a spurious deposit", notified)
	}

	wallet, err := st.GetWallet(ctx, gatewayAcct)
	if err != nil {
		t.Fatalf("GetWallet() error = %v", err)
	}
	if wallet.LastOperation != op.SeqNum {
		t.Errorf("LastOperation = %d, want %d", wallet.LastOperation, op.SeqNum)
	}
}

func TestWatcherMatchesPlannedDeposit(t *testing.T) {
	st := newTestStore(t)
	chain := memchain.New(time.Millisecond)
	chain.RegisterAccount(gatewayAcct)
	chain.RegisterAccount("alice")
	adapter := memchain.NewAdapter(chain)
	ctx := context.Background()
	if err := adapter.Connect(ctx, []string{"mem"}, "", gatewayAcct); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	v := testValidator(adapter)
	w := New(gatewayAcct, adapter, st, v, nil, quietLogger())
	if _, err := w.Synchronize(ctx); err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}

	// Plan the exact transfer the watcher is about to observe, as the
	// Broadcaster would for a booker-initiated payout.
	planned := &domain.Operation{
		OrderType:   domain.OrderTypeDeposit,
		Asset:       testAsset,
		FromAccount: gatewayAcct,
		ToAccount:   "alice",
		Amount:      decimal.RequireFromString("5"),
		Status:      domain.StatusWait,
		Error:       domain.ErrNone,
	}
	op := chain.PushTransfer(gatewayAcct, "alice", testAsset, decimal.RequireFromString("5"), nil)

	// Resolve the hash the watcher will resolve, so the planned row matches
	// on (asset, tx_hash) the way the watcher requires.
	hash, err := adapter.TxHashFromOp(ctx, op)
	if err != nil {
		t.Fatalf("TxHashFromOp() error = %v", err)
	}
	planned.TxHash = &hash
	planned.BlockNum = op.BlockNum

	if err := createPlanned(ctx, st, planned); err != nil {
		t.Fatalf("createPlanned() error = %v", err)
	}

	if err := w.apply(ctx, op); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	got, err := st.GetByID(ctx, planned.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.StatusReceivedNotConfirmed {
		t.Errorf("Status = %s, want RECEIVED_NOT_CONFIRMED", got.Status)
	}
	if got.OpID == nil || *got.OpID != op.SeqNum {
		t.Errorf("OpID = %v, want %d", got.OpID, op.SeqNum)
	}
}
