package confirmer

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
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "error", Output: io.Discard})
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "gateway-confirmer-test-*")
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

func createReceivedOp(ctx context.Context, st *store.Store, blockNum int64) (*domain.Operation, error) {
	op := &domain.Operation{
		OrderType:   domain.OrderTypeWithdrawal,
		Asset:       "FINTEHTEST.ETH",
		FromAccount: "alice",
		ToAccount:   "fincubator-gateway",
		Amount:      decimal.RequireFromString("1"),
		Status:      domain.StatusReceivedNotConfirmed,
		Error:       domain.ErrNone,
		BlockNum:    blockNum,
	}
	err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := st.CreateOperationTx(ctx, tx, op)
		return err
	})
	return op, err
}

func TestTickSkipsUnreachedBlocks(t *testing.T) {
	st := newTestStore(t)
	chain := memchain.New(time.Millisecond)
	adapter := memchain.NewAdapter(chain)
	ctx := context.Background()

	height, err := adapter.GetCurrentBlockNum(ctx)
	if err != nil {
		t.Fatalf("GetCurrentBlockNum() error = %v", err)
	}

	op, err := createReceivedOp(ctx, st, height+10) // far beyond current tip
	if err != nil {
		t.Fatalf("createReceivedOp() error = %v", err)
	}

	var notified []*domain.Operation
	c := New(adapter, st, func(_ context.Context, o *domain.Operation) { notified = append(notified, o) }, time.Second, 3, quietLogger())

	if err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(notified) != 0 {
		t.Errorf("notified = %v, want none while the chain hasn't reached the op's block", notified)
	}

	got, err := st.GetByID(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Confirmations != 0 {
		t.Errorf("Confirmations = %d, want 0", got.Confirmations)
	}
}

func TestTickPromotesOnceThresholdReached(t *testing.T) {
	st := newTestStore(t)
	chain := memchain.New(time.Millisecond)
	adapter := memchain.NewAdapter(chain)
	ctx := context.Background()

	op, err := createReceivedOp(ctx, st, 0) // genesis block: already far behind any new tip
	if err != nil {
		t.Fatalf("createReceivedOp() error = %v", err)
	}

	// Advance the chain past the required confirmation depth.
	chain.RegisterAccount("a")
	chain.RegisterAccount("b")
	for i := 0; i < 5; i++ {
		chain.PushTransfer("a", "b", "FINTEHTEST.ETH", decimal.RequireFromString("1"), nil)
	}

	var notified []*domain.Operation
	c := New(adapter, st, func(_ context.Context, o *domain.Operation) { notified = append(notified, o) }, time.Second, 3, quietLogger())

	if err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	got, err := st.GetByID(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.StatusReceivedAndConfirmed {
		t.Errorf("Status = %s, want RECEIVED_AND_CONFIRMED", got.Status)
	}
	if len(notified) != 1 {
		t.Fatalf("notified count = %d, want 1", len(notified))
	}
	if notified[0].ID != op.ID {
		t.Errorf("notified op id = %d, want %d", notified[0].ID, op.ID)
	}
}
