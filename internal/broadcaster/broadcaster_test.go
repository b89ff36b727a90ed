package broadcaster

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fincubator/bitshares-gateway/internal/chainadapter/memchain"
	"github.com/fincubator/bitshares-gateway/internal/domain"
	"github.com/fincubator/bitshares-gateway/internal/store"
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

const gatewayAcct = "fincubator-gateway"

func quietLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "error", Output: io.Discard})
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "gateway-broadcaster-test-*")
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

func TestPlanOutboundInsertsWaitRow(t *testing.T) {
	st := newTestStore(t)
	chain := memchain.New(time.Millisecond)
	adapter := memchain.NewAdapter(chain)
	b := New(gatewayAcct, adapter, st, quietLogger())

	orderID := uuid.New()
	op := &domain.Operation{
		OrderID:   &orderID,
		OrderType: domain.OrderTypeDeposit,
		Asset:     "FINTEHTEST.ETH",
		ToAccount: "alice",
		Amount:    decimal.RequireFromString("3"),
	}

	if err := b.PlanOutbound(context.Background(), op); err != nil {
		t.Fatalf("PlanOutbound() error = %v", err)
	}
	if op.Status != domain.StatusWait {
		t.Errorf("Status = %s, want WAIT", op.Status)
	}
	if op.FromAccount != gatewayAcct {
		t.Errorf("FromAccount = %s, want %s", op.FromAccount, gatewayAcct)
	}

	got, err := st.GetByID(context.Background(), op.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.StatusWait {
		t.Errorf("persisted Status = %s, want WAIT", got.Status)
	}
}

func TestTickBroadcastsPlannedRows(t *testing.T) {
	st := newTestStore(t)
	chain := memchain.New(time.Millisecond)
	chain.RegisterAccount(gatewayAcct)
	chain.RegisterAccount("alice")
	adapter := memchain.NewAdapter(chain)
	b := New(gatewayAcct, adapter, st, quietLogger())
	ctx := context.Background()

	orderID := uuid.New()
	op := &domain.Operation{
		OrderID:   &orderID,
		OrderType: domain.OrderTypeDeposit,
		Asset:     "FINTEHTEST.ETH",
		ToAccount: "alice",
		Amount:    decimal.RequireFromString("3"),
	}
	if err := b.PlanOutbound(ctx, op); err != nil {
		t.Fatalf("PlanOutbound() error = %v", err)
	}

	if err := b.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	got, err := st.GetByID(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.TxHash == nil {
		t.Fatalf("TxHash = nil, want set after broadcast")
	}
	if got.Status != domain.StatusReceivedNotConfirmed {
		t.Errorf("Status = %s, want RECEIVED_NOT_CONFIRMED", got.Status)
	}

	// A second sweep must not pick the row up again: ListBroadcastable
	// requires tx_hash IS NULL.
	rows, err := st.ListBroadcastable(ctx)
	if err != nil {
		t.Fatalf("ListBroadcastable() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("ListBroadcastable() after broadcast = %v, want none", rows)
	}
}
