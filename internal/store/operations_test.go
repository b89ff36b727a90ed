package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fincubator/bitshares-gateway/internal/domain"
)

func sampleOperation() *domain.Operation {
	return &domain.Operation{
		OrderType:   domain.OrderTypeWithdrawal,
		Asset:       "FINTEHTEST.ETH",
		FromAccount: "alice",
		ToAccount:   "fincubator-gateway",
		Amount:      decimal.RequireFromString("1.5"),
		Status:      domain.StatusReceivedNotConfirmed,
		Error:       domain.ErrNone,
	}
}

func TestCreateAndGetOperation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	op := sampleOperation()
	if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := st.CreateOperationTx(ctx, tx, op)
		return err
	}); err != nil {
		t.Fatalf("CreateOperationTx() error = %v", err)
	}
	if op.ID == 0 {
		t.Fatalf("CreateOperationTx() did not assign an id")
	}

	got, err := st.GetByID(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Amount.Equal(op.Amount) {
		t.Errorf("GetByID() amount = %s, want %s", got.Amount, op.Amount)
	}
	if got.FromAccount != op.FromAccount || got.ToAccount != op.ToAccount {
		t.Errorf("GetByID() accounts = %s/%s, want %s/%s", got.FromAccount, got.ToAccount, op.FromAccount, op.ToAccount)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.GetByID(context.Background(), 9999); err != ErrOperationNotFound {
		t.Errorf("GetByID() error = %v, want ErrOperationNotFound", err)
	}
}

func TestGetByOrderID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	orderID := uuid.New()
	op := sampleOperation()
	op.OrderID = &orderID
	if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := st.CreateOperationTx(ctx, tx, op)
		return err
	}); err != nil {
		t.Fatalf("CreateOperationTx() error = %v", err)
	}

	got, err := st.GetByOrderID(ctx, orderID)
	if err != nil {
		t.Fatalf("GetByOrderID() error = %v", err)
	}
	if got.ID != op.ID {
		t.Errorf("GetByOrderID() id = %d, want %d", got.ID, op.ID)
	}
}

func TestGetByTxHashTx(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	hash := "deadbeef"
	op := sampleOperation()
	op.TxHash = &hash
	if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := st.CreateOperationTx(ctx, tx, op)
		return err
	}); err != nil {
		t.Fatalf("CreateOperationTx() error = %v", err)
	}

	var got *domain.Operation
	if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		var err error
		got, err = st.GetByTxHashTx(ctx, tx, op.Asset, hash)
		return err
	}); err != nil {
		t.Fatalf("GetByTxHashTx() error = %v", err)
	}
	if got == nil || got.ID != op.ID {
		t.Errorf("GetByTxHashTx() = %+v, want id %d", got, op.ID)
	}

	var miss *domain.Operation
	if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		var err error
		miss, err = st.GetByTxHashTx(ctx, tx, op.Asset, "nonexistent")
		return err
	}); err != nil {
		t.Fatalf("GetByTxHashTx() error = %v", err)
	}
	if miss != nil {
		t.Errorf("GetByTxHashTx() unmatched = %+v, want nil", miss)
	}
}

func TestListByStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	waiting := sampleOperation()
	waiting.Status = domain.StatusWait
	received := sampleOperation()
	received.Status = domain.StatusReceivedNotConfirmed

	for _, op := range []*domain.Operation{waiting, received} {
		if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
			_, err := st.CreateOperationTx(ctx, tx, op)
			return err
		}); err != nil {
			t.Fatalf("CreateOperationTx() error = %v", err)
		}
	}

	rows, err := st.ListByStatus(ctx, domain.StatusReceivedNotConfirmed)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != received.ID {
		t.Errorf("ListByStatus() = %v, want only id %d", rows, received.ID)
	}
}

func TestListBroadcastable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	orderID := uuid.New()
	planned := sampleOperation()
	planned.Status = domain.StatusWait
	planned.OrderID = &orderID

	notPlanned := sampleOperation()
	notPlanned.Status = domain.StatusWait // no order_id: not yet broadcastable

	for _, op := range []*domain.Operation{planned, notPlanned} {
		if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
			_, err := st.CreateOperationTx(ctx, tx, op)
			return err
		}); err != nil {
			t.Fatalf("CreateOperationTx() error = %v", err)
		}
	}

	rows, err := st.ListBroadcastable(ctx)
	if err != nil {
		t.Fatalf("ListBroadcastable() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != planned.ID {
		t.Errorf("ListBroadcastable() = %v, want only id %d", rows, planned.ID)
	}
}

func TestUpdateConfirmation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	op := sampleOperation()
	if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := st.CreateOperationTx(ctx, tx, op)
		return err
	}); err != nil {
		t.Fatalf("CreateOperationTx() error = %v", err)
	}

	if err := st.UpdateConfirmation(ctx, op.ID, 3, domain.StatusReceivedAndConfirmed); err != nil {
		t.Fatalf("UpdateConfirmation() error = %v", err)
	}

	got, err := st.GetByID(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Confirmations != 3 || got.Status != domain.StatusReceivedAndConfirmed {
		t.Errorf("GetByID() = %+v, want confirmations=3 status=RECEIVED_AND_CONFIRMED", got)
	}
}

func TestMarkBroadcast(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	op := sampleOperation()
	op.Status = domain.StatusWait
	if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := st.CreateOperationTx(ctx, tx, op)
		return err
	}); err != nil {
		t.Fatalf("CreateOperationTx() error = %v", err)
	}

	exp := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
	if err := st.MarkBroadcast(ctx, op.ID, "txhash123", 42, exp); err != nil {
		t.Fatalf("MarkBroadcast() error = %v", err)
	}

	got, err := st.GetByID(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.StatusReceivedNotConfirmed {
		t.Errorf("GetByID() status = %s, want RECEIVED_NOT_CONFIRMED", got.Status)
	}
	if got.TxHash == nil || *got.TxHash != "txhash123" {
		t.Errorf("GetByID() tx_hash = %v, want txhash123", got.TxHash)
	}
	if got.BlockNum != 42 {
		t.Errorf("GetByID() block_num = %d, want 42", got.BlockNum)
	}
}

func TestAdvanceCursorTx(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, _, err := st.EnsureWallet(ctx, "acct", 0, 0); err != nil {
		t.Fatalf("EnsureWallet() error = %v", err)
	}

	if err := st.RunInTx(ctx, func(tx *sql.Tx) error {
		return st.AdvanceCursorTx(ctx, tx, "acct", 7)
	}); err != nil {
		t.Fatalf("AdvanceCursorTx() error = %v", err)
	}

	w, err := st.GetWallet(ctx, "acct")
	if err != nil {
		t.Fatalf("GetWallet() error = %v", err)
	}
	if w.LastOperation != 7 {
		t.Errorf("LastOperation = %d, want 7", w.LastOperation)
	}
}
