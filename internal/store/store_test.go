package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "gateway-store-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	st, err := New(Config{Driver: DriverSQLite, Name: filepath.Join(dir, "gateway.db")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestNew(t *testing.T) {
	st := newTestStore(t)
	if st.DB() == nil {
		t.Fatalf("DB() = nil")
	}
}

func TestEnsureWalletCreatesThenResumes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	wallet, created, err := st.EnsureWallet(ctx, "gatewayacct", 5, 10)
	if err != nil {
		t.Fatalf("EnsureWallet() error = %v", err)
	}
	if !created {
		t.Fatalf("EnsureWallet() created = false, want true")
	}
	if wallet.LastOperation != 5 || wallet.LastParsedBlock != 10 {
		t.Errorf("EnsureWallet() wallet = %+v, want last_operation=5 last_parsed_block=10", wallet)
	}

	resumed, created2, err := st.EnsureWallet(ctx, "gatewayacct", 999, 999)
	if err != nil {
		t.Fatalf("EnsureWallet() second call error = %v", err)
	}
	if created2 {
		t.Errorf("EnsureWallet() created = true on second call, want false")
	}
	if resumed.LastOperation != 5 || resumed.LastParsedBlock != 10 {
		t.Errorf("EnsureWallet() resumed = %+v, want cursors unchanged at 5/10", resumed)
	}
}

func TestGetWalletNotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.GetWallet(context.Background(), "nobody"); err != ErrWalletNotFound {
		t.Errorf("GetWallet() error = %v, want ErrWalletNotFound", err)
	}
}

func TestAdvanceLastParsedBlockIsMonotonic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, _, err := st.EnsureWallet(ctx, "acct", 0, 0); err != nil {
		t.Fatalf("EnsureWallet() error = %v", err)
	}

	if err := st.AdvanceLastParsedBlock(ctx, "acct", 100); err != nil {
		t.Fatalf("AdvanceLastParsedBlock() error = %v", err)
	}
	if err := st.AdvanceLastParsedBlock(ctx, "acct", 50); err != nil {
		t.Fatalf("AdvanceLastParsedBlock() error = %v", err)
	}

	w, err := st.GetWallet(ctx, "acct")
	if err != nil {
		t.Fatalf("GetWallet() error = %v", err)
	}
	if w.LastParsedBlock != 100 {
		t.Errorf("LastParsedBlock = %d, want 100 (must not regress)", w.LastParsedBlock)
	}
}
