package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fincubator/bitshares-gateway/internal/domain"
)

// ErrWalletNotFound is returned when no GatewayWallet row exists.
var ErrWalletNotFound = errors.New("store: gateway wallet not found")

// EnsureWallet ensures a GatewayWallet row exists for account, creating it
// atomically with the given initial cursor values if it doesn't — this is
// the Watcher's "synchronize" step. created reports whether
// the row was just created (the caller must then skip all prior history).
func (s *Store) EnsureWallet(ctx context.Context, account string, initLastOp, initLastBlock int64) (wallet *domain.GatewayWallet, created bool, err error) {
	err = s.WithSerializableTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT account_name, last_operation, last_parsed_block FROM gateway_wallets WHERE account_name = %s", s.ph(1)),
			account)

		var w domain.GatewayWallet
		scanErr := row.Scan(&w.AccountName, &w.LastOperation, &w.LastParsedBlock)
		if scanErr == nil {
			wallet = &w
			created = false
			return nil
		}
		if !errors.Is(scanErr, sql.ErrNoRows) {
			return scanErr
		}

		_, insertErr := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO gateway_wallets (account_name, last_operation, last_parsed_block) VALUES (%s, %s, %s)",
				s.ph(1), s.ph(2), s.ph(3)),
			account, initLastOp, initLastBlock)
		if insertErr != nil {
			return insertErr
		}

		wallet = &domain.GatewayWallet{AccountName: account, LastOperation: initLastOp, LastParsedBlock: initLastBlock}
		created = true
		return nil
	})
	return wallet, created, err
}

// GetWallet returns the GatewayWallet for account, or ErrWalletNotFound.
func (s *Store) GetWallet(ctx context.Context, account string) (*domain.GatewayWallet, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT account_name, last_operation, last_parsed_block FROM gateway_wallets WHERE account_name = %s", s.ph(1)),
		account)

	var w domain.GatewayWallet
	if err := row.Scan(&w.AccountName, &w.LastOperation, &w.LastParsedBlock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// advanceLastOperation sets last_operation = seq within tx, enforcing the
// monotonic-non-decreasing invariant.
func (s *Store) advanceLastOperation(ctx context.Context, tx *sql.Tx, account string, seq int64) error {
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE gateway_wallets SET last_operation = %s WHERE account_name = %s AND last_operation < %s",
			s.ph(1), s.ph(2), s.ph(3)),
		seq, account, seq)
	return err
}

// AdvanceLastParsedBlock sets last_parsed_block = height if height is higher.
func (s *Store) AdvanceLastParsedBlock(ctx context.Context, account string, height int64) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE gateway_wallets SET last_parsed_block = %s WHERE account_name = %s AND last_parsed_block < %s",
			s.ph(1), s.ph(2), s.ph(3)),
		height, account, height)
	return err
}
