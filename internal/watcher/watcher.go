// Package watcher implements the single-writer ingestion loop that reads new
// chain operations past the stored cursor, validates them, and persists them
// atomically.
package watcher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fincubator/bitshares-gateway/internal/chainadapter"
	"github.com/fincubator/bitshares-gateway/internal/domain"
	"github.com/fincubator/bitshares-gateway/internal/store"
	"github.com/fincubator/bitshares-gateway/internal/validator"
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// NotifyFunc is called with every Operation row the Watcher creates or
// updates, after the transaction that persisted it commits — the Watcher's
// half of the notify_booker task.
type NotifyFunc func(ctx context.Context, op *domain.Operation)

// Watcher is the sole writer of Operation rows created from chain events.
type Watcher struct {
	account   string
	adapter   chainadapter.Adapter
	store     *store.Store
	validator *validator.Validator
	notify    NotifyFunc
	log       *logging.Logger
}

// New builds a Watcher for account.
func New(account string, adapter chainadapter.Adapter, st *store.Store, v *validator.Validator, notify NotifyFunc, log *logging.Logger) *Watcher {
	return &Watcher{account: account, adapter: adapter, store: st, validator: v, notify: notify, log: log.Component("watcher")}
}

// Synchronize ensures the wallet row exists, seeding cursors from the chain
// on first run so history prior to this run is never processed.
func (w *Watcher) Synchronize(ctx context.Context) (*domain.GatewayWallet, error) {
	lastOp, err := w.adapter.GetLastOpNum(ctx, w.account)
	if err != nil {
		return nil, fmt.Errorf("watcher: get_last_op_num: %w", err)
	}
	lastBlock, err := w.adapter.GetCurrentBlockNum(ctx)
	if err != nil {
		return nil, fmt.Errorf("watcher: get_current_block_num: %w", err)
	}

	wallet, created, err := w.store.EnsureWallet(ctx, w.account, lastOp, lastBlock)
	if err != nil {
		return nil, fmt.Errorf("watcher: ensure wallet: %w", err)
	}
	if created {
		w.log.Info("gateway wallet created, skipping history prior to first run", "account", w.account, "last_operation", lastOp, "last_parsed_block", lastBlock)
	} else {
		w.log.Info("gateway wallet resumed", "account", w.account, "last_operation", wallet.LastOperation)
	}
	return wallet, nil
}

// Run synchronizes, then tails chain history and applies each observed
// operation until ctx is cancelled. It is the
// watch_account_history task.
func (w *Watcher) Run(ctx context.Context) error {
	wallet, err := w.Synchronize(ctx)
	if err != nil {
		return err
	}

	for op := range w.adapter.TailHistory(ctx, w.account, wallet.LastOperation) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.apply(ctx, op); err != nil {
			return fmt.Errorf("watcher: apply op %s: %w", op.ID, err)
		}
	}
	return ctx.Err()
}

// apply validates one raw operation and persists its effect inside a single
// SERIALIZABLE transaction that also advances the cursor.
func (w *Watcher) apply(ctx context.Context, op chainadapter.RawOperation) error {
	dto, err := w.validator.Validate(ctx, op)
	if err != nil {
		return err
	}

	var notified *domain.Operation

	txErr := w.store.RunInTx(ctx, func(tx *sql.Tx) error {
		notified = nil

		if dto == nil {
			return w.store.AdvanceCursorTx(ctx, tx, w.account, op.SeqNum)
		}

		switch dto.OrderType {
		case domain.OrderTypeWithdrawal:
			if _, err := w.store.CreateOperationTx(ctx, tx, dto); err != nil {
				return fmt.Errorf("insert withdrawal leg: %w", err)
			}
			notified = dto

		case domain.OrderTypeDeposit:
			if dto.TxHash == nil {
				return fmt.Errorf("watcher: deposit leg %s resolved without tx_hash", op.ID)
			}
			row, err := w.store.GetByTxHashTx(ctx, tx, dto.Asset, *dto.TxHash)
			if err != nil {
				return fmt.Errorf("lookup planned row by tx_hash: %w", err)
			}
			if row == nil {
				// No matching planned WAIT row — spurious transfer, ignore.
				return w.store.AdvanceCursorTx(ctx, tx, w.account, op.SeqNum)
			}
			if row.OpID != nil {
				return fmt.Errorf("watcher: row %d already matched to op_id %d", row.ID, *row.OpID)
			}
			if row.BlockNum != dto.BlockNum {
				return fmt.Errorf("watcher: row %d block_num %d does not match observed %d", row.ID, row.BlockNum, dto.BlockNum)
			}
			if err := w.store.UpdateMatchedDepositTx(ctx, tx, row.ID, *dto.OpID, dto.Status, dto.Error, dto.Memo, txCreatedAtNow()); err != nil {
				return fmt.Errorf("update matched deposit: %w", err)
			}
			row.OpID, row.Status, row.Error, row.Memo, row.Confirmations = dto.OpID, dto.Status, dto.Error, dto.Memo, 0
			notified = row

		default:
			return fmt.Errorf("watcher: unexpected order_type %q", dto.OrderType)
		}

		return w.store.AdvanceCursorTx(ctx, tx, w.account, op.SeqNum)
	})
	if txErr != nil {
		return txErr
	}

	if notified != nil && w.notify != nil {
		w.notify(ctx, notified)
	}
	return nil
}

// ErrUnreachable aliases chainadapter.ErrNodeUnreachable, the node-outage
// cause an error from Run can wrap.
var ErrUnreachable = chainadapter.ErrNodeUnreachable

func isUnreachable(err error) bool { return errors.Is(err, chainadapter.ErrNodeUnreachable) }

func txCreatedAtNow() time.Time { return time.Now().UTC() }
