// Package broadcaster periodically sweeps planned outbound operations and
// broadcasts them on chain. It is the broadcast_transactions
// task and the sole creator of planned WAIT rows.
package broadcaster

import (
	"context"
	"database/sql"
	"time"

	"github.com/fincubator/bitshares-gateway/internal/chainadapter"
	"github.com/fincubator/bitshares-gateway/internal/domain"
	"github.com/fincubator/bitshares-gateway/internal/store"
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// DefaultPeriod is the sweep cadence: 1 Hz.
const DefaultPeriod = time.Second

// Broadcaster assembles and submits transfers for WAIT rows that already
// carry an order_id but have not yet been broadcast.
type Broadcaster struct {
	account string
	adapter chainadapter.Adapter
	store   *store.Store
	period  time.Duration
	log     *logging.Logger
}

// New builds a Broadcaster bound to the gateway's default account.
func New(account string, adapter chainadapter.Adapter, st *store.Store, log *logging.Logger) *Broadcaster {
	return &Broadcaster{account: account, adapter: adapter, store: st, period: DefaultPeriod, log: log.Component("broadcaster")}
}

// PlanOutbound inserts a planned WAIT row for a booker-initiated outbound
// order, to be picked up by the next sweep.
// The order_id must already be set on op by the caller.
func (b *Broadcaster) PlanOutbound(ctx context.Context, op *domain.Operation) error {
	op.Status = domain.StatusWait
	op.Error = domain.ErrNone
	op.FromAccount = b.account
	return b.store.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := b.store.CreateOperationTx(ctx, tx, op)
		return err
	})
}

// Run sweeps every period until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.Tick(ctx); err != nil {
				b.log.Error("broadcast sweep failed", "err", err)
			}
		}
	}
}

// Tick broadcasts every pending WAIT row once. Failures leave the row in
// WAIT for the next sweep.
func (b *Broadcaster) Tick(ctx context.Context) error {
	rows, err := b.store.ListBroadcastable(ctx)
	if err != nil {
		return err
	}

	for _, op := range rows {
		memo := ""
		if op.Memo != nil {
			memo = *op.Memo
		}

		tx, err := b.adapter.Transfer(ctx, op.FromAccount, op.ToAccount, op.Asset, op.Amount, memo)
		if err != nil {
			b.log.Warn("transfer assembly failed, will retry", "op_id", op.ID, "err", err)
			continue
		}

		result, err := b.adapter.Broadcast(ctx, tx)
		if err != nil {
			b.log.Warn("broadcast failed, will retry", "op_id", op.ID, "err", err)
			continue
		}

		if err := b.store.MarkBroadcast(ctx, op.ID, result.ID, result.BlockNum, result.Expiration); err != nil {
			b.log.Error("persist broadcast result failed", "op_id", op.ID, "err", err)
			continue
		}
	}
	return nil
}
