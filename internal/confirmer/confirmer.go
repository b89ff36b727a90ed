// Package confirmer periodically advances confirmations on persisted
// operations and promotes them once they clear the confirmation threshold.
// It is the watch_unconfirmed_operations task.
package confirmer

import (
	"context"
	"time"

	"github.com/fincubator/bitshares-gateway/internal/chainadapter"
	"github.com/fincubator/bitshares-gateway/internal/domain"
	"github.com/fincubator/bitshares-gateway/internal/store"
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// NotifyFunc is invoked after any Operation's confirmations/status change is
// persisted, carrying the updated leg to push to the booker.
type NotifyFunc func(ctx context.Context, op *domain.Operation)

// Confirmer advances confirmations on RECEIVED_NOT_CONFIRMED rows.
type Confirmer struct {
	adapter              chainadapter.Adapter
	store                *store.Store
	notify               NotifyFunc
	period               time.Duration
	requiredConfirmation int64
	log                  *logging.Logger
}

// New builds a Confirmer. period is normally the chain's block time;
// requiredConfirmations is REQUIRED_CONFIRMATIONS.
func New(adapter chainadapter.Adapter, st *store.Store, notify NotifyFunc, period time.Duration, requiredConfirmations int64, log *logging.Logger) *Confirmer {
	return &Confirmer{
		adapter:              adapter,
		store:                st,
		notify:               notify,
		period:               period,
		requiredConfirmation: requiredConfirmations,
		log:                  log.Component("confirmer"),
	}
}

// Run ticks every period until ctx is cancelled, calling Tick each time.
func (c *Confirmer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				c.log.Error("confirmation sweep failed", "err", err)
			}
		}
	}
}

// Tick runs one confirmation sweep over every RECEIVED_NOT_CONFIRMED row.
func (c *Confirmer) Tick(ctx context.Context) error {
	rows, err := c.store.ListByStatus(ctx, domain.StatusReceivedNotConfirmed)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	height, err := c.adapter.GetCurrentBlockNum(ctx)
	if err != nil {
		return err
	}

	for _, op := range rows {
		if height <= op.BlockNum {
			continue // chain tip hasn't caught up to this operation's block yet
		}

		confirmations := height - op.BlockNum
		if confirmations == op.Confirmations {
			continue
		}

		status := op.Status
		if confirmations >= c.requiredConfirmation {
			status = domain.StatusReceivedAndConfirmed
		}

		if err := c.store.UpdateConfirmation(ctx, op.ID, confirmations, status); err != nil {
			c.log.Error("persist confirmation failed", "op_id", op.ID, "err", err)
			continue
		}

		op.Confirmations, op.Status = confirmations, status
		if c.notify != nil {
			c.notify(ctx, op)
		}
	}
	return nil
}
