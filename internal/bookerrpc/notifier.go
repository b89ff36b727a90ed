package bookerrpc

import (
	"context"
	"time"

	"github.com/fincubator/bitshares-gateway/internal/domain"
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// Notifier pushes Operation changes to the booker via GatewayBookerOrder,
// the gateway side of the notify_booker task.
//
// DEPOSIT operations (gateway -> user) are reported as the
// booker's outbound leg via new_out_order; WITHDRAWAL operations (user ->
// gateway) are reported as its inbound leg via new_in_order. GatewayBookerOrder
// has no separate "update" verb, so a later confirmation
// change resends the same method with the refreshed Transaction — booker
// notification is idempotent from the gateway's perspective.
type Notifier struct {
	client                *GatewayBookerOrder
	requiredConfirmations int64
	log                   *logging.Logger
}

// NewNotifier builds a Notifier.
func NewNotifier(client *GatewayBookerOrder, requiredConfirmations int64, log *logging.Logger) *Notifier {
	return &Notifier{client: client, requiredConfirmations: requiredConfirmations, log: log.Component("notifier")}
}

// Notify converts op into an Order and pushes it with a 5s per-call timeout,
// logging (not failing) on error — the persisted change stands regardless,
// and the push will be retried on the next change.
func (n *Notifier) Notify(ctx context.Context, op *domain.Operation) {
	order := n.toOrder(op)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	switch op.OrderType {
	case domain.OrderTypeDeposit:
		err = n.client.NewOutOrder(ctx, order)
	case domain.OrderTypeWithdrawal:
		err = n.client.NewInOrder(ctx, order)
	default:
		return
	}
	if err != nil {
		n.log.Warn("booker push failed, will retry on next change", "op_id", op.ID, "order_type", op.OrderType, "err", err)
	}
}

func (n *Notifier) toOrder(op *domain.Operation) Order {
	tx := n.toTransaction(op)
	order := Order{OrderType: OrderType(op.OrderType)}
	if op.OrderID != nil {
		order.OrderID = op.OrderID.String()
	}
	switch op.OrderType {
	case domain.OrderTypeDeposit:
		order.OutTx = tx
	case domain.OrderTypeWithdrawal:
		order.InTx = tx
	}
	return order
}

func (n *Notifier) toTransaction(op *domain.Operation) Transaction {
	tx := Transaction{
		Coin:               op.Asset,
		TxFrom:             &op.FromAccount,
		TxTo:               &op.ToAccount,
		TxError:            TxError(op.Error),
		TxConfirmations:    op.Confirmations,
		TxMaxConfirmations: n.requiredConfirmations,
		MemoTo:             op.Memo,
	}
	if op.TxHash != nil {
		tx.TxID, tx.TxHash = *op.TxHash, op.TxHash
	}
	amount := op.Amount.String()
	tx.TxAmount = &amount
	if op.TxCreatedAt != nil {
		unix := op.TxCreatedAt.Unix()
		tx.TxCreatedAt = &unix
	}
	return tx
}
