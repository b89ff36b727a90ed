package bookerrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fincubator/bitshares-gateway/internal/broadcaster"
	"github.com/fincubator/bitshares-gateway/internal/chainadapter"
	"github.com/fincubator/bitshares-gateway/internal/domain"
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// BookerGatewayOrderService names the service path the gateway registers
// these methods under ("BookerGatewayOrder.<method>").
const BookerGatewayOrderService = "BookerGatewayOrder"

// BookerGatewayOrderServer dispatches booker-initiated calls. new_out_tx_order is the entry point for S5: it plans
// a WAIT row the Broadcaster will pick up on its next sweep. The other four
// methods acknowledge the booker's notice without mutating the Store — the
// Watcher remains the sole writer of rows derived from chain events, so a booker-side "new/update in tx order" notice is informational.
type BookerGatewayOrderServer struct {
	broadcaster *broadcaster.Broadcaster
	adapter     chainadapter.Adapter
	log         *logging.Logger
}

// NewBookerGatewayOrderServer builds the server-side handler set.
func NewBookerGatewayOrderServer(b *broadcaster.Broadcaster, adapter chainadapter.Adapter, log *logging.Logger) *BookerGatewayOrderServer {
	return &BookerGatewayOrderServer{broadcaster: b, adapter: adapter, log: log.Component("bookerapi")}
}

// Register binds all five BookerGatewayOrder methods on d.
func (s *BookerGatewayOrderServer) Register(d *Dispatcher) {
	d.Register(BookerGatewayOrderService, "new_in_order_request", s.handleNewInOrderRequest)
	d.Register(BookerGatewayOrderService, "new_in_tx_order", s.handleNewInTxOrder)
	d.Register(BookerGatewayOrderService, "update_in_tx_order", s.handleUpdateInTxOrder)
	d.Register(BookerGatewayOrderService, "new_out_tx_order", s.handleNewOutTxOrder)
	d.Register(BookerGatewayOrderService, "update_out_tx_order", s.handleUpdateOutTxOrder)
}

func (s *BookerGatewayOrderServer) handleNewInOrderRequest(ctx context.Context, raw json.RawMessage) (any, error) {
	var params NewInOrderRequestParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("bookerapi: decode new_in_order_request: %w", err)
	}
	valid, err := s.adapter.ValidateAddress(ctx, params.Request.OrderID)
	if err != nil {
		s.log.Warn("validate_address failed for deposit request", "order_id", params.Request.OrderID, "err", err)
	}
	s.log.Info("deposit request acknowledged", "order_id", params.Request.OrderID, "coin", params.Request.Coin, "address_checked", valid)
	return nil, nil
}

func (s *BookerGatewayOrderServer) handleNewInTxOrder(_ context.Context, raw json.RawMessage) (any, error) {
	var params TxOrderParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("bookerapi: decode new_in_tx_order: %w", err)
	}
	s.log.Debug("booker acknowledged inbound tx order", "tx_id", params.Tx.TxID)
	return nil, nil
}

func (s *BookerGatewayOrderServer) handleUpdateInTxOrder(_ context.Context, raw json.RawMessage) (any, error) {
	var params TxOrderParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("bookerapi: decode update_in_tx_order: %w", err)
	}
	s.log.Debug("booker updated inbound tx order", "tx_id", params.Tx.TxID)
	return nil, nil
}

// handleNewOutTxOrder handles the booker requesting a new outbound transfer;
// the gateway plans a WAIT row for the Broadcaster to pick up.
func (s *BookerGatewayOrderServer) handleNewOutTxOrder(ctx context.Context, raw json.RawMessage) (any, error) {
	var params TxOrderParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("bookerapi: decode new_out_tx_order: %w", err)
	}

	orderID, err := uuid.Parse(params.Tx.TxID)
	if err != nil {
		return nil, fmt.Errorf("bookerapi: tx_id %q is not a uuid: %w", params.Tx.TxID, err)
	}
	if params.Tx.TxTo == nil || params.Tx.TxAmount == nil {
		return nil, DecodeRemoteError(ErrNameInvalidMemoMask, map[string]any{"reason": "missing tx_to or tx_amount"})
	}
	amount, err := decimal.NewFromString(*params.Tx.TxAmount)
	if err != nil {
		return nil, fmt.Errorf("bookerapi: bad tx_amount %q: %w", *params.Tx.TxAmount, err)
	}

	op := &domain.Operation{
		OrderID:   &orderID,
		OrderType: domain.OrderTypeDeposit,
		Asset:     params.Tx.Coin,
		ToAccount: *params.Tx.TxTo,
		Amount:    amount,
	}
	if params.Tx.MemoTo != nil {
		op.Memo = params.Tx.MemoTo
	}

	if err := s.broadcaster.PlanOutbound(ctx, op); err != nil {
		return nil, fmt.Errorf("bookerapi: plan outbound: %w", err)
	}
	return nil, nil
}

func (s *BookerGatewayOrderServer) handleUpdateOutTxOrder(_ context.Context, raw json.RawMessage) (any, error) {
	var params TxOrderParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("bookerapi: decode update_out_tx_order: %w", err)
	}
	s.log.Debug("booker updated outbound tx order", "tx_id", params.Tx.TxID)
	return nil, nil
}
