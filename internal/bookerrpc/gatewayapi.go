package bookerrpc

import (
	"context"

	"github.com/google/uuid"
)

// GatewayBookerOrderService names the service path the booker registers
// these methods under ("GatewayBookerOrder.<method>").
const GatewayBookerOrderService = "GatewayBookerOrder"

// GatewayBookerOrder is the gateway's client stub for the API the booker
// exposes to it. Every call blocks for the matching response or the
// per-call timeout baked into ctx by the caller (default 5s).
type GatewayBookerOrder struct {
	client *Client
}

// NewGatewayBookerOrder builds a client stub over an already-connected
// Client.
func NewGatewayBookerOrder(client *Client) *GatewayBookerOrder {
	return &GatewayBookerOrder{client: client}
}

func (g *GatewayBookerOrder) coroutineID() string { return uuid.New().String() }

// ValidateAddress asks the booker whether txTo is a valid withdrawal
// destination.
func (g *GatewayBookerOrder) ValidateAddress(ctx context.Context, txTo string) (bool, error) {
	var result ValidateAddressResult
	err := g.client.Call(ctx, GatewayBookerOrderService+".validate_address",
		ValidateAddressParams{TxTo: txTo, CoroutineID: g.coroutineID()}, &result)
	return result.Valid, err
}

// GetDepositAddress requests a fresh deposit address from the booker,
// optionally associated with a planned outbound destination.
func (g *GatewayBookerOrder) GetDepositAddress(ctx context.Context, outTxTo *string) (string, error) {
	var result GetDepositAddressResult
	err := g.client.Call(ctx, GatewayBookerOrderService+".get_deposit_address",
		GetDepositAddressParams{OutTxTo: outTxTo, CoroutineID: g.coroutineID()}, &result)
	return result.TxTo, err
}

// NewInOrder reports a newly observed/updated inbound leg to the booker.
func (g *GatewayBookerOrder) NewInOrder(ctx context.Context, order Order) error {
	return g.client.Call(ctx, GatewayBookerOrderService+".new_in_order",
		NewOrderParams{Order: order, CoroutineID: g.coroutineID()}, nil)
}

// NewOutOrder reports a newly observed/updated outbound leg to the booker.
func (g *GatewayBookerOrder) NewOutOrder(ctx context.Context, order Order) error {
	return g.client.Call(ctx, GatewayBookerOrderService+".new_out_order",
		NewOrderParams{Order: order, CoroutineID: g.coroutineID()}, nil)
}
