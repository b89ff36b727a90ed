package bookerrpc

// TxError mirrors domain.OperationError on the wire. Kept as a distinct
// wire type, rather than reusing domain.OperationError directly, because
// the wire vocabulary is a versioned external contract and the domain enum
// is free to evolve independently.
type TxError string

const (
	TxErrorNone           TxError = "NO_ERROR"
	TxErrorUnknown        TxError = "UNKNOWN_ERROR"
	TxErrorBadAsset       TxError = "BAD_ASSET"
	TxErrorLessMin        TxError = "LESS_MIN"
	TxErrorGreaterMax     TxError = "GREATER_MAX"
	TxErrorNoMemo         TxError = "NO_MEMO"
	TxErrorFloodMemo      TxError = "FLOOD_MEMO"
	TxErrorOpCollision    TxError = "OP_COLLISION"
	TxErrorTxHashNotFound TxError = "TX_HASH_NOT_FOUND"
)

// OrderType mirrors domain.OrderType on the wire.
type OrderType string

const (
	OrderTypeDeposit    OrderType = "DEPOSIT"
	OrderTypeWithdrawal OrderType = "WITHDRAWAL"
)

// Transaction is one leg of an Order.
type Transaction struct {
	TxID               string  `json:"tx_id"`
	Coin               string  `json:"coin"`
	TxHash             *string `json:"tx_hash,omitempty"`
	TxFrom             *string `json:"tx_from,omitempty"`
	TxTo               *string `json:"tx_to,omitempty"`
	TxAmount           *string `json:"tx_amount,omitempty"` // decimal, wire-encoded as string
	TxCreatedAt        *int64  `json:"tx_created_at,omitempty"`
	TxError            TxError `json:"tx_error"`
	TxConfirmations    int64   `json:"tx_confirmations"`
	TxMaxConfirmations int64   `json:"tx_max_confirmations"`
	MemoTo             *string `json:"memo_to,omitempty"`
}

// Order pairs a deposit leg and a withdrawal leg under one booker order id.
type Order struct {
	OrderID   string      `json:"order_id"`
	OrderType OrderType   `json:"order_type"`
	InTx      Transaction `json:"in_tx"`
	OutTx     Transaction `json:"out_tx"`
}

// ValidateAddressParams / Result — GatewayBookerOrder.validate_address.
type ValidateAddressParams struct {
	TxTo        string `json:"tx_to"`
	CoroutineID string `json:"_coroutine_id"`
}

type ValidateAddressResult struct {
	Valid bool `json:"valid"`
}

// GetDepositAddressParams / Result — GatewayBookerOrder.get_deposit_address.
type GetDepositAddressParams struct {
	OutTxTo     *string `json:"out_tx_to,omitempty"`
	CoroutineID string  `json:"_coroutine_id"`
}

type GetDepositAddressResult struct {
	TxTo string `json:"tx_to"`
}

// NewOrderParams — GatewayBookerOrder.new_in_order / new_out_order.
type NewOrderParams struct {
	Order       Order  `json:"order"`
	CoroutineID string `json:"_coroutine_id"`
}

// NewInOrderRequestParams — BookerGatewayOrder.new_in_order_request.
type NewInOrderRequestParams struct {
	Request     DepositRequest `json:"req"`
	CoroutineID string         `json:"_coroutine_id"`
}

// DepositRequest is the booker's request for a fresh deposit address.
type DepositRequest struct {
	OrderID string `json:"order_id"`
	Coin    string `json:"coin"`
}

// TxOrderParams — the four BookerGatewayOrder.{new,update}_{in,out}_tx_order
// methods all share this shape: a single transaction to ingest or update.
type TxOrderParams struct {
	Tx          Transaction `json:"tx"`
	CoroutineID string      `json:"_coroutine_id"`
}
