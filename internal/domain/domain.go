// Package domain holds the persisted entities and enums shared by every
// gateway component: the store, the validator, the watcher, the confirmer,
// the broadcaster and the booker RPC layer.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderType classifies the direction of an Operation.
type OrderType string

const (
	OrderTypeTrash      OrderType = "TRASH"
	OrderTypeDeposit    OrderType = "DEPOSIT"
	OrderTypeWithdrawal OrderType = "WITHDRAWAL"
)

// OperationStatus is the lifecycle stage of an Operation.
type OperationStatus string

const (
	StatusError                OperationStatus = "ERROR"
	StatusWait                 OperationStatus = "WAIT"
	StatusReceivedNotConfirmed OperationStatus = "RECEIVED_NOT_CONFIRMED"
	StatusReceivedAndConfirmed OperationStatus = "RECEIVED_AND_CONFIRMED"
)

// OperationError is the business/indexing error recorded on an Operation.
type OperationError string

const (
	ErrNone           OperationError = "NO_ERROR"
	ErrUnknown        OperationError = "UNKNOWN_ERROR"
	ErrBadAsset       OperationError = "BAD_ASSET"
	ErrLessMin        OperationError = "LESS_MIN"
	ErrGreaterMax     OperationError = "GREATER_MAX"
	ErrNoMemo         OperationError = "NO_MEMO"
	ErrFloodMemo      OperationError = "FLOOD_MEMO"
	ErrOpCollision    OperationError = "OP_COLLISION"
	ErrTxHashNotFound OperationError = "TX_HASH_NOT_FOUND"
)

// GatewayWallet is the monotonic cursor of one gateway-controlled account.
// last_operation and last_parsed_block never decrease.
type GatewayWallet struct {
	AccountName     string
	LastOperation   int64
	LastParsedBlock int64
}

// Operation is one observed or planned chain transfer — one leg of an order.
type Operation struct {
	ID int64

	OpID    *int64     // chain sequence number, unique when set
	OrderID *uuid.UUID // links to a booker order, unique when set

	OrderType   OrderType
	Asset       string
	FromAccount string
	ToAccount   string
	Amount      decimal.Decimal

	Status OperationStatus
	Error  OperationError

	Confirmations int64
	BlockNum      int64

	TxHash       *string
	Memo         *string
	TxCreatedAt  *time.Time
	TxExpiration *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminalError reports whether the operation has settled into ERROR and
// will never be retried automatically.
func (o *Operation) IsTerminalError() bool {
	return o.Status == StatusError
}

// Confirmed reports whether the operation has reached REQUIRED_CONFIRMATIONS.
func (o *Operation) Confirmed(required int64) bool {
	return o.Status == StatusReceivedAndConfirmed && o.Confirmations >= required
}
