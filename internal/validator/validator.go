// Package validator turns a raw chain operation into a typed Operation DTO,
// carrying its status, error and resolved transaction hash.
// It is pure with respect to the Store: given the same Adapter responses it
// always derives the same DTO.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fincubator/bitshares-gateway/internal/chainadapter"
	"github.com/fincubator/bitshares-gateway/internal/domain"
)

// nativeTransferType is the only chain operation type the gateway interprets;
// anything else is skipped.
const nativeTransferType = 0

// Thresholds holds the per-direction amount bounds and the asset identity
// the Validator enforces. Populated from gateway.yml.
type Thresholds struct {
	GatewayAccount string
	Asset          string
	AssetCode      string // short code used in the memo mask, e.g. "ETH"
	MinDeposit     decimal.Decimal
	MaxDeposit     decimal.Decimal
	MinWithdrawal  decimal.Decimal
	MaxWithdrawal  decimal.Decimal
}

// Validator decodes raw chain operations into domain Operations.
type Validator struct {
	adapter chainadapter.Adapter
	limits  Thresholds
}

// New builds a Validator bound to adapter and limits.
func New(adapter chainadapter.Adapter, limits Thresholds) *Validator {
	return &Validator{adapter: adapter, limits: limits}
}

// Validate implements the gateway's validation decision procedure. A nil
// *domain.Operation with a nil error means the raw op was skipped (not a
// native transfer); an op touching neither gateway leg returns an error.
func (v *Validator) Validate(ctx context.Context, op chainadapter.RawOperation) (*domain.Operation, error) {
	if op.Type != nativeTransferType {
		return nil, nil
	}

	payload := op.Payload

	orderType, ok := v.orderType(payload)
	if !ok {
		return nil, fmt.Errorf("validator: operation %s touches neither gateway leg", op.ID)
	}

	var memo *string
	if payload.Memo != nil {
		plain, err := v.adapter.ReadMemo(ctx, payload.Memo)
		if err != nil {
			return nil, fmt.Errorf("validator: read memo for %s: %w", op.ID, err)
		}
		memo = plain
	}

	opErr := v.classify(orderType, payload, memo)

	// tx-hash-from-op runs regardless of business-validation errors — it
	// resolves identity, not legality.
	var txHash *string
	hash, hashErr := v.adapter.TxHashFromOp(ctx, op)
	switch {
	case hashErr == nil:
		txHash = &hash
	case errors.Is(hashErr, chainadapter.ErrOperationsCollision):
		opErr = firstError(opErr, domain.ErrOpCollision)
		unknown := "Unknown"
		txHash = &unknown
	case errors.Is(hashErr, chainadapter.ErrTransactionNotFound):
		opErr = firstError(opErr, domain.ErrTxHashNotFound)
	default:
		opErr = firstError(opErr, domain.ErrUnknown)
	}

	status := domain.StatusReceivedNotConfirmed
	if opErr != domain.ErrNone {
		status = domain.StatusError
	}

	dto := &domain.Operation{
		OrderType:     orderType,
		Asset:         payload.Asset,
		FromAccount:   payload.From,
		ToAccount:     payload.To,
		Amount:        payload.Amount,
		Status:        status,
		Error:         opErr,
		Confirmations: 0,
		BlockNum:      op.BlockNum,
		TxHash:        txHash,
		Memo:          memo,
	}
	seq := op.SeqNum
	dto.OpID = &seq
	return dto, nil
}

// firstError preserves first-match-wins semantics:
// business-validation errors computed earlier take priority over identity
// errors discovered while resolving tx_hash.
func firstError(existing, candidate domain.OperationError) domain.OperationError {
	if existing != domain.ErrNone {
		return existing
	}
	return candidate
}

func (v *Validator) orderType(p chainadapter.TransferPayload) (domain.OrderType, bool) {
	switch v.limits.GatewayAccount {
	case p.From:
		return domain.OrderTypeDeposit, true
	case p.To:
		return domain.OrderTypeWithdrawal, true
	default:
		return "", false
	}
}

// classify computes error, first-match wins: BAD_ASSET, then amount bounds,
// then (withdrawal-only) memo rules.
//
// Deposits are bounded against max_withdrawal rather than max_deposit; this
// is an intentional asymmetry, preserved rather than "fixed", since a
// deposit is still gateway-outbound liquidity from the wallet's perspective.
func (v *Validator) classify(orderType domain.OrderType, p chainadapter.TransferPayload, memo *string) domain.OperationError {
	if p.Asset != v.limits.Asset {
		return domain.ErrBadAsset
	}

	switch orderType {
	case domain.OrderTypeDeposit:
		if p.Amount.LessThan(v.limits.MinDeposit) {
			return domain.ErrLessMin
		}
		if p.Amount.GreaterThan(v.limits.MaxWithdrawal) {
			return domain.ErrGreaterMax
		}
	case domain.OrderTypeWithdrawal:
		if p.Amount.LessThan(v.limits.MinWithdrawal) {
			return domain.ErrLessMin
		}
		if p.Amount.GreaterThan(v.limits.MaxWithdrawal) {
			return domain.ErrGreaterMax
		}
		if err := v.checkMemo(memo); err != domain.ErrNone {
			return err
		}
	}
	return domain.ErrNone
}

func (v *Validator) checkMemo(memo *string) domain.OperationError {
	if memo == nil || *memo == "" {
		return domain.ErrNoMemo
	}
	if !ValidMemoMask(*memo, v.limits.AssetCode) {
		return domain.ErrFloodMemo
	}
	return domain.ErrNone
}

// ValidMemoMask reports whether memo splits into exactly two colon-separated
// parts, left equal to assetCode (case-insensitive), right non-empty.
func ValidMemoMask(memo, assetCode string) bool {
	parts := strings.Split(memo, ":")
	if len(parts) != 2 {
		return false
	}
	if !strings.EqualFold(parts[0], assetCode) {
		return false
	}
	return parts[1] != ""
}
