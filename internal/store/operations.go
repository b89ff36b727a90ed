package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fincubator/bitshares-gateway/internal/domain"
)

// ErrOperationNotFound is returned when a lookup finds no matching row.
var ErrOperationNotFound = errors.New("store: operation not found")

const operationColumns = `id, op_id, order_id, order_type, asset, from_account, to_account,
	amount, status, error, confirmations, block_num, tx_hash, memo,
	tx_created_at, tx_expiration, created_at, updated_at`

func scanOperation(row interface{ Scan(...any) error }) (*domain.Operation, error) {
	var (
		o          domain.Operation
		opID       sql.NullInt64
		orderID    sql.NullString
		amountStr  string
		txHash     sql.NullString
		memo       sql.NullString
		txCreated  sql.NullTime
		txExpires  sql.NullTime
	)

	if err := row.Scan(
		&o.ID, &opID, &orderID, &o.OrderType, &o.Asset, &o.FromAccount, &o.ToAccount,
		&amountStr, &o.Status, &o.Error, &o.Confirmations, &o.BlockNum, &txHash, &memo,
		&txCreated, &txExpires, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if opID.Valid {
		v := opID.Int64
		o.OpID = &v
	}
	if orderID.Valid {
		id, err := uuid.Parse(orderID.String)
		if err != nil {
			return nil, fmt.Errorf("store: bad order_id %q: %w", orderID.String, err)
		}
		o.OrderID = &id
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("store: bad amount %q: %w", amountStr, err)
	}
	o.Amount = amount
	if txHash.Valid {
		v := txHash.String
		o.TxHash = &v
	}
	if memo.Valid {
		v := memo.String
		o.Memo = &v
	}
	if txCreated.Valid {
		v := txCreated.Time
		o.TxCreatedAt = &v
	}
	if txExpires.Valid {
		v := txExpires.Time
		o.TxExpiration = &v
	}
	return &o, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullUUID(v *uuid.UUID) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

// CreateOperationTx inserts a new Operation row inside an existing
// transaction — used by the Watcher (withdrawal legs observed on chain) and
// the Broadcaster's booker-server handler (planned WAIT legs).
func (s *Store) CreateOperationTx(ctx context.Context, tx *sql.Tx, o *domain.Operation) (int64, error) {
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	var id int64
	returning := ""
	if s.driver != DriverSQLite {
		returning = " RETURNING id"
	}

	query := fmt.Sprintf(`INSERT INTO operations
		(op_id, order_id, order_type, asset, from_account, to_account, amount,
		 status, error, confirmations, block_num, tx_hash, memo,
		 tx_created_at, tx_expiration, created_at, updated_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)%s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9),
		s.ph(10), s.ph(11), s.ph(12), s.ph(13), s.ph(14), s.ph(15), s.ph(16), s.ph(17), returning)

	args := []any{
		nullInt64(o.OpID), nullUUID(o.OrderID), string(o.OrderType), o.Asset, o.FromAccount, o.ToAccount,
		o.Amount.String(), string(o.Status), string(o.Error), o.Confirmations, o.BlockNum,
		nullString(o.TxHash), nullString(o.Memo), nullTime(o.TxCreatedAt), nullTime(o.TxExpiration),
		o.CreatedAt, o.UpdatedAt,
	}

	if s.driver == DriverSQLite {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, err
		}
	} else {
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
	}

	o.ID = id
	return id, nil
}

// GetByTxHashTx looks up an Operation by (asset, tx_hash) inside tx — used by
// the Watcher to find the planned WAIT row a DEPOSIT observation must match.
func (s *Store) GetByTxHashTx(ctx context.Context, tx *sql.Tx, asset, txHash string) (*domain.Operation, error) {
	row := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM operations WHERE asset = %s AND tx_hash = %s", operationColumns, s.ph(1), s.ph(2)),
		asset, txHash)
	o, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// GetByID returns the Operation with the given primary key.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Operation, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM operations WHERE id = %s", operationColumns, s.ph(1)), id)
	o, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOperationNotFound
	}
	return o, err
}

// GetByOrderID returns the Operation linked to orderID.
func (s *Store) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Operation, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM operations WHERE order_id = %s", operationColumns, s.ph(1)), orderID.String())
	o, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOperationNotFound
	}
	return o, err
}

// UpdateMatchedDepositTx updates a planned WAIT row with the fields observed
// on chain, inside the Watcher's transaction.
func (s *Store) UpdateMatchedDepositTx(ctx context.Context, tx *sql.Tx, id int64, opID int64, status domain.OperationStatus, opErr domain.OperationError, memo *string, txCreatedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE operations SET op_id=%s, status=%s, error=%s, memo=%s,
			confirmations=0, tx_created_at=%s, updated_at=%s WHERE id = %s`,
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7)),
		opID, string(status), string(opErr), nullString(memo), txCreatedAt, time.Now().UTC(), id)
	return err
}

// AdvanceCursorTx advances the wallet's last_operation cursor to seq, inside
// the Watcher's transaction — callers must hold the transaction that also
// persisted (or skipped) the operation at seq.
func (s *Store) AdvanceCursorTx(ctx context.Context, tx *sql.Tx, account string, seq int64) error {
	return s.advanceLastOperation(ctx, tx, account, seq)
}

// RunInTx is a thin pass-through to WithSerializableTx, named for call-site
// readability in the Watcher's main loop.
func (s *Store) RunInTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.WithSerializableTx(ctx, fn)
}

// ListByStatus returns every Operation with the given status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status domain.OperationStatus) ([]*domain.Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM operations WHERE status = %s ORDER BY id", operationColumns, s.ph(1)),
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Operation
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListBroadcastable returns WAIT rows with an order_id and no tx_hash yet —
// the Broadcaster's selection criteria.
func (s *Store) ListBroadcastable(ctx context.Context) ([]*domain.Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM operations
			WHERE status = %s AND order_id IS NOT NULL AND tx_hash IS NULL ORDER BY id`,
			operationColumns, s.ph(1)),
		string(domain.StatusWait))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Operation
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateConfirmation persists confirmations and, if promoted, status for the
// Confirmer.
func (s *Store) UpdateConfirmation(ctx context.Context, id int64, confirmations int64, status domain.OperationStatus) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE operations SET confirmations=%s, status=%s, updated_at=%s WHERE id=%s",
			s.ph(1), s.ph(2), s.ph(3), s.ph(4)),
		confirmations, string(status), time.Now().UTC(), id)
	return err
}

// MarkBroadcast clears WAIT and records the broadcast result.
func (s *Store) MarkBroadcast(ctx context.Context, id int64, txHash string, blockNum int64, expiration time.Time) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE operations SET status=%s, tx_hash=%s, block_num=%s, tx_expiration=%s,
			updated_at=%s WHERE id=%s`,
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6)),
		string(domain.StatusReceivedNotConfirmed), txHash, blockNum, expiration, time.Now().UTC(), id)
	return err
}
