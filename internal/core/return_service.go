package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReturnService handles batch-aware returns to suppliers. A return is created
// PENDING with no effect; approval is the transaction that pulls the goods out
// of the named batch, bumps the item's returned quantity, and posts the
// return credit — all valued at the batch's own cost price, not the current
// average.
type ReturnService struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewReturnService(pool *pgxpool.Pool, log *zap.Logger) *ReturnService {
	return &ReturnService{pool: pool, log: log}
}

type ReturnInput struct {
	OrderID   int
	ProductID int
	BatchID   int
	Quantity  decimal.Decimal
	Reason    string
	CreatedBy string
}

// CreateReturn registers a PENDING return against a confirmed order.
func (s *ReturnService) CreateReturn(ctx context.Context, in ReturnInput) (*OrderReturn, error) {
	if in.Quantity.IsZero() || in.Quantity.IsNegative() {
		return nil, fmt.Errorf("return quantity must be positive, got %s", in.Quantity)
	}

	var status OrderStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM dispatch_orders WHERE id = $1`, in.OrderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d not found", in.OrderID)
		}
		return nil, fmt.Errorf("fetch order %d: %w", in.OrderID, err)
	}
	if status != OrderConfirmed {
		return nil, fmt.Errorf("order %d is %s, returns require a CONFIRMED order", in.OrderID, status)
	}

	var reason *string
	if in.Reason != "" {
		reason = &in.Reason
	}

	ret := &OrderReturn{
		OrderID:   in.OrderID,
		ProductID: in.ProductID,
		BatchID:   in.BatchID,
		Quantity:  in.Quantity,
		Status:    ReturnPending,
		Reason:    reason,
		CreatedBy: in.CreatedBy,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO order_returns (order_id, product_id, batch_id, quantity, status, reason, created_by)
		VALUES ($1, $2, $3, $4, 'PENDING', $5, $6)
		RETURNING id, created_at`,
		in.OrderID, in.ProductID, in.BatchID, in.Quantity, reason, in.CreatedBy,
	).Scan(&ret.ID, &ret.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert return: %w", err)
	}
	return ret, nil
}

// ApproveReturn executes a pending return in one transaction. The quantity
// actually credited is what the named batch could still give up, so a batch
// drained since the return was filed yields a smaller (possibly zero) credit
// rather than a failure.
func (s *ReturnService) ApproveReturn(ctx context.Context, returnID int, approvedBy string, inv *InventoryService, ledger *Ledger) (*OrderReturn, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ret, err := s.lockReturnTx(ctx, tx, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Status != ReturnPending {
		return nil, fmt.Errorf("return %d is %s, only PENDING returns can be approved", returnID, ret.Status)
	}

	var itemID int
	var supplierID int
	var itemQty, returnedQty decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT i.id, o.supplier_id, i.quantity, i.returned_quantity
		FROM dispatch_order_items i
		JOIN dispatch_orders o ON o.id = i.order_id
		WHERE i.order_id = $1 AND i.product_id = $2
		FOR UPDATE OF i`,
		ret.OrderID, ret.ProductID,
	).Scan(&itemID, &supplierID, &itemQty, &returnedQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d has no item for product %d", ret.OrderID, ret.ProductID)
		}
		return nil, fmt.Errorf("lock order item: %w", err)
	}

	if returnedQty.Add(ret.Quantity).GreaterThan(itemQty) {
		return nil, fmt.Errorf("return of %s would exceed item quantity %s (already returned %s)",
			ret.Quantity, itemQty, returnedQty)
	}

	consumption, err := inv.ConsumeFromBatchTx(ctx, tx, ret.ProductID, ret.BatchID, ret.Quantity, MovementRef{
		Reference:   fmt.Sprintf("return %d", ret.ID),
		ReferenceID: &ret.OrderID,
		CreatedBy:   approvedBy,
	})
	if err != nil {
		return nil, err
	}

	amount := consumption.Consumed.Mul(consumption.CostPrice)

	if consumption.Consumed.IsPositive() {
		if _, err := tx.Exec(ctx, `
			UPDATE dispatch_order_items SET returned_quantity = returned_quantity + $1 WHERE id = $2`,
			consumption.Consumed, itemID,
		); err != nil {
			return nil, fmt.Errorf("bump returned quantity: %w", err)
		}

		ref := ret.OrderID
		if _, err := ledger.AppendTx(ctx, tx, EntryInput{
			EntityType:      EntitySupplier,
			EntityID:        supplierID,
			TransactionType: TxnReturn,
			ReferenceID:     &ref,
			Credit:          amount,
			CreatedBy:       approvedBy,
			Description:     fmt.Sprintf("return %d, %s units from batch %d", ret.ID, consumption.Consumed, ret.BatchID),
		}); err != nil {
			return nil, err
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE order_returns
		SET status = 'APPROVED', quantity = $1, amount = $2, approved_at = NOW()
		WHERE id = $3
		RETURNING approved_at`,
		consumption.Consumed, amount, ret.ID,
	).Scan(&ret.ApprovedAt)
	if err != nil {
		return nil, fmt.Errorf("mark return approved: %w", err)
	}
	ret.Status = ReturnApproved
	ret.Quantity = consumption.Consumed
	ret.Amount = &amount

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit return approval: %w", err)
	}

	s.log.Info("return approved",
		zap.Int("return_id", ret.ID),
		zap.Int("order_id", ret.OrderID),
		zap.String("quantity", ret.Quantity.String()),
		zap.String("amount", amount.String()),
		zap.Bool("clamped", consumption.Clamped),
	)
	return ret, nil
}

// RejectReturn closes a pending return with no effect.
func (s *ReturnService) RejectReturn(ctx context.Context, returnID int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE order_returns SET status = 'REJECTED' WHERE id = $1 AND status = 'PENDING'`,
		returnID,
	)
	if err != nil {
		return fmt.Errorf("reject return %d: %w", returnID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("return %d not found or not PENDING", returnID)
	}
	return nil
}

// GetReturns lists all returns filed against an order.
func (s *ReturnService) GetReturns(ctx context.Context, orderID int) ([]OrderReturn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, batch_id, quantity, status, amount, reason, created_by, created_at, approved_at
		FROM order_returns
		WHERE order_id = $1
		ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query returns for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var returns []OrderReturn
	for rows.Next() {
		var r OrderReturn
		if err := rows.Scan(&r.ID, &r.OrderID, &r.ProductID, &r.BatchID, &r.Quantity, &r.Status,
			&r.Amount, &r.Reason, &r.CreatedBy, &r.CreatedAt, &r.ApprovedAt); err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}

func (s *ReturnService) lockReturnTx(ctx context.Context, tx pgx.Tx, returnID int) (*OrderReturn, error) {
	r := &OrderReturn{}
	err := tx.QueryRow(ctx, `
		SELECT id, order_id, product_id, batch_id, quantity, status, amount, reason, created_by, created_at, approved_at
		FROM order_returns
		WHERE id = $1
		FOR UPDATE`,
		returnID,
	).Scan(&r.ID, &r.OrderID, &r.ProductID, &r.BatchID, &r.Quantity, &r.Status,
		&r.Amount, &r.Reason, &r.CreatedBy, &r.CreatedAt, &r.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("return %d not found", returnID)
		}
		return nil, fmt.Errorf("lock return %d: %w", returnID, err)
	}
	return r, nil
}
