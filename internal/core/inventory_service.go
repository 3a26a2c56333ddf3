package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService owns the per-product batch ledger and variant composition.
// Every mutation runs inside a transaction that first locks the product's
// inventory row FOR UPDATE, so a FIFO walk and its average-cost recomputation
// can never interleave with a concurrent stock-in or return for the same
// product. Every mutation also appends a stock movement row.
type InventoryService struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewInventoryService(pool *pgxpool.Pool, log *zap.Logger) *InventoryService {
	return &InventoryService{pool: pool, log: log}
}

// BatchInput describes one stock-in event.
type BatchInput struct {
	ProductID       int
	DispatchOrderID *int
	SupplierID      int
	PurchaseDate    time.Time
	Quantity        decimal.Decimal
	CostPrice       decimal.Decimal
	LandedPrice     decimal.Decimal
	ExchangeRate    decimal.Decimal
	Composition     []VariantInput
	Ref             MovementRef
}

// BatchConsumption is the outcome of targeted (batch-aware) consumption.
// Consumed may be less than Requested when the batch had less remaining than
// asked for; Clamped marks that lenient path.
type BatchConsumption struct {
	BatchID   int             `json:"batch_id"`
	Requested decimal.Decimal `json:"requested"`
	Consumed  decimal.Decimal `json:"consumed"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Clamped   bool            `json:"clamped"`
}

// AddBatch records a stock-in in its own transaction.
func (s *InventoryService) AddBatch(ctx context.Context, in BatchInput) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := s.AddBatchTx(ctx, tx, in)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit stock-in: %w", err)
	}
	return id, nil
}

// AddBatchTx records a stock-in inside the caller's transaction: appends the
// batch with remaining = quantity, merges the incoming variant composition,
// increments current stock, and recomputes the weighted average cost over
// all batches. Used directly by order confirmation so the batch lands
// atomically with the order's ledger entries.
func (s *InventoryService) AddBatchTx(ctx context.Context, tx pgx.Tx, in BatchInput) (int, error) {
	if in.Quantity.IsZero() || in.Quantity.IsNegative() {
		return 0, fmt.Errorf("batch quantity must be positive, got %s", in.Quantity)
	}
	if in.CostPrice.IsNegative() || in.LandedPrice.IsNegative() {
		return 0, fmt.Errorf("batch cost and landed price cannot be negative")
	}
	if in.ExchangeRate.IsZero() {
		in.ExchangeRate = decimal.NewFromInt(1)
	}
	if in.PurchaseDate.IsZero() {
		in.PurchaseDate = time.Now()
	}

	rec, err := s.ensureRecordTx(ctx, tx, in.ProductID)
	if err != nil {
		return 0, err
	}

	var batchID int
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_batches (product_id, dispatch_order_id, supplier_id, purchase_date,
		                              quantity, remaining_quantity, cost_price, landed_price, exchange_rate)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8)
		RETURNING id`,
		in.ProductID, in.DispatchOrderID, in.SupplierID, in.PurchaseDate,
		in.Quantity, in.CostPrice, in.LandedPrice, in.ExchangeRate,
	).Scan(&batchID)
	if err != nil {
		return 0, fmt.Errorf("insert purchase batch: %w", err)
	}

	batches, err := s.loadBatches(ctx, tx, in.ProductID)
	if err != nil {
		return 0, err
	}
	avg := weightedAverageCost(batches, in.CostPrice)

	if _, err := tx.Exec(ctx, `
		UPDATE inventory_records
		SET current_stock = current_stock + $1, average_cost_price = $2, updated_at = NOW()
		WHERE id = $3`,
		in.Quantity, avg, rec.ID,
	); err != nil {
		return 0, fmt.Errorf("update inventory record: %w", err)
	}

	for _, v := range in.Composition {
		if v.Quantity.IsZero() || v.Quantity.IsNegative() {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_variants (product_id, size, color, quantity, reserved_quantity)
			VALUES ($1, $2, $3, $4, 0)
			ON CONFLICT (product_id, size, color)
			DO UPDATE SET quantity = product_variants.quantity + EXCLUDED.quantity`,
			in.ProductID, v.Size, v.Color, v.Quantity,
		); err != nil {
			return 0, fmt.Errorf("merge variant (%s, %s): %w", v.Size, v.Color, err)
		}
	}

	if err := s.appendMovement(ctx, tx, in.ProductID, MoveIn, in.Quantity, in.Ref); err != nil {
		return 0, err
	}
	return batchID, nil
}

// ConsumeFIFO takes quantity out of the product's batches oldest purchase
// date first, valuing the consumption at each batch's own cost price.
func (s *InventoryService) ConsumeFIFO(ctx context.Context, productID int, quantity decimal.Decimal, ref MovementRef) (*ConsumptionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.ConsumeFIFOTx(ctx, tx, productID, quantity, ref)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit FIFO consumption: %w", err)
	}
	return result, nil
}

// ConsumeFIFOTx runs the FIFO walk inside the caller's transaction.
// Fails with ErrInsufficientStock when the request exceeds available
// (current − reserved) stock; ErrBatchExhaustion from the walk itself is a
// consistency bug and aborts the whole operation.
func (s *InventoryService) ConsumeFIFOTx(ctx context.Context, tx pgx.Tx, productID int, quantity decimal.Decimal, ref MovementRef) (*ConsumptionResult, error) {
	rec, err := s.lockRecordTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if quantity.GreaterThan(rec.AvailableStock()) {
		return nil, fmt.Errorf("%w: product %d has %s available, requested %s",
			ErrInsufficientStock, productID, rec.AvailableStock(), quantity)
	}

	batches, err := s.loadBatches(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	result, err := planFIFOConsumption(batches, quantity)
	if err != nil {
		return nil, err
	}

	for _, a := range result.Allocations {
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_batches SET remaining_quantity = remaining_quantity - $1 WHERE id = $2`,
			a.QuantityTaken, a.BatchID,
		); err != nil {
			return nil, fmt.Errorf("decrement batch %d: %w", a.BatchID, err)
		}
	}

	remaining := applyAllocations(batches, result.Allocations)
	avg := weightedAverageCost(remaining, rec.AverageCostPrice)

	if _, err := tx.Exec(ctx, `
		UPDATE inventory_records
		SET current_stock = current_stock - $1, average_cost_price = $2, updated_at = NOW()
		WHERE id = $3`,
		quantity, avg, rec.ID,
	); err != nil {
		return nil, fmt.Errorf("update inventory record: %w", err)
	}

	if err := s.appendMovement(ctx, tx, productID, MoveOut, quantity.Neg(), ref); err != nil {
		return nil, err
	}
	return result, nil
}

// ConsumeFromBatch is targeted consumption used by batch-aware returns.
func (s *InventoryService) ConsumeFromBatch(ctx context.Context, productID, batchID int, quantity decimal.Decimal, ref MovementRef) (*BatchConsumption, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.ConsumeFromBatchTx(ctx, tx, productID, batchID, quantity, ref)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch consumption: %w", err)
	}
	return result, nil
}

// ConsumeFromBatchTx consumes from one named batch. When the request exceeds
// the batch's remaining quantity it consumes what remains and logs a warning
// instead of failing — stock drifted by out-of-band corrections would
// otherwise block legitimate returns. Callers must check Consumed.
func (s *InventoryService) ConsumeFromBatchTx(ctx context.Context, tx pgx.Tx, productID, batchID int, quantity decimal.Decimal, ref MovementRef) (*BatchConsumption, error) {
	if quantity.IsZero() || quantity.IsNegative() {
		return nil, fmt.Errorf("consume quantity must be positive, got %s", quantity)
	}

	rec, err := s.lockRecordTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	var remaining, costPrice decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT remaining_quantity, cost_price
		FROM purchase_batches
		WHERE id = $1 AND product_id = $2`,
		batchID, productID,
	).Scan(&remaining, &costPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: batch %d for product %d", ErrBatchNotFound, batchID, productID)
		}
		return nil, fmt.Errorf("fetch batch %d: %w", batchID, err)
	}

	consumed := quantity
	clamped := false
	if remaining.LessThan(quantity) {
		consumed = remaining
		clamped = true
		s.log.Warn("batch consumption clamped to remaining quantity",
			zap.Int("product_id", productID),
			zap.Int("batch_id", batchID),
			zap.String("requested", quantity.String()),
			zap.String("remaining", remaining.String()),
			zap.String("reference", ref.Reference),
		)
	}

	if consumed.IsPositive() {
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_batches SET remaining_quantity = remaining_quantity - $1 WHERE id = $2`,
			consumed, batchID,
		); err != nil {
			return nil, fmt.Errorf("decrement batch %d: %w", batchID, err)
		}

		batches, err := s.loadBatches(ctx, tx, productID)
		if err != nil {
			return nil, err
		}
		avg := weightedAverageCost(batches, rec.AverageCostPrice)

		if _, err := tx.Exec(ctx, `
			UPDATE inventory_records
			SET current_stock = current_stock - $1, average_cost_price = $2, updated_at = NOW()
			WHERE id = $3`,
			consumed, avg, rec.ID,
		); err != nil {
			return nil, fmt.Errorf("update inventory record: %w", err)
		}

		if err := s.appendMovement(ctx, tx, productID, MoveOut, consumed.Neg(), ref); err != nil {
			return nil, err
		}
	}

	return &BatchConsumption{
		BatchID:   batchID,
		Requested: quantity,
		Consumed:  consumed,
		CostPrice: costPrice,
		Clamped:   clamped,
	}, nil
}

// ReserveVariant soft-locks quantity on a (size, color) cell and mirrors the
// delta onto the record's aggregate reserved stock.
func (s *InventoryService) ReserveVariant(ctx context.Context, productID int, size, color string, quantity decimal.Decimal) error {
	return s.mutateVariant(ctx, productID, func(tx pgx.Tx, rec *InventoryRecord, variants []Variant) error {
		i, err := reserveVariant(variants, size, color, quantity)
		if err != nil {
			return err
		}
		if err := s.saveVariant(ctx, tx, variants[i]); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE inventory_records SET reserved_stock = reserved_stock + $1, updated_at = NOW() WHERE id = $2`,
			quantity, rec.ID)
		if err != nil {
			return fmt.Errorf("increase reserved stock: %w", err)
		}
		return nil
	})
}

// ReleaseVariant undoes a reservation, clamping at zero.
func (s *InventoryService) ReleaseVariant(ctx context.Context, productID int, size, color string, quantity decimal.Decimal) error {
	return s.mutateVariant(ctx, productID, func(tx pgx.Tx, rec *InventoryRecord, variants []Variant) error {
		i, released, err := releaseVariant(variants, size, color, quantity)
		if err != nil {
			return err
		}
		if err := s.saveVariant(ctx, tx, variants[i]); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE inventory_records
			SET reserved_stock = GREATEST(reserved_stock - $1, 0), updated_at = NOW()
			WHERE id = $2`,
			released, rec.ID)
		if err != nil {
			return fmt.Errorf("decrease reserved stock: %w", err)
		}
		return nil
	})
}

// ReduceVariant removes stock from a cell, decrements aggregate current
// stock, and appends an out movement.
func (s *InventoryService) ReduceVariant(ctx context.Context, productID int, size, color string, quantity decimal.Decimal, ref MovementRef) error {
	return s.mutateVariant(ctx, productID, func(tx pgx.Tx, rec *InventoryRecord, variants []Variant) error {
		i, reservedDelta, err := reduceVariant(variants, size, color, quantity)
		if err != nil {
			return err
		}
		if err := s.saveVariant(ctx, tx, variants[i]); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_records
			SET current_stock = current_stock - $1,
			    reserved_stock = GREATEST(reserved_stock - $2, 0),
			    updated_at = NOW()
			WHERE id = $3`,
			quantity, reservedDelta, rec.ID,
		); err != nil {
			return fmt.Errorf("reduce aggregate stock: %w", err)
		}
		return s.appendMovement(ctx, tx, productID, MoveOut, quantity.Neg(), ref)
	})
}

// GetInventory loads the full aggregate: record, batches, variants.
func (s *InventoryService) GetInventory(ctx context.Context, productID int) (*InventoryRecord, error) {
	rec := &InventoryRecord{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, product_id, current_stock, reserved_stock, average_cost_price,
		       min_stock_level, max_stock_level, reorder_level, updated_at
		FROM inventory_records
		WHERE product_id = $1`,
		productID,
	).Scan(&rec.ID, &rec.ProductID, &rec.CurrentStock, &rec.ReservedStock, &rec.AverageCostPrice,
		&rec.MinStockLevel, &rec.MaxStockLevel, &rec.ReorderLevel, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no inventory record for product %d", productID)
		}
		return nil, fmt.Errorf("fetch inventory record: %w", err)
	}

	if rec.Batches, err = s.loadBatches(ctx, s.pool, productID); err != nil {
		return nil, err
	}
	if rec.Variants, err = s.loadVariants(ctx, s.pool, productID); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetMovements returns the audit trail for a product, newest first.
func (s *InventoryService) GetMovements(ctx context.Context, productID, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, movement_type, quantity, reference, reference_id, created_by, movement_date, notes
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY movement_date DESC, id DESC
		LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.MovementType, &m.Quantity,
			&m.Reference, &m.ReferenceID, &m.CreatedBy, &m.MovementDate, &m.Notes); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ── internal helpers ──────────────────────────────────────────────────────────

// ensureRecordTx upserts the product's inventory row and locks it FOR UPDATE.
func (s *InventoryService) ensureRecordTx(ctx context.Context, tx pgx.Tx, productID int) (*InventoryRecord, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_records (product_id, current_stock, reserved_stock, average_cost_price)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (product_id) DO NOTHING`,
		productID,
	); err != nil {
		return nil, fmt.Errorf("upsert inventory record: %w", err)
	}
	return s.lockRecordTx(ctx, tx, productID)
}

// lockRecordTx takes the per-product pessimistic lock. Everything that
// mutates batches or variants for the product serializes behind this row.
func (s *InventoryService) lockRecordTx(ctx context.Context, tx pgx.Tx, productID int) (*InventoryRecord, error) {
	rec := &InventoryRecord{}
	err := tx.QueryRow(ctx, `
		SELECT id, product_id, current_stock, reserved_stock, average_cost_price,
		       min_stock_level, max_stock_level, reorder_level, updated_at
		FROM inventory_records
		WHERE product_id = $1
		FOR UPDATE`,
		productID,
	).Scan(&rec.ID, &rec.ProductID, &rec.CurrentStock, &rec.ReservedStock, &rec.AverageCostPrice,
		&rec.MinStockLevel, &rec.MaxStockLevel, &rec.ReorderLevel, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no inventory record for product %d", productID)
		}
		return nil, fmt.Errorf("lock inventory record for product %d: %w", productID, err)
	}
	return rec, nil
}

func (s *InventoryService) loadBatches(ctx context.Context, q pgxQuerier, productID int) ([]PurchaseBatch, error) {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, dispatch_order_id, supplier_id, purchase_date,
		       quantity, remaining_quantity, cost_price, landed_price, exchange_rate, created_at
		FROM purchase_batches
		WHERE product_id = $1
		ORDER BY purchase_date, id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("query purchase batches: %w", err)
	}
	defer rows.Close()

	var batches []PurchaseBatch
	for rows.Next() {
		var b PurchaseBatch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.DispatchOrderID, &b.SupplierID, &b.PurchaseDate,
			&b.Quantity, &b.RemainingQuantity, &b.CostPrice, &b.LandedPrice, &b.ExchangeRate, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *InventoryService) loadVariants(ctx context.Context, q pgxQuerier, productID int) ([]Variant, error) {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, size, color, quantity, reserved_quantity
		FROM product_variants
		WHERE product_id = $1
		ORDER BY size, color`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("query product variants: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Quantity, &v.ReservedQuantity); err != nil {
			return nil, fmt.Errorf("scan product variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (s *InventoryService) saveVariant(ctx context.Context, tx pgx.Tx, v Variant) error {
	if _, err := tx.Exec(ctx, `
		UPDATE product_variants SET quantity = $1, reserved_quantity = $2 WHERE id = $3`,
		v.Quantity, v.ReservedQuantity, v.ID,
	); err != nil {
		return fmt.Errorf("save variant %d: %w", v.ID, err)
	}
	return nil
}

func (s *InventoryService) mutateVariant(ctx context.Context, productID int,
	fn func(tx pgx.Tx, rec *InventoryRecord, variants []Variant) error) error {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.lockRecordTx(ctx, tx, productID)
	if err != nil {
		return err
	}
	variants, err := s.loadVariants(ctx, tx, productID)
	if err != nil {
		return err
	}
	if err := fn(tx, rec, variants); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit variant mutation: %w", err)
	}
	return nil
}

func (s *InventoryService) appendMovement(ctx context.Context, tx pgx.Tx, productID int, mt MovementType, qty decimal.Decimal, ref MovementRef) error {
	var notes *string
	if ref.Notes != "" {
		notes = &ref.Notes
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, movement_type, quantity, reference, reference_id, created_by, movement_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)`,
		productID, mt, qty, ref.Reference, ref.ReferenceID, ref.CreatedBy, notes,
	); err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}
