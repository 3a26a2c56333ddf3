package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService manages supplier dispatch orders through their DRAFT →
// CONFIRMED lifecycle. Confirmation is the money moment: it is the single
// transaction in which stock batches, packet rows, the purchase debit, and
// any immediate payments all land together or not at all.
type OrderService struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewOrderService(pool *pgxpool.Pool, log *zap.Logger) *OrderService {
	return &OrderService{pool: pool, log: log}
}

// OrderInput describes a draft order before persistence.
type OrderInput struct {
	SupplierID int
	Discount   decimal.Decimal
	Notes      string
	CreatedBy  string
	Items      []OrderItemInput
}

type OrderItemInput struct {
	ProductCode    string
	ProductName    string
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	LandedPrice    decimal.Decimal
	ExchangeRate   decimal.Decimal
	ItemsPerPacket int
	Packets        int
	Composition    []VariantInput
}

// PaymentInput is a payment recorded at confirmation time.
type PaymentInput struct {
	Amount  decimal.Decimal
	Method  PaymentMethod
	Details string
}

// ConfirmationResult summarizes what one order confirmation posted.
type ConfirmationResult struct {
	Order         *DispatchOrder  `json:"order"`
	OrderValue    decimal.Decimal `json:"order_value"`
	PaymentsTotal decimal.Decimal `json:"payments_total"`
	CreditApplied decimal.Decimal `json:"credit_applied"`
}

// CreateOrder persists a DRAFT order with its items. Drafts carry no ledger
// or inventory effect and can be cancelled freely.
func (s *OrderService) CreateOrder(ctx context.Context, in OrderInput) (*DispatchOrder, error) {
	if in.SupplierID <= 0 {
		return nil, fmt.Errorf("order requires a supplier")
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("order requires at least one item")
	}
	if in.Discount.IsNegative() {
		return nil, fmt.Errorf("discount cannot be negative, got %s", in.Discount)
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.ProductCode) == "" {
			return nil, fmt.Errorf("item %d: product code is required", i+1)
		}
		if item.Quantity.IsZero() || item.Quantity.IsNegative() {
			return nil, fmt.Errorf("item %d: quantity must be positive, got %s", i+1, item.Quantity)
		}
		if item.UnitCost.IsNegative() {
			return nil, fmt.Errorf("item %d: unit cost cannot be negative", i+1)
		}
		compTotal := decimal.Zero
		for _, v := range item.Composition {
			if v.Quantity.IsNegative() {
				return nil, fmt.Errorf("item %d: variant (%s, %s) quantity cannot be negative", i+1, v.Size, v.Color)
			}
			compTotal = compTotal.Add(v.Quantity)
		}
		if compTotal.GreaterThan(item.Quantity) {
			return nil, fmt.Errorf("item %d: variant composition %s exceeds item quantity %s", i+1, compTotal, item.Quantity)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var notes *string
	if n := strings.TrimSpace(in.Notes); n != "" {
		notes = &n
	}

	order := &DispatchOrder{SupplierID: in.SupplierID, Status: OrderDraft, Discount: in.Discount, Notes: notes, CreatedBy: in.CreatedBy}
	err = tx.QueryRow(ctx, `
		INSERT INTO dispatch_orders (supplier_id, status, discount, notes, created_by)
		VALUES ($1, 'DRAFT', $2, $3, $4)
		RETURNING id, created_at`,
		in.SupplierID, in.Discount, notes, in.CreatedBy,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert dispatch order: %w", err)
	}

	for _, item := range in.Items {
		rate := item.ExchangeRate
		if rate.IsZero() {
			rate = decimal.NewFromInt(1)
		}
		composition := item.Composition
		if composition == nil {
			composition = []VariantInput{}
		}
		row := DispatchOrderItem{
			OrderID:        order.ID,
			ProductCode:    strings.TrimSpace(item.ProductCode),
			ProductName:    strings.TrimSpace(item.ProductName),
			Quantity:       item.Quantity,
			UnitCost:       item.UnitCost,
			LandedPrice:    item.LandedPrice,
			ExchangeRate:   rate,
			ItemsPerPacket: item.ItemsPerPacket,
			Packets:        item.Packets,
			Composition:    composition,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO dispatch_order_items (order_id, product_code, product_name, quantity,
			                                  unit_cost, landed_price, exchange_rate, items_per_packet, packets, composition)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			row.OrderID, row.ProductCode, row.ProductName, row.Quantity,
			row.UnitCost, row.LandedPrice, row.ExchangeRate, row.ItemsPerPacket, row.Packets, row.Composition,
		).Scan(&row.ID)
		if err != nil {
			return nil, fmt.Errorf("insert order item %s: %w", row.ProductCode, err)
		}
		order.Items = append(order.Items, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit draft order: %w", err)
	}
	return order, nil
}

// ConfirmOrder promotes a draft to CONFIRMED in a single transaction:
// assigns a gapless per-supplier order number, resolves or creates each
// item's product, lands a purchase batch and packet rows per item, posts the
// purchase debit and any immediate payment credits, then settles whatever a
// standing supplier credit can absorb. Any failure rolls the whole thing
// back to DRAFT.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID int, payments []PaymentInput, createdBy string,
	inv *InventoryService, ledger *Ledger, pay *PaymentService, catalog ProductCatalog, packets PacketStockCreator) (*ConfirmationResult, error) {

	for i, p := range payments {
		if err := validatePayment(p.Amount, p.Method); err != nil {
			return nil, fmt.Errorf("payment %d: %w", i+1, err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderDraft {
		return nil, fmt.Errorf("order %d is %s, only DRAFT orders can be confirmed", orderID, order.Status)
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("order %d has no items", orderID)
	}

	orderNumber, err := s.nextOrderNumberTx(ctx, tx, order.SupplierID)
	if err != nil {
		return nil, err
	}

	for i := range order.Items {
		item := &order.Items[i]

		product, err := catalog.ResolveOrCreateTx(ctx, tx, order.SupplierID, item.ProductCode, item.ProductName, item.UnitCost)
		if err != nil {
			return nil, fmt.Errorf("resolve product %s: %w", item.ProductCode, err)
		}
		item.ProductID = &product.ID

		if _, err := tx.Exec(ctx, `
			UPDATE dispatch_order_items SET product_id = $1 WHERE id = $2`,
			product.ID, item.ID,
		); err != nil {
			return nil, fmt.Errorf("link item %s to product: %w", item.ProductCode, err)
		}
		if err := catalog.UpdateCostPriceTx(ctx, tx, product.ID, item.UnitCost); err != nil {
			return nil, err
		}

		if _, err := inv.AddBatchTx(ctx, tx, BatchInput{
			ProductID:       product.ID,
			DispatchOrderID: &order.ID,
			SupplierID:      order.SupplierID,
			Quantity:        item.Quantity,
			CostPrice:       item.UnitCost,
			LandedPrice:     item.LandedPrice,
			ExchangeRate:    item.ExchangeRate,
			Composition:     item.Composition,
			Ref:             MovementRef{Reference: orderNumber, ReferenceID: &order.ID, CreatedBy: createdBy},
		}); err != nil {
			return nil, fmt.Errorf("stock in %s: %w", item.ProductCode, err)
		}

		if item.Packets > 0 && item.ItemsPerPacket > 0 {
			if err := packets.CreatePacketsTx(ctx, tx, product.ID, item.Packets, item.ItemsPerPacket, orderNumber); err != nil {
				return nil, fmt.Errorf("create packets for %s: %w", item.ProductCode, err)
			}
		}
	}

	orderValue := orderItemsValue(order.Items).Sub(order.Discount)
	if orderValue.IsNegative() {
		return nil, fmt.Errorf("discount %s exceeds order value", order.Discount)
	}

	ref := order.ID
	if _, err := ledger.AppendTx(ctx, tx, EntryInput{
		EntityType:      EntitySupplier,
		EntityID:        order.SupplierID,
		TransactionType: TxnPurchase,
		ReferenceID:     &ref,
		Debit:           orderValue,
		CreatedBy:       createdBy,
		Description:     fmt.Sprintf("purchase %s", orderNumber),
	}); err != nil {
		return nil, err
	}

	paymentsTotal := decimal.Zero
	for _, p := range payments {
		if _, err := ledger.AppendTx(ctx, tx, EntryInput{
			EntityType:      EntitySupplier,
			EntityID:        order.SupplierID,
			TransactionType: TxnPayment,
			ReferenceID:     &ref,
			Credit:          p.Amount,
			PaymentMethod:   p.Method,
			PaymentDetails:  p.Details,
			CreatedBy:       createdBy,
			Description:     fmt.Sprintf("payment on confirmation of %s", orderNumber),
		}); err != nil {
			return nil, err
		}
		paymentsTotal = paymentsTotal.Add(p.Amount)
	}

	err = tx.QueryRow(ctx, `
		UPDATE dispatch_orders
		SET status = 'CONFIRMED', order_number = $1, confirmed_at = NOW()
		WHERE id = $2
		RETURNING confirmed_at`,
		orderNumber, order.ID,
	).Scan(&order.ConfirmedAt)
	if err != nil {
		return nil, fmt.Errorf("mark order confirmed: %w", err)
	}
	order.Status = OrderConfirmed
	order.OrderNumber = &orderNumber

	creditApplied, err := pay.applyCreditTx(ctx, tx, EntitySupplier, order.SupplierID, order.ID, createdBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order confirmation: %w", err)
	}

	s.log.Info("order confirmed",
		zap.Int("order_id", order.ID),
		zap.String("order_number", orderNumber),
		zap.String("order_value", orderValue.String()),
		zap.String("payments_total", paymentsTotal.String()),
		zap.String("credit_applied", creditApplied.String()),
	)
	return &ConfirmationResult{
		Order:         order,
		OrderValue:    orderValue,
		PaymentsTotal: paymentsTotal,
		CreditApplied: creditApplied,
	}, nil
}

// LiveOrderValue is Σ((quantity − returned) × unit cost) − discount,
// recomputed from current rows every time.
func (s *OrderService) LiveOrderValue(ctx context.Context, orderID int) (decimal.Decimal, error) {
	return liveOrderValueQ(ctx, s.pool, orderID)
}

// GetOrder loads one order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int) (*DispatchOrder, error) {
	order, err := s.scanOrder(ctx, s.pool, orderID, false)
	if err != nil {
		return nil, err
	}
	order.Items, err = s.loadItems(ctx, s.pool, orderID)
	return order, err
}

// GetOrders lists a supplier's orders, newest first, optionally filtered by
// status ("" means all).
func (s *OrderService) GetOrders(ctx context.Context, supplierID int, status OrderStatus) ([]DispatchOrder, error) {
	query := `
		SELECT id, supplier_id, order_number, status, discount, notes, created_by, created_at, confirmed_at
		FROM dispatch_orders
		WHERE supplier_id = $1`
	args := []any{supplierID}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders for supplier %d: %w", supplierID, err)
	}
	defer rows.Close()

	var orders []DispatchOrder
	for rows.Next() {
		var o DispatchOrder
		if err := rows.Scan(&o.ID, &o.SupplierID, &o.OrderNumber, &o.Status, &o.Discount,
			&o.Notes, &o.CreatedBy, &o.CreatedAt, &o.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CancelOrder cancels a DRAFT. Confirmed orders cannot be cancelled; their
// effects are unwound through returns.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.scanOrder(ctx, tx, orderID, true)
	if err != nil {
		return err
	}
	if order.Status != OrderDraft {
		return fmt.Errorf("order %d is %s, only DRAFT orders can be cancelled", orderID, order.Status)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE dispatch_orders SET status = 'CANCELLED' WHERE id = $1`,
		orderID,
	); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancellation: %w", err)
	}
	return nil
}

// ── internal helpers ──────────────────────────────────────────────────────────

// liveOrderValueQ is shared with the payment distributor so both sides price
// an order the same way inside the same transaction.
func liveOrderValueQ(ctx context.Context, q pgxQuerier, orderID int) (decimal.Decimal, error) {
	var discount, itemsTotal decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT o.discount, COALESCE(SUM((i.quantity - i.returned_quantity) * i.unit_cost), 0)
		FROM dispatch_orders o
		LEFT JOIN dispatch_order_items i ON i.order_id = o.id
		WHERE o.id = $1
		GROUP BY o.id, o.discount`,
		orderID,
	).Scan(&discount, &itemsTotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("order %d not found", orderID)
		}
		return decimal.Zero, fmt.Errorf("compute live value for order %d: %w", orderID, err)
	}
	return itemsTotal.Sub(discount), nil
}

func orderItemsValue(items []DispatchOrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, i := range items {
		total = total.Add(i.Quantity.Sub(i.ReturnedQuantity).Mul(i.UnitCost))
	}
	return total
}

func (s *OrderService) lockOrderTx(ctx context.Context, tx pgx.Tx, orderID int) (*DispatchOrder, error) {
	order, err := s.scanOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	order.Items, err = s.loadItems(ctx, tx, orderID)
	return order, err
}

func (s *OrderService) scanOrder(ctx context.Context, q pgxQuerier, orderID int, forUpdate bool) (*DispatchOrder, error) {
	query := `
		SELECT id, supplier_id, order_number, status, discount, notes, created_by, created_at, confirmed_at
		FROM dispatch_orders
		WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	o := &DispatchOrder{}
	err := q.QueryRow(ctx, query, orderID).Scan(&o.ID, &o.SupplierID, &o.OrderNumber, &o.Status,
		&o.Discount, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.ConfirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d not found", orderID)
		}
		return nil, fmt.Errorf("fetch order %d: %w", orderID, err)
	}
	return o, nil
}

func (s *OrderService) loadItems(ctx context.Context, q pgxQuerier, orderID int) ([]DispatchOrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_code, product_name, quantity, returned_quantity,
		       unit_cost, landed_price, exchange_rate, items_per_packet, packets, composition
		FROM dispatch_order_items
		WHERE order_id = $1
		ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []DispatchOrderItem
	for rows.Next() {
		var i DispatchOrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.ProductCode, &i.ProductName,
			&i.Quantity, &i.ReturnedQuantity, &i.UnitCost, &i.LandedPrice, &i.ExchangeRate,
			&i.ItemsPerPacket, &i.Packets, &i.Composition); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// nextOrderNumberTx allocates a gapless per-supplier sequence number via an
// upsert on the sequence row; the row lock it takes doubles as the guard
// against two confirmations minting the same number.
func (s *OrderService) nextOrderNumberTx(ctx context.Context, tx pgx.Tx, supplierID int) (string, error) {
	var code string
	err := tx.QueryRow(ctx, `SELECT code FROM suppliers WHERE id = $1`, supplierID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("supplier %d not found", supplierID)
		}
		return "", fmt.Errorf("fetch supplier %d: %w", supplierID, err)
	}

	var n int
	err = tx.QueryRow(ctx, `
		INSERT INTO order_sequences (supplier_id, last_number)
		VALUES ($1, 1)
		ON CONFLICT (supplier_id) DO UPDATE SET last_number = order_sequences.last_number + 1
		RETURNING last_number`,
		supplierID,
	).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("advance order sequence for supplier %d: %w", supplierID, err)
	}
	return fmt.Sprintf("DO-%s-%05d", code, n), nil
}
