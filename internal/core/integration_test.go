package core_test

import (
	"context"
	"os"
	"testing"

	"fashion-backend/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration
	// tests; the schema must already be migrated (go run ./cmd/migrate).
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE ledger_entries, order_returns, stock_movements, product_variants,
			purchase_batches, inventory_records, packet_stocks, dispatch_order_items,
			dispatch_orders, order_sequences, products, logistics_companies, suppliers
		RESTART IDENTITY CASCADE;

		INSERT INTO suppliers (code, name, is_active) VALUES ('AZM', 'Azim Textiles', TRUE);
		INSERT INTO logistics_companies (code, name, is_active) VALUES ('TCS', 'TCS Logistics', TRUE);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

type services struct {
	ledger    *core.Ledger
	inventory *core.InventoryService
	orders    *core.OrderService
	payments  *core.PaymentService
	returns   *core.ReturnService
	sync      *core.StockSyncService
	products  *core.ProductService
	packets   *core.PacketStockService
}

func newServices(pool *pgxpool.Pool) *services {
	log := zap.NewNop()
	ledger := core.NewLedger(pool)
	packets := core.NewPacketStockService(pool)
	return &services{
		ledger:    ledger,
		inventory: core.NewInventoryService(pool, log),
		orders:    core.NewOrderService(pool, log),
		payments:  core.NewPaymentService(pool, ledger, log),
		returns:   core.NewReturnService(pool, log),
		sync:      core.NewStockSyncService(pool, packets, log),
		products:  core.NewProductService(pool),
		packets:   packets,
	}
}

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func confirmSingleItemOrder(t *testing.T, ctx context.Context, s *services, code string, qty, unitCost string) *core.ConfirmationResult {
	t.Helper()
	order, err := s.orders.CreateOrder(ctx, core.OrderInput{
		SupplierID: 1,
		CreatedBy:  "test",
		Items: []core.OrderItemInput{
			{ProductCode: code, ProductName: code, Quantity: mustDecimal(qty), UnitCost: mustDecimal(unitCost)},
		},
	})
	require.NoError(t, err)

	result, err := s.orders.ConfirmOrder(ctx, order.ID, nil, "test",
		s.inventory, s.ledger, s.payments, s.products, s.packets)
	require.NoError(t, err)
	return result
}

func TestLedger_BalanceAndIdempotency(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	_, err := s.ledger.Append(ctx, core.EntryInput{
		EntityType: core.EntitySupplier, EntityID: 1,
		TransactionType: core.TxnPurchase, Debit: mustDecimal("1000"), CreatedBy: "test",
	})
	require.NoError(t, err)

	key := uuid.NewString()
	_, err = s.ledger.Append(ctx, core.EntryInput{
		EntityType: core.EntitySupplier, EntityID: 1,
		TransactionType: core.TxnPayment, Credit: mustDecimal("400"),
		PaymentMethod: core.PayCash, CreatedBy: "test", IdempotencyKey: key,
	})
	require.NoError(t, err)

	balance, err := s.ledger.GetBalance(ctx, core.EntitySupplier, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal("600")), "got %s", balance)

	// Replaying the same idempotency key must fail, not double-post.
	_, err = s.ledger.Append(ctx, core.EntryInput{
		EntityType: core.EntitySupplier, EntityID: 1,
		TransactionType: core.TxnPayment, Credit: mustDecimal("400"),
		PaymentMethod: core.PayCash, CreatedBy: "test", IdempotencyKey: key,
	})
	require.Error(t, err)

	balance, err = s.ledger.GetBalance(ctx, core.EntitySupplier, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal("600")))
}

func TestOrderConfirmation_Flow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	order, err := s.orders.CreateOrder(ctx, core.OrderInput{
		SupplierID: 1,
		Discount:   mustDecimal("100"),
		CreatedBy:  "test",
		Items: []core.OrderItemInput{
			{ProductCode: "SHIRT", ProductName: "Shirt", Quantity: mustDecimal("10"), UnitCost: mustDecimal("100"), ItemsPerPacket: 5, Packets: 2,
				Composition: []core.VariantInput{
					{Size: "M", Color: "black", Quantity: mustDecimal("6")},
					{Size: "L", Color: "black", Quantity: mustDecimal("4")},
				}},
			{ProductCode: "PANT", ProductName: "Pant", Quantity: mustDecimal("5"), UnitCost: mustDecimal("200")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, core.OrderDraft, order.Status)

	result, err := s.orders.ConfirmOrder(ctx, order.ID,
		[]core.PaymentInput{{Amount: mustDecimal("600"), Method: core.PayCash}},
		"test", s.inventory, s.ledger, s.payments, s.products, s.packets)
	require.NoError(t, err)

	// 10*100 + 5*200 - 100 discount = 1900.
	assert.True(t, result.OrderValue.Equal(mustDecimal("1900")), "got %s", result.OrderValue)
	require.NotNil(t, result.Order.OrderNumber)
	assert.Equal(t, "DO-AZM-00001", *result.Order.OrderNumber)
	assert.Equal(t, core.OrderConfirmed, result.Order.Status)
	assert.NotNil(t, result.Order.ConfirmedAt)

	// Products were created from the line items.
	shirt, err := s.products.GetByCode(ctx, 1, "SHIRT")
	require.NoError(t, err)

	// Inventory aggregate matches the batch breakdown.
	rec, err := s.inventory.GetInventory(ctx, shirt.ID)
	require.NoError(t, err)
	assert.True(t, rec.CurrentStock.Equal(mustDecimal("10")))
	require.Len(t, rec.Batches, 1)
	assert.True(t, rec.Batches[0].RemainingQuantity.Equal(mustDecimal("10")))
	assert.True(t, rec.AverageCostPrice.Equal(mustDecimal("100")))

	// The item's size/color breakdown was merged into the composition.
	require.Len(t, rec.Variants, 2)
	for _, v := range rec.Variants {
		if v.Size == "M" && v.Color == "black" {
			assert.True(t, v.Quantity.Equal(mustDecimal("6")))
		}
	}

	// Packet rows landed in the same transaction.
	packetItems, err := s.packets.TotalItems(ctx, shirt.ID)
	require.NoError(t, err)
	assert.True(t, packetItems.Equal(mustDecimal("10")))

	// Money: live value 1900, paid 600, remaining 1300.
	live, err := s.orders.LiveOrderValue(ctx, order.ID)
	require.NoError(t, err)
	remaining, err := s.ledger.GetOrderRemainingBalance(ctx, order.ID, live)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(mustDecimal("1300")), "got %s", remaining)

	balance, err := s.ledger.GetBalance(ctx, core.EntitySupplier, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal("1300")))
}

func TestConfirmOrder_OnlyDrafts(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	result := confirmSingleItemOrder(t, ctx, s, "CAP", "4", "50")

	_, err := s.orders.ConfirmOrder(ctx, result.Order.ID, nil, "test",
		s.inventory, s.ledger, s.payments, s.products, s.packets)
	require.Error(t, err)
}

func TestDistributePayment_Persistence(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	first := confirmSingleItemOrder(t, ctx, s, "SHIRT", "5", "100") // value 500
	second := confirmSingleItemOrder(t, ctx, s, "PANT", "3", "100") // value 300

	report, err := s.payments.DistributePayment(ctx, 1, mustDecimal("600"), core.PayBank, "TRX-1", "test")
	require.NoError(t, err)
	require.Len(t, report.Allocations, 2)
	assert.Equal(t, first.Order.ID, report.Allocations[0].OrderID)
	assert.True(t, report.Allocations[0].AmountApplied.Equal(mustDecimal("500")))
	assert.True(t, report.Allocations[0].FullyPaid)
	assert.True(t, report.Allocations[1].AmountApplied.Equal(mustDecimal("100")))
	assert.True(t, report.AdvanceCredit.IsZero())

	payments, err := s.ledger.GetOrderPayments(ctx, second.Order.ID)
	require.NoError(t, err)
	assert.True(t, payments.Bank.Equal(mustDecimal("100")))
	assert.True(t, payments.Total.Equal(mustDecimal("100")))

	// A second payment larger than the debt leaves an advance credit and a
	// negative supplier balance.
	report, err = s.payments.DistributePayment(ctx, 1, mustDecimal("1000"), core.PayCash, "TRX-2", "test")
	require.NoError(t, err)
	require.Len(t, report.Allocations, 1)
	assert.True(t, report.Allocations[0].AmountApplied.Equal(mustDecimal("200")))
	assert.True(t, report.AdvanceCredit.Equal(mustDecimal("800")))

	balance, err := s.ledger.GetBalance(ctx, core.EntitySupplier, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal("-800")), "got %s", balance)

	// The standing credit then settles the next confirmed order on its own.
	third := confirmSingleItemOrder(t, ctx, s, "SCARF", "3", "100") // value 300
	assert.True(t, third.CreditApplied.Equal(mustDecimal("300")))

	live, err := s.orders.LiveOrderValue(ctx, third.Order.ID)
	require.NoError(t, err)
	remaining, err := s.ledger.GetOrderRemainingBalance(ctx, third.Order.ID, live)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero(), "got %s", remaining)
}

func TestReconcile_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	_ = confirmSingleItemOrder(t, ctx, s, "SHIRT", "30", "100")
	shirt, err := s.products.GetByCode(ctx, 1, "SHIRT")
	require.NoError(t, err)

	// Simulate drift: the packet warehouse holds 3 packets of 12 = 36 items.
	_, err = pool.Exec(ctx, `
		INSERT INTO packet_stocks (product_id, barcode, items_per_packet, available_packets)
		VALUES ($1, $2, 12, 3)`, shirt.ID, uuid.NewString())
	require.NoError(t, err)

	sync, err := s.sync.ValidateSync(ctx, shirt.ID)
	require.NoError(t, err)
	assert.False(t, sync.IsValid)
	assert.True(t, sync.Difference.Equal(mustDecimal("-6")))

	// A product with no inventory record reads as zero stock, not an error.
	unknown, err := s.sync.ValidateSync(ctx, 99999)
	require.NoError(t, err)
	assert.True(t, unknown.InventoryStock.IsZero())

	report, err := s.sync.Reconcile(ctx, shirt.ID, core.SourcePackets, "test")
	require.NoError(t, err)
	assert.True(t, report.InventoryStock.Equal(mustDecimal("36")))

	var adjustments int
	err = pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM stock_movements WHERE product_id = $1 AND movement_type = 'adjustment'`,
		shirt.ID).Scan(&adjustments)
	require.NoError(t, err)
	assert.Equal(t, 1, adjustments)

	// Second run has no delta: no extra adjustment row.
	_, err = s.sync.Reconcile(ctx, shirt.ID, core.SourcePackets, "test")
	require.NoError(t, err)
	err = pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM stock_movements WHERE product_id = $1 AND movement_type = 'adjustment'`,
		shirt.ID).Scan(&adjustments)
	require.NoError(t, err)
	assert.Equal(t, 1, adjustments)

	// The inverse direction is not supported.
	_, err = s.sync.Reconcile(ctx, shirt.ID, core.SourceInventory, "test")
	assert.ErrorIs(t, err, core.ErrUnsupportedReconciliationDirection)
}

func TestReturnFlow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	result := confirmSingleItemOrder(t, ctx, s, "SHIRT", "10", "100") // value 1000
	shirt, err := s.products.GetByCode(ctx, 1, "SHIRT")
	require.NoError(t, err)
	rec, err := s.inventory.GetInventory(ctx, shirt.ID)
	require.NoError(t, err)
	require.Len(t, rec.Batches, 1)
	batchID := rec.Batches[0].ID

	ret, err := s.returns.CreateReturn(ctx, core.ReturnInput{
		OrderID:   result.Order.ID,
		ProductID: shirt.ID,
		BatchID:   batchID,
		Quantity:  mustDecimal("3"),
		Reason:    "damaged",
		CreatedBy: "test",
	})
	require.NoError(t, err)
	assert.Equal(t, core.ReturnPending, ret.Status)

	approved, err := s.returns.ApproveReturn(ctx, ret.ID, "test", s.inventory, s.ledger)
	require.NoError(t, err)
	assert.Equal(t, core.ReturnApproved, approved.Status)
	require.NotNil(t, approved.Amount)
	assert.True(t, approved.Amount.Equal(mustDecimal("300")))

	// Stock and batch drop together.
	rec, err = s.inventory.GetInventory(ctx, shirt.ID)
	require.NoError(t, err)
	assert.True(t, rec.CurrentStock.Equal(mustDecimal("7")))
	assert.True(t, rec.Batches[0].RemainingQuantity.Equal(mustDecimal("7")))

	// Live value reflects the reduced item quantity: (10-3)*100 = 700.
	live, err := s.orders.LiveOrderValue(ctx, result.Order.ID)
	require.NoError(t, err)
	assert.True(t, live.Equal(mustDecimal("700")))

	returnTotal, err := s.ledger.GetOrderReturnTotal(ctx, result.Order.ID)
	require.NoError(t, err)
	assert.True(t, returnTotal.Equal(mustDecimal("300")))

	balance, err := s.ledger.GetBalance(ctx, core.EntitySupplier, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal("700")), "purchase 1000 - return 300")

	// A return exceeding what the item still holds is rejected at approval.
	ret2, err := s.returns.CreateReturn(ctx, core.ReturnInput{
		OrderID: result.Order.ID, ProductID: shirt.ID, BatchID: batchID,
		Quantity: mustDecimal("8"), CreatedBy: "test",
	})
	require.NoError(t, err)
	_, err = s.returns.ApproveReturn(ctx, ret2.ID, "test", s.inventory, s.ledger)
	require.Error(t, err)
}

func TestConsumeFIFO_Persistence(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	confirmSingleItemOrder(t, ctx, s, "SHIRT", "5", "10")
	confirmSingleItemOrder(t, ctx, s, "SHIRT", "5", "20")
	shirt, err := s.products.GetByCode(ctx, 1, "SHIRT")
	require.NoError(t, err)

	result, err := s.inventory.ConsumeFIFO(ctx, shirt.ID, mustDecimal("7"), core.MovementRef{
		Reference: "sale", CreatedBy: "test",
	})
	require.NoError(t, err)
	assert.True(t, result.TotalCost.Equal(mustDecimal("90")))

	rec, err := s.inventory.GetInventory(ctx, shirt.ID)
	require.NoError(t, err)
	assert.True(t, rec.CurrentStock.Equal(mustDecimal("3")))
	// Only 20-cost stock remains, so the average follows.
	assert.True(t, rec.AverageCostPrice.Equal(mustDecimal("20")))

	// Over-asking beyond available stock fails up front.
	_, err = s.inventory.ConsumeFIFO(ctx, shirt.ID, mustDecimal("4"), core.MovementRef{CreatedBy: "test"})
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
}

func TestConsumeFromBatch_Clamps(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	confirmSingleItemOrder(t, ctx, s, "SHIRT", "5", "10")
	shirt, err := s.products.GetByCode(ctx, 1, "SHIRT")
	require.NoError(t, err)
	rec, err := s.inventory.GetInventory(ctx, shirt.ID)
	require.NoError(t, err)
	batchID := rec.Batches[0].ID

	consumption, err := s.inventory.ConsumeFromBatch(ctx, shirt.ID, batchID, mustDecimal("8"), core.MovementRef{CreatedBy: "test"})
	require.NoError(t, err)
	assert.True(t, consumption.Clamped)
	assert.True(t, consumption.Consumed.Equal(mustDecimal("5")))
	assert.True(t, consumption.CostPrice.Equal(mustDecimal("10")))

	_, err = s.inventory.ConsumeFromBatch(ctx, shirt.ID, 99999, mustDecimal("1"), core.MovementRef{CreatedBy: "test"})
	assert.ErrorIs(t, err, core.ErrBatchNotFound)
}

func TestVariantLifecycle_Persistence(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	confirmSingleItemOrder(t, ctx, s, "SHIRT", "10", "100")
	shirt, err := s.products.GetByCode(ctx, 1, "SHIRT")
	require.NoError(t, err)

	// Manual stock-in carrying the size/color breakdown.
	_, err = s.inventory.AddBatch(ctx, core.BatchInput{
		ProductID:  shirt.ID,
		SupplierID: 1,
		Quantity:   mustDecimal("6"),
		CostPrice:  mustDecimal("100"),
		Composition: []core.VariantInput{
			{Size: "M", Color: "black", Quantity: mustDecimal("4")},
			{Size: "L", Color: "black", Quantity: mustDecimal("2")},
		},
		Ref: core.MovementRef{Reference: "opening", CreatedBy: "test"},
	})
	require.NoError(t, err)

	require.NoError(t, s.inventory.ReserveVariant(ctx, shirt.ID, "M", "black", mustDecimal("3")))
	err = s.inventory.ReserveVariant(ctx, shirt.ID, "M", "black", mustDecimal("2"))
	assert.ErrorIs(t, err, core.ErrInsufficientVariantStock)

	require.NoError(t, s.inventory.ReleaseVariant(ctx, shirt.ID, "M", "black", mustDecimal("1")))
	require.NoError(t, s.inventory.ReduceVariant(ctx, shirt.ID, "M", "black", mustDecimal("2"),
		core.MovementRef{Reference: "sold", CreatedBy: "test"}))

	rec, err := s.inventory.GetInventory(ctx, shirt.ID)
	require.NoError(t, err)
	assert.True(t, rec.CurrentStock.Equal(mustDecimal("14")), "16 - 2 reduced, got %s", rec.CurrentStock)

	for _, v := range rec.Variants {
		if v.Size == "M" && v.Color == "black" {
			assert.True(t, v.Quantity.Equal(mustDecimal("2")))
			assert.True(t, v.ReservedQuantity.Equal(mustDecimal("2")))
		}
	}

	err = s.inventory.ReserveVariant(ctx, shirt.ID, "XL", "red", mustDecimal("1"))
	assert.ErrorIs(t, err, core.ErrVariantNotFound)
}

func TestLogisticsCharge_Distribution(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	first := confirmSingleItemOrder(t, ctx, s, "SHIRT", "5", "100")
	second := confirmSingleItemOrder(t, ctx, s, "PANT", "5", "100")

	// Delivery charges booked against each order.
	for orderID, amount := range map[int]string{first.Order.ID: "80", second.Order.ID: "50"} {
		ref := orderID
		_, err := s.ledger.Append(ctx, core.EntryInput{
			EntityType: core.EntityLogistics, EntityID: 1,
			TransactionType: core.TxnCharge, ReferenceID: &ref,
			Debit: mustDecimal(amount), CreatedBy: "test",
		})
		require.NoError(t, err)
	}

	report, err := s.payments.DistributeLogisticsCharge(ctx, 1, mustDecimal("100"), core.PayCash, "", "test")
	require.NoError(t, err)
	require.Len(t, report.Allocations, 2)
	assert.Equal(t, first.Order.ID, report.Allocations[0].OrderID)
	assert.True(t, report.Allocations[0].AmountApplied.Equal(mustDecimal("80")))
	assert.True(t, report.Allocations[1].AmountApplied.Equal(mustDecimal("20")))

	balance, err := s.ledger.GetBalance(ctx, core.EntityLogistics, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal("30")), "130 charged - 100 paid")

	// The delivery-charge payment stays on the logistics side: the supplier
	// order's own settlement must be untouched.
	payments, err := s.ledger.GetOrderPayments(ctx, first.Order.ID)
	require.NoError(t, err)
	assert.True(t, payments.Total.IsZero(), "got %s", payments.Total)

	live, err := s.orders.LiveOrderValue(ctx, first.Order.ID)
	require.NoError(t, err)
	remaining, err := s.ledger.GetOrderRemainingBalance(ctx, first.Order.ID, live)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(mustDecimal("500")), "got %s", remaining)

	supplierBalance, err := s.ledger.GetBalance(ctx, core.EntitySupplier, 1)
	require.NoError(t, err)
	assert.True(t, supplierBalance.Equal(mustDecimal("1000")), "got %s", supplierBalance)
}

func TestLogisticsCharge_SkipsUnconfirmedOrders(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	confirmed := confirmSingleItemOrder(t, ctx, s, "SHIRT", "5", "100")
	draft, err := s.orders.CreateOrder(ctx, core.OrderInput{
		SupplierID: 1,
		CreatedBy:  "test",
		Items: []core.OrderItemInput{
			{ProductCode: "PANT", ProductName: "Pant", Quantity: mustDecimal("5"), UnitCost: mustDecimal("100")},
		},
	})
	require.NoError(t, err)

	for orderID, amount := range map[int]string{confirmed.Order.ID: "30", draft.ID: "40"} {
		ref := orderID
		_, err := s.ledger.Append(ctx, core.EntryInput{
			EntityType: core.EntityLogistics, EntityID: 1,
			TransactionType: core.TxnCharge, ReferenceID: &ref,
			Debit: mustDecimal(amount), CreatedBy: "test",
		})
		require.NoError(t, err)
	}

	// A charge referencing an order that was never confirmed cannot be
	// ranked; the payment settles the confirmed charge and holds the rest
	// as advance credit.
	report, err := s.payments.DistributeLogisticsCharge(ctx, 1, mustDecimal("70"), core.PayCash, "", "test")
	require.NoError(t, err)
	require.Len(t, report.Allocations, 1)
	assert.Equal(t, confirmed.Order.ID, report.Allocations[0].OrderID)
	assert.True(t, report.Allocations[0].AmountApplied.Equal(mustDecimal("30")))
	assert.True(t, report.AdvanceCredit.Equal(mustDecimal("40")))
}

func TestLowStockAlerts_BothGranularities(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newServices(pool)
	ctx := context.Background()

	confirmSingleItemOrder(t, ctx, s, "SHIRT", "4", "100")
	shirt, err := s.products.GetByCode(ctx, 1, "SHIRT")
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE inventory_records SET reorder_level = 10 WHERE product_id = $1`, shirt.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO packet_stocks (product_id, barcode, items_per_packet, available_packets)
		VALUES ($1, $2, 2, 1)`, shirt.ID, uuid.NewString())
	require.NoError(t, err)

	// Reorder level 10: inventory holds 4, packets flatten to 2 — both sides
	// breach.
	alerts, err := s.sync.LowStockAlerts(ctx, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, core.GranularityInventory, alerts[0].Granularity)
	assert.True(t, alerts[0].Stock.Equal(mustDecimal("4")))
	assert.Equal(t, core.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, core.GranularityPackets, alerts[1].Granularity)
	assert.True(t, alerts[1].Stock.Equal(mustDecimal("2")))

	// An explicit threshold overrides the reorder level: inventory's 4 is
	// above 3, only the packet side still breaches.
	alerts, err = s.sync.LowStockAlerts(ctx, mustDecimal("3"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, core.GranularityPackets, alerts[0].Granularity)
	assert.True(t, alerts[0].Threshold.Equal(mustDecimal("3")))
}
