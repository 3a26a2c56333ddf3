package app

import (
	"context"

	"github.com/shopspring/decimal"

	"fashion-backend/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, future
// web) call. It decouples presentation from business logic. Implementations
// must contain no fmt.Println, no ANSI codes, and no display logic of any
// kind.
type ApplicationService interface {
	// CreateSupplier registers a new supplier.
	CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*SupplierResult, error)

	// ListSuppliers returns suppliers, each with its current ledger balance.
	ListSuppliers(ctx context.Context, activeOnly bool) ([]SupplierResult, error)

	// CreateLogisticsCompany registers a delivery company.
	CreateLogisticsCompany(ctx context.Context, code, name string) (*core.LogisticsCompany, error)

	// CreateOrder creates a new DRAFT dispatch order.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)

	// ConfirmOrder promotes a DRAFT order to CONFIRMED: assigns a gapless
	// order number, lands stock and packets per item, and posts the purchase
	// debit plus any immediate payments, all in one transaction.
	ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (*ConfirmResult, error)

	// CancelOrder cancels a DRAFT order.
	CancelOrder(ctx context.Context, orderID int) error

	// GetOrder returns one order with its live value and settlement state.
	GetOrder(ctx context.Context, orderID int) (*OrderResult, error)

	// ListOrders returns a supplier's orders, optionally filtered by status
	// ("" means all).
	ListOrders(ctx context.Context, supplierID int, status core.OrderStatus) ([]core.DispatchOrder, error)

	// DistributePayment spreads a lump supplier payment across outstanding
	// orders oldest-confirmed-first; the surplus becomes an advance credit.
	DistributePayment(ctx context.Context, req DistributePaymentRequest) (*core.DistributionReport, error)

	// DistributeLogisticsCharge pays down a logistics company's accumulated
	// delivery charges the same way.
	DistributeLogisticsCharge(ctx context.Context, req DistributePaymentRequest) (*core.DistributionReport, error)

	// ApplyCredit settles an order against the supplier's standing credit.
	ApplyCredit(ctx context.Context, supplierID, orderID int, createdBy string) (*CreditResult, error)

	// GetStatement returns a chronological account statement with running
	// balance. fromDate and toDate are optional YYYY-MM-DD strings.
	GetStatement(ctx context.Context, entityType core.EntityType, entityID int, fromDate, toDate string) (*StatementResult, error)

	// AddStock records a manual stock-in outside any order (opening stock,
	// found stock).
	AddStock(ctx context.Context, req AddStockRequest) (int, error)

	// ConsumeStock takes stock out oldest batch first, valued at each
	// batch's own cost price.
	ConsumeStock(ctx context.Context, req ConsumeStockRequest) (*core.ConsumptionResult, error)

	// ConsumeFromBatch takes stock out of one named batch; an over-ask is
	// clamped to what the batch still holds.
	ConsumeFromBatch(ctx context.Context, req ConsumeBatchRequest) (*core.BatchConsumption, error)

	// AppendEntry posts one raw ledger entry (adjustments, delivery
	// charges). Most entries arrive through the order and payment flows
	// instead.
	AppendEntry(ctx context.Context, e core.EntryInput) (int, error)

	// GetBalance derives the entity's balance from its entries.
	GetBalance(ctx context.Context, entityType core.EntityType, entityID int) (decimal.Decimal, error)

	// GetOrderRemaining derives what is still owed on an order from its
	// live value minus payments and returns.
	GetOrderRemaining(ctx context.Context, orderID int) (decimal.Decimal, error)

	// GetStock returns the product's full inventory aggregate.
	GetStock(ctx context.Context, productID int) (*core.InventoryRecord, error)

	// GetMovements returns the product's movement audit trail, newest first.
	GetMovements(ctx context.Context, productID, limit int) ([]core.StockMovement, error)

	// ReserveVariant, ReleaseVariant and ReduceVariant operate on one
	// (size, color) cell of a product's composition.
	ReserveVariant(ctx context.Context, req VariantRequest) error
	ReleaseVariant(ctx context.Context, req VariantRequest) error
	ReduceVariant(ctx context.Context, req VariantRequest) error

	// ValidateSync compares inventory stock against the packet warehouse.
	ValidateSync(ctx context.Context, productID int) (*core.SyncReport, error)

	// ReconcileStock rewrites inventory stock from the packet count.
	ReconcileStock(ctx context.Context, productID int, createdBy string) (*core.SyncReport, error)

	// LowStockAlerts lists products at or below a stock threshold, on both
	// inventory and packet granularity. A positive threshold overrides the
	// per-product reorder levels; zero falls back to them.
	LowStockAlerts(ctx context.Context, threshold decimal.Decimal) ([]core.LowStockAlert, error)

	// CreateReturn files a PENDING return against a confirmed order.
	CreateReturn(ctx context.Context, req CreateReturnRequest) (*core.OrderReturn, error)

	// ApproveReturn executes a pending return: pulls stock from its batch
	// and posts the return credit at the batch's cost price.
	ApproveReturn(ctx context.Context, returnID int, approvedBy string) (*core.OrderReturn, error)

	// RejectReturn closes a pending return with no effect.
	RejectReturn(ctx context.Context, returnID int) error
}
