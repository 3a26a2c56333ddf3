package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, so query helpers
// can run standalone or inside a caller-owned transaction.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type EntityType string

const (
	EntitySupplier  EntityType = "supplier"
	EntityBuyer     EntityType = "buyer"
	EntityLogistics EntityType = "logistics"
)

type TransactionType string

const (
	TxnPurchase          TransactionType = "purchase"
	TxnPayment           TransactionType = "payment"
	TxnReturn            TransactionType = "return"
	TxnCreditApplication TransactionType = "credit_application"
	TxnAdjustment        TransactionType = "adjustment"
	TxnCharge            TransactionType = "charge"
)

type PaymentMethod string

const (
	PayCash PaymentMethod = "cash"
	PayBank PaymentMethod = "bank"
)

type MovementType string

const (
	MoveIn         MovementType = "in"
	MoveOut        MovementType = "out"
	MoveAdjustment MovementType = "adjustment"
	MoveTransfer   MovementType = "transfer"
)

type OrderStatus string

const (
	OrderDraft     OrderStatus = "DRAFT"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "PENDING"
	ReturnApproved ReturnStatus = "APPROVED"
	ReturnRejected ReturnStatus = "REJECTED"
)

type Supplier struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type LogisticsCompany struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is the catalog record. CostPrice is the current unit basis written
// back on every confirmed stock-in; valuation history lives in the batches.
type Product struct {
	ID         int             `json:"id"`
	SupplierID int             `json:"supplier_id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DispatchOrder is a supplier purchase order. Its monetary total is never
// stored: the live value is recomputed from item quantities (net of approved
// returns) minus the discount.
type DispatchOrder struct {
	ID          int                 `json:"id"`
	SupplierID  int                 `json:"supplier_id"`
	OrderNumber *string             `json:"order_number,omitempty"`
	Status      OrderStatus         `json:"status"`
	Discount    decimal.Decimal     `json:"discount"`
	Notes       *string             `json:"notes,omitempty"`
	CreatedBy   string              `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	ConfirmedAt *time.Time          `json:"confirmed_at,omitempty"`
	Items       []DispatchOrderItem `json:"items"`
}

type DispatchOrderItem struct {
	ID               int             `json:"id"`
	OrderID          int             `json:"order_id"`
	ProductID        *int            `json:"product_id,omitempty"`
	ProductCode      string          `json:"product_code"`
	ProductName      string          `json:"product_name"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	LandedPrice      decimal.Decimal `json:"landed_price"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	ItemsPerPacket   int             `json:"items_per_packet"`
	Packets          int             `json:"packets"`
	Composition      []VariantInput  `json:"composition,omitempty"`
}

// OrderReturn records a batch-aware return against a confirmed order item.
// Amount is fixed at approval time from the batch cost price.
type OrderReturn struct {
	ID         int              `json:"id"`
	OrderID    int              `json:"order_id"`
	ProductID  int              `json:"product_id"`
	BatchID    int              `json:"batch_id"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Status     ReturnStatus     `json:"status"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Reason     *string          `json:"reason,omitempty"`
	CreatedBy  string           `json:"created_by"`
	CreatedAt  time.Time        `json:"created_at"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`
}
