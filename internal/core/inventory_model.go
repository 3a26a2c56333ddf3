package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryRecord is the per-product stock aggregate. CurrentStock must equal
// the sum of batch remaining quantities within the sync tolerance; the
// StockSyncService checks that invariant against the packet breakdown.
type InventoryRecord struct {
	ID               int             `json:"id"`
	ProductID        int             `json:"product_id"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	ReservedStock    decimal.Decimal `json:"reserved_stock"`
	AverageCostPrice decimal.Decimal `json:"average_cost_price"`
	MinStockLevel    decimal.Decimal `json:"min_stock_level"`
	MaxStockLevel    decimal.Decimal `json:"max_stock_level"`
	ReorderLevel     decimal.Decimal `json:"reorder_level"`
	UpdatedAt        time.Time       `json:"updated_at"`

	Batches  []PurchaseBatch `json:"purchase_batches,omitempty"`
	Variants []Variant       `json:"variant_composition,omitempty"`
}

// AvailableStock is the unreserved portion of current stock.
func (r *InventoryRecord) AvailableStock() decimal.Decimal {
	return r.CurrentStock.Sub(r.ReservedStock)
}

// NeedsReorder reports whether current stock has dropped to the reorder level.
func (r *InventoryRecord) NeedsReorder() bool {
	return !r.ReorderLevel.IsZero() && r.CurrentStock.LessThanOrEqual(r.ReorderLevel)
}

// PurchaseBatch is one stock-in event with its own cost basis. Batches are
// created only by confirmed stock-in, consumed FIFO, and never deleted.
type PurchaseBatch struct {
	ID                int             `json:"id"`
	ProductID         int             `json:"product_id"`
	DispatchOrderID   *int            `json:"dispatch_order_id,omitempty"`
	SupplierID        int             `json:"supplier_id"`
	PurchaseDate      time.Time       `json:"purchase_date"`
	Quantity          decimal.Decimal `json:"quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	LandedPrice       decimal.Decimal `json:"landed_price"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Variant is one (size, color) cell of a product's composition.
type Variant struct {
	ID               int             `json:"id"`
	ProductID        int             `json:"product_id"`
	Size             string          `json:"size"`
	Color            string          `json:"color"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity"`
}

// VariantInput is an incoming (size, color, quantity) tuple on stock-in.
type VariantInput struct {
	Size     string          `json:"size"`
	Color    string          `json:"color"`
	Quantity decimal.Decimal `json:"quantity"`
}

// StockMovement is one row of the append-only audit log. Rows are never
// mutated; corrections are new adjustment rows.
type StockMovement struct {
	ID           int             `json:"id"`
	ProductID    int             `json:"product_id"`
	MovementType MovementType    `json:"movement_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Reference    string          `json:"reference"`
	ReferenceID  *int            `json:"reference_id,omitempty"`
	CreatedBy    string          `json:"created_by"`
	MovementDate time.Time       `json:"movement_date"`
	Notes        *string         `json:"notes,omitempty"`
}

// MovementRef carries the audit context a stock mutation is recorded under.
type MovementRef struct {
	Reference   string
	ReferenceID *int
	CreatedBy   string
	Notes       string
}
