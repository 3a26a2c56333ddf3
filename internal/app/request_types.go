package app

import (
	"github.com/shopspring/decimal"

	"fashion-backend/internal/core"
)

// CreateSupplierRequest is the input for registering a supplier.
type CreateSupplierRequest struct {
	Code    string
	Name    string
	Address string
	Phone   string
}

// CreateOrderRequest is the input for creating a DRAFT dispatch order.
type CreateOrderRequest struct {
	SupplierID int
	Discount   decimal.Decimal
	Notes      string
	CreatedBy  string
	Items      []OrderItemRequest
}

// OrderItemRequest is a single line within a CreateOrderRequest.
type OrderItemRequest struct {
	ProductCode    string
	ProductName    string
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	LandedPrice    decimal.Decimal
	ExchangeRate   decimal.Decimal // zero means 1
	ItemsPerPacket int
	Packets        int
	Composition    []core.VariantInput
}

// ConfirmOrderRequest confirms a draft, optionally recording payments made
// at the same moment.
type ConfirmOrderRequest struct {
	OrderID   int
	CreatedBy string
	Payments  []PaymentRequest
}

// PaymentRequest is one payment leg.
type PaymentRequest struct {
	Amount  decimal.Decimal
	Method  core.PaymentMethod
	Details string
}

// DistributePaymentRequest is the input for FIFO payment distribution,
// against either a supplier or a logistics company depending on the method
// called.
type DistributePaymentRequest struct {
	EntityID  int
	Amount    decimal.Decimal
	Method    core.PaymentMethod
	Details   string
	CreatedBy string
}

// AddStockRequest records a manual stock-in outside any order.
type AddStockRequest struct {
	ProductID    int
	SupplierID   int
	Quantity     decimal.Decimal
	CostPrice    decimal.Decimal
	LandedPrice  decimal.Decimal
	ExchangeRate decimal.Decimal
	Composition  []core.VariantInput
	Reference    string
	CreatedBy    string
	Notes        string
}

// ConsumeStockRequest takes stock out across batches, oldest first.
type ConsumeStockRequest struct {
	ProductID int
	Quantity  decimal.Decimal
	Reference string
	CreatedBy string
}

// ConsumeBatchRequest takes stock out of one named batch.
type ConsumeBatchRequest struct {
	ProductID int
	BatchID   int
	Quantity  decimal.Decimal
	Reference string
	CreatedBy string
}

// VariantRequest targets one (size, color) cell of a product's composition.
type VariantRequest struct {
	ProductID int
	Size      string
	Color     string
	Quantity  decimal.Decimal
	Reference string
	CreatedBy string
}

// CreateReturnRequest files a return against a confirmed order.
type CreateReturnRequest struct {
	OrderID   int
	ProductID int
	BatchID   int
	Quantity  decimal.Decimal
	Reason    string
	CreatedBy string
}
