package app

import (
	"github.com/shopspring/decimal"

	"fashion-backend/internal/core"
)

// SupplierResult pairs a supplier with its live ledger balance. Positive
// means the business owes the supplier.
type SupplierResult struct {
	Supplier core.Supplier   `json:"supplier"`
	Balance  decimal.Decimal `json:"balance"`
}

// OrderResult is an order with its derived money state: live value from
// current item rows, payments posted against it, and what is still owed.
type OrderResult struct {
	Order       *core.DispatchOrder `json:"order"`
	LiveValue   decimal.Decimal     `json:"live_value"`
	Payments    *core.OrderPayments `json:"payments"`
	ReturnTotal decimal.Decimal     `json:"return_total"`
	Remaining   decimal.Decimal     `json:"remaining"`
}

// ConfirmResult is what a confirmation posted.
type ConfirmResult struct {
	Order         *core.DispatchOrder `json:"order"`
	OrderValue    decimal.Decimal     `json:"order_value"`
	PaymentsTotal decimal.Decimal     `json:"payments_total"`
	CreditApplied decimal.Decimal     `json:"credit_applied"`
}

// CreditResult reports a credit application.
type CreditResult struct {
	OrderID int             `json:"order_id"`
	Applied decimal.Decimal `json:"applied"`
}

// StatementResult is a chronological statement plus its closing balance.
type StatementResult struct {
	EntityType     core.EntityType      `json:"entity_type"`
	EntityID       int                  `json:"entity_id"`
	Lines          []core.StatementLine `json:"lines"`
	ClosingBalance decimal.Decimal      `json:"closing_balance"`
}
