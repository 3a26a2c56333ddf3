package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryInput is a ledger entry before insertion. Entries are immutable once
// written: corrections are new entries, never edits.
type EntryInput struct {
	EntityType      EntityType      `json:"entity_type"`
	EntityID        int             `json:"entity_id"`
	TransactionType TransactionType `json:"transaction_type"`
	ReferenceID     *int            `json:"reference_id,omitempty"`
	ReferenceModel  string          `json:"reference_model,omitempty"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	EntryDate       time.Time       `json:"entry_date"`
	PaymentMethod   PaymentMethod   `json:"payment_method,omitempty"`
	PaymentDetails  string          `json:"payment_details,omitempty"`
	CreatedBy       string          `json:"created_by"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	Description     string          `json:"description,omitempty"`
}

// Normalize fills defaults so callers can leave incidental fields zero.
func (e *EntryInput) Normalize() {
	e.ReferenceModel = strings.TrimSpace(e.ReferenceModel)
	e.Description = strings.TrimSpace(e.Description)
	if e.EntryDate.IsZero() {
		e.EntryDate = time.Now()
	}
	if e.ReferenceID != nil && e.ReferenceModel == "" {
		e.ReferenceModel = "DispatchOrder"
	}
}

// Validate enforces the ledger's only structural rules: a present entity
// reference and exactly one of debit or credit set. There is no business
// validation here — the ledger is a journal, not a policy layer.
func (e *EntryInput) Validate() error {
	switch e.EntityType {
	case EntitySupplier, EntityBuyer, EntityLogistics:
	default:
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidLedgerEntry, e.EntityType)
	}
	if e.EntityID <= 0 {
		return fmt.Errorf("%w: missing entity id", ErrInvalidLedgerEntry)
	}

	switch e.TransactionType {
	case TxnPurchase, TxnPayment, TxnReturn, TxnCreditApplication, TxnAdjustment, TxnCharge:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidLedgerEntry, e.TransactionType)
	}

	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return fmt.Errorf("%w: debit and credit must be non-negative", ErrInvalidLedgerEntry)
	}
	if e.Debit.IsPositive() && e.Credit.IsPositive() {
		return fmt.Errorf("%w: entry is both a debit (%s) and a credit (%s)",
			ErrInvalidLedgerEntry, e.Debit, e.Credit)
	}
	if e.Debit.IsZero() && e.Credit.IsZero() {
		return fmt.Errorf("%w: entry has neither a debit nor a credit", ErrInvalidLedgerEntry)
	}
	return nil
}

// LedgerEntry is a persisted journal row.
type LedgerEntry struct {
	ID              int             `json:"id"`
	EntityType      EntityType      `json:"entity_type"`
	EntityID        int             `json:"entity_id"`
	TransactionType TransactionType `json:"transaction_type"`
	ReferenceID     *int            `json:"reference_id,omitempty"`
	ReferenceModel  *string         `json:"reference_model,omitempty"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	EntryDate       time.Time       `json:"entry_date"`
	PaymentMethod   *string         `json:"payment_method,omitempty"`
	PaymentDetails  *string         `json:"payment_details,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	Description     *string         `json:"description,omitempty"`
}
