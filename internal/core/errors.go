package core

import "errors"

// Validation errors are returned to the caller for translation into 4xx
// responses by the transport layer. Integrity errors (ErrBatchExhaustion)
// abort the whole operation and roll back the surrounding transaction.
var (
	// ErrInsufficientStock: requested quantity exceeds the product's available
	// aggregate stock (current - reserved).
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrBatchExhaustion: the FIFO walk ran out of batches even though the
	// availability check passed. The aggregate stock and the batch breakdown
	// disagree — a data-integrity bug, never retried silently.
	ErrBatchExhaustion = errors.New("batch walk exhausted before request was satisfied")

	// ErrBatchNotFound: targeted batch consumption named a batch that does not
	// exist for the product.
	ErrBatchNotFound = errors.New("purchase batch not found")

	// ErrVariantNotFound: no (size, color) row exists for the product.
	ErrVariantNotFound = errors.New("variant not found")

	// ErrInsufficientVariantStock: requested quantity exceeds the variant's
	// unreserved quantity.
	ErrInsufficientVariantStock = errors.New("insufficient variant stock")

	// ErrUnsupportedReconciliationDirection: reconciling packets from the
	// aggregate inventory count is rejected — an aggregate cannot be
	// redistributed into per-variant packet compositions.
	ErrUnsupportedReconciliationDirection = errors.New("unsupported reconciliation direction")

	// ErrInvalidLedgerEntry: the entry is missing its entity reference, or is
	// not exactly one of a debit or a credit row.
	ErrInvalidLedgerEntry = errors.New("invalid ledger entry")
)
