package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Ledger is the append-only journal of debit/credit entries keyed by
// (entity type, entity id). It is the single source of truth for balances:
// every balance is recomputed from entries on read, never cached.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Append inserts one entry in its own transaction.
func (l *Ledger) Append(ctx context.Context, e EntryInput) (int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := l.AppendTx(ctx, tx, e)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit ledger entry: %w", err)
	}
	return id, nil
}

// AppendTx inserts one entry inside the caller's transaction. Use it whenever
// the entry must land atomically with inventory or order state — order
// confirmation, returns, payment distribution.
func (l *Ledger) AppendTx(ctx context.Context, tx pgx.Tx, e EntryInput) (int, error) {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return 0, err
	}

	var refModel, method, details, desc *string
	if e.ReferenceModel != "" {
		refModel = &e.ReferenceModel
	}
	if e.PaymentMethod != "" {
		m := string(e.PaymentMethod)
		method = &m
	}
	if e.PaymentDetails != "" {
		details = &e.PaymentDetails
	}
	if e.Description != "" {
		desc = &e.Description
	}

	var id int
	var err error
	if e.IdempotencyKey != "" {
		err = tx.QueryRow(ctx, `
			INSERT INTO ledger_entries (entity_type, entity_id, transaction_type, reference_id, reference_model,
			                            debit, credit, entry_date, payment_method, payment_details,
			                            created_by, idempotency_key, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (idempotency_key) DO NOTHING
			RETURNING id`,
			e.EntityType, e.EntityID, e.TransactionType, e.ReferenceID, refModel,
			e.Debit, e.Credit, e.EntryDate, method, details, e.CreatedBy, e.IdempotencyKey, desc,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("duplicate ledger entry: idempotency key %s already exists", e.IdempotencyKey)
		}
	} else {
		err = tx.QueryRow(ctx, `
			INSERT INTO ledger_entries (entity_type, entity_id, transaction_type, reference_id, reference_model,
			                            debit, credit, entry_date, payment_method, payment_details,
			                            created_by, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			e.EntityType, e.EntityID, e.TransactionType, e.ReferenceID, refModel,
			e.Debit, e.Credit, e.EntryDate, method, details, e.CreatedBy, desc,
		).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	return id, nil
}

// GetBalance aggregates Σdebit − Σcredit over all entries for the entity.
// Positive means the business owes the entity; negative means the entity owes
// the business (a credit usable against future purchases).
func (l *Ledger) GetBalance(ctx context.Context, entityType EntityType, entityID int) (decimal.Decimal, error) {
	return l.balanceQ(ctx, l.pool, entityType, entityID)
}

func (l *Ledger) balanceQ(ctx context.Context, q pgxQuerier, entityType EntityType, entityID int) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(debit), 0) - COALESCE(SUM(credit), 0)
		FROM ledger_entries
		WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID,
	).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("aggregate balance for %s %d: %w", entityType, entityID, err)
	}
	return balance, nil
}

// OrderPayments is the payment-type total recorded against one order, split
// by method. Cash vs bank is a label on the entry, not a settlement channel.
type OrderPayments struct {
	Cash  decimal.Decimal `json:"cash"`
	Bank  decimal.Decimal `json:"bank"`
	Total decimal.Decimal `json:"total"`
}

// GetOrderPayments aggregates supplier payment and credit_application entries
// referencing the order. Credit applications count toward the paid total but
// under neither cash nor bank. Logistics entries referencing the same order
// are a separate debt (delivery charges) and never settle the purchase.
func (l *Ledger) GetOrderPayments(ctx context.Context, orderID int) (*OrderPayments, error) {
	return l.orderPaymentsQ(ctx, l.pool, orderID)
}

func (l *Ledger) orderPaymentsQ(ctx context.Context, q pgxQuerier, orderID int) (*OrderPayments, error) {
	p := &OrderPayments{Cash: decimal.Zero, Bank: decimal.Zero, Total: decimal.Zero}
	rows, err := q.Query(ctx, `
		SELECT transaction_type, COALESCE(payment_method, ''), debit, credit
		FROM ledger_entries
		WHERE reference_id = $1 AND entity_type = 'supplier'
		  AND transaction_type IN ('payment', 'credit_application')`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order payments for order %d: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var txnType, method string
		var debit, credit decimal.Decimal
		if err := rows.Scan(&txnType, &method, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scan order payment: %w", err)
		}
		// Payments against a supplier order are credit rows; a
		// credit_application is a debit row that also settles the order.
		amount := credit
		if TransactionType(txnType) == TxnCreditApplication {
			amount = debit
		}
		switch PaymentMethod(method) {
		case PayCash:
			p.Cash = p.Cash.Add(amount)
		case PayBank:
			p.Bank = p.Bank.Add(amount)
		}
		p.Total = p.Total.Add(amount)
	}
	return p, rows.Err()
}

// GetOrderReturnTotal aggregates supplier return entries referencing the
// order.
func (l *Ledger) GetOrderReturnTotal(ctx context.Context, orderID int) (decimal.Decimal, error) {
	return l.orderReturnTotalQ(ctx, l.pool, orderID)
}

func (l *Ledger) orderReturnTotalQ(ctx context.Context, q pgxQuerier, orderID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(credit), 0)
		FROM ledger_entries
		WHERE reference_id = $1 AND entity_type = 'supplier' AND transaction_type = 'return'`,
		orderID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("aggregate return total for order %d: %w", orderID, err)
	}
	return total, nil
}

// GetOrderRemainingBalance computes liveOrderValue − payments − returns.
// liveOrderValue must come from the order's current item quantities and
// discount (see OrderService.LiveOrderValue), never from a stored total —
// approved returns change the live value.
func (l *Ledger) GetOrderRemainingBalance(ctx context.Context, orderID int, liveOrderValue decimal.Decimal) (decimal.Decimal, error) {
	return l.orderRemainingQ(ctx, l.pool, orderID, liveOrderValue)
}

func (l *Ledger) orderRemainingQ(ctx context.Context, q pgxQuerier, orderID int, liveOrderValue decimal.Decimal) (decimal.Decimal, error) {
	payments, err := l.orderPaymentsQ(ctx, q, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	returns, err := l.orderReturnTotalQ(ctx, q, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return liveOrderValue.Sub(payments.Total).Sub(returns), nil
}

// StatementLine is one entry of a chronological account statement with a
// running balance.
type StatementLine struct {
	EntryID         int             `json:"entry_id"`
	EntryDate       time.Time       `json:"entry_date"`
	TransactionType TransactionType `json:"transaction_type"`
	ReferenceID     *int            `json:"reference_id,omitempty"`
	Description     string          `json:"description"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	RunningBalance  decimal.Decimal `json:"running_balance"`
}

// GetStatement returns the entity's entries in chronological order with a
// running Σdebit − Σcredit. from/to bound the entry date; zero values mean
// unbounded.
func (l *Ledger) GetStatement(ctx context.Context, entityType EntityType, entityID int, from, to time.Time) ([]StatementLine, error) {
	query := `
		SELECT id, entry_date, transaction_type, reference_id, COALESCE(description, ''), debit, credit
		FROM ledger_entries
		WHERE entity_type = $1 AND entity_id = $2`
	args := []any{entityType, entityID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND entry_date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND entry_date <= $%d", len(args))
	}
	query += " ORDER BY entry_date, id"

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query statement for %s %d: %w", entityType, entityID, err)
	}
	defer rows.Close()

	var lines []StatementLine
	running := decimal.Zero
	for rows.Next() {
		var line StatementLine
		if err := rows.Scan(&line.EntryID, &line.EntryDate, &line.TransactionType,
			&line.ReferenceID, &line.Description, &line.Debit, &line.Credit); err != nil {
			return nil, fmt.Errorf("scan statement line: %w", err)
		}
		running = running.Add(line.Debit).Sub(line.Credit)
		line.RunningBalance = running
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
