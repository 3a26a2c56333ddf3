package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService turns lump payments into ledger entries, spreading each
// payment across the entity's outstanding orders oldest-confirmed-first.
// All reads and writes for one distribution happen in a single transaction
// that locks the affected order rows, so two concurrent payments to the same
// supplier cannot both settle the same debt.
type PaymentService struct {
	pool   *pgxpool.Pool
	ledger *Ledger
	log    *zap.Logger
}

func NewPaymentService(pool *pgxpool.Pool, ledger *Ledger, log *zap.Logger) *PaymentService {
	return &PaymentService{pool: pool, ledger: ledger, log: log}
}

// DistributionReport tells the caller where a lump payment went.
type DistributionReport struct {
	EntityType    EntityType      `json:"entity_type"`
	EntityID      int             `json:"entity_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	Allocations   []Allocation    `json:"allocations"`
	AdvanceCredit decimal.Decimal `json:"advance_credit"`
}

// DistributePayment records a supplier payment and spreads it across the
// supplier's confirmed orders by confirmation date. Whatever the orders
// cannot absorb is booked as an unreferenced credit entry — an advance the
// supplier now owes back in goods.
func (s *PaymentService) DistributePayment(ctx context.Context, supplierID int, amount decimal.Decimal, method PaymentMethod, details, createdBy string) (*DistributionReport, error) {
	if err := validatePayment(amount, method); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	outstanding, err := s.supplierOutstandingTx(ctx, tx, supplierID)
	if err != nil {
		return nil, err
	}

	plan := planDistribution(outstanding, amount)
	report, err := s.persistPlanTx(ctx, tx, EntitySupplier, supplierID, amount, method, details, createdBy, plan)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment distribution: %w", err)
	}

	s.log.Info("payment distributed",
		zap.Int("supplier_id", supplierID),
		zap.String("amount", amount.String()),
		zap.Int("orders_settled", len(report.Allocations)),
		zap.String("advance_credit", report.AdvanceCredit.String()),
	)
	return report, nil
}

// DistributeLogisticsCharge pays down a logistics company's accumulated
// delivery charges, oldest order first. Outstanding per order is the charge
// debits referencing it minus the payment credits referencing it.
func (s *PaymentService) DistributeLogisticsCharge(ctx context.Context, logisticsID int, amount decimal.Decimal, method PaymentMethod, details, createdBy string) (*DistributionReport, error) {
	if err := validatePayment(amount, method); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	outstanding, err := s.logisticsOutstandingTx(ctx, tx, logisticsID)
	if err != nil {
		return nil, err
	}

	plan := planDistribution(outstanding, amount)
	report, err := s.persistPlanTx(ctx, tx, EntityLogistics, logisticsID, amount, method, details, createdBy, plan)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit charge distribution: %w", err)
	}
	return report, nil
}

// ApplyCreditToOrder settles an order against the entity's standing credit
// (a negative balance). No-op when there is no credit or nothing remaining.
// Returns the amount applied.
func (s *PaymentService) ApplyCreditToOrder(ctx context.Context, entityType EntityType, entityID, orderID int, createdBy string) (decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	applied, err := s.applyCreditTx(ctx, tx, entityType, entityID, orderID, createdBy)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit credit application: %w", err)
	}
	return applied, nil
}

// applyCreditTx is the in-transaction credit application used both standalone
// and at the tail of order confirmation.
func (s *PaymentService) applyCreditTx(ctx context.Context, tx pgx.Tx, entityType EntityType, entityID, orderID int, createdBy string) (decimal.Decimal, error) {
	balance, err := s.ledger.balanceQ(ctx, tx, entityType, entityID)
	if err != nil {
		return decimal.Zero, err
	}

	// What "remaining on the order" means depends on the entity: for the
	// supplier it is the purchase debt, for a logistics company it is the
	// outstanding delivery charges referencing the order.
	var remaining decimal.Decimal
	switch entityType {
	case EntityLogistics:
		remaining, err = s.logisticsOrderRemainingTx(ctx, tx, entityID, orderID)
	default:
		var live decimal.Decimal
		live, err = liveOrderValueQ(ctx, tx, orderID)
		if err == nil {
			remaining, err = s.ledger.orderRemainingQ(ctx, tx, orderID, live)
		}
	}
	if err != nil {
		return decimal.Zero, err
	}

	applied := creditToApply(balance, remaining)
	if !applied.IsPositive() {
		return decimal.Zero, nil
	}

	ref := orderID
	if _, err := s.ledger.AppendTx(ctx, tx, EntryInput{
		EntityType:      entityType,
		EntityID:        entityID,
		TransactionType: TxnCreditApplication,
		ReferenceID:     &ref,
		Debit:           applied,
		CreatedBy:       createdBy,
		Description:     "credit applied to order",
	}); err != nil {
		return decimal.Zero, err
	}

	s.log.Info("credit applied to order",
		zap.String("entity_type", string(entityType)),
		zap.Int("entity_id", entityID),
		zap.Int("order_id", orderID),
		zap.String("applied", applied.String()),
	)
	return applied, nil
}

// ── internal helpers ──────────────────────────────────────────────────────────

func validatePayment(amount decimal.Decimal, method PaymentMethod) error {
	if amount.IsZero() || amount.IsNegative() {
		return fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	switch method {
	case PayCash, PayBank:
	default:
		return fmt.Errorf("unknown payment method %q", method)
	}
	return nil
}

// supplierOutstandingTx locks the supplier's confirmed orders and computes
// each order's remaining balance from live value minus payments and returns.
// The FOR UPDATE on the order rows is what serializes concurrent
// distributions to the same supplier.
func (s *PaymentService) supplierOutstandingTx(ctx context.Context, tx pgx.Tx, supplierID int) ([]OutstandingOrder, error) {
	orders, err := s.lockSupplierOrdersTx(ctx, tx, supplierID)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		live, err := liveOrderValueQ(ctx, tx, orders[i].OrderID)
		if err != nil {
			return nil, err
		}
		remaining, err := s.ledger.orderRemainingQ(ctx, tx, orders[i].OrderID, live)
		if err != nil {
			return nil, err
		}
		orders[i].Remaining = remaining
	}
	return orders, nil
}

// lockSupplierOrdersTx locks and lists the supplier's confirmed orders. The
// rows stay closed before the caller issues further queries on the same
// transaction.
func (s *PaymentService) lockSupplierOrdersTx(ctx context.Context, tx pgx.Tx, supplierID int) ([]OutstandingOrder, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, order_number, confirmed_at
		FROM dispatch_orders
		WHERE supplier_id = $1 AND status = 'CONFIRMED'
		ORDER BY confirmed_at, id
		FOR UPDATE`,
		supplierID,
	)
	if err != nil {
		return nil, fmt.Errorf("lock confirmed orders for supplier %d: %w", supplierID, err)
	}
	defer rows.Close()

	var orders []OutstandingOrder
	for rows.Next() {
		var o OutstandingOrder
		if err := rows.Scan(&o.OrderID, &o.OrderNumber, &o.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("scan confirmed order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// logisticsOutstandingTx aggregates charges minus payments and credit
// applications per referenced order for a logistics entity, joined to the
// order for its confirmation timestamp. The referenced order rows are locked
// first so concurrent distributions to the same company serialize. Charges
// referencing unconfirmed orders stay out of the ranking until confirmation.
func (s *PaymentService) logisticsOutstandingTx(ctx context.Context, tx pgx.Tx, logisticsID int) ([]OutstandingOrder, error) {
	if err := s.lockChargedOrdersTx(ctx, tx, logisticsID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT le.reference_id, o.order_number, o.confirmed_at,
		       COALESCE(SUM(CASE WHEN le.transaction_type = 'charge' THEN le.debit ELSE 0 END), 0)
		     - COALESCE(SUM(CASE WHEN le.transaction_type = 'payment' THEN le.credit ELSE 0 END), 0)
		     - COALESCE(SUM(CASE WHEN le.transaction_type = 'credit_application' THEN le.debit ELSE 0 END), 0)
		FROM ledger_entries le
		JOIN dispatch_orders o ON o.id = le.reference_id
		WHERE le.entity_type = 'logistics' AND le.entity_id = $1
		  AND le.reference_id IS NOT NULL
		  AND o.confirmed_at IS NOT NULL
		  AND le.transaction_type IN ('charge', 'payment', 'credit_application')
		GROUP BY le.reference_id, o.order_number, o.confirmed_at
		ORDER BY o.confirmed_at, le.reference_id`,
		logisticsID,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate outstanding charges for logistics %d: %w", logisticsID, err)
	}
	defer rows.Close()

	var orders []OutstandingOrder
	for rows.Next() {
		var o OutstandingOrder
		if err := rows.Scan(&o.OrderID, &o.OrderNumber, &o.ConfirmedAt, &o.Remaining); err != nil {
			return nil, fmt.Errorf("scan outstanding charge: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// lockChargedOrdersTx takes FOR UPDATE on every order the logistics company's
// entries reference, the same serialization point the supplier path uses.
func (s *PaymentService) lockChargedOrdersTx(ctx context.Context, tx pgx.Tx, logisticsID int) error {
	rows, err := tx.Query(ctx, `
		SELECT id FROM dispatch_orders
		WHERE id IN (
			SELECT reference_id FROM ledger_entries
			WHERE entity_type = 'logistics' AND entity_id = $1 AND reference_id IS NOT NULL
		)
		ORDER BY id
		FOR UPDATE`,
		logisticsID,
	)
	if err != nil {
		return fmt.Errorf("lock charged orders for logistics %d: %w", logisticsID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan charged order: %w", err)
		}
	}
	return rows.Err()
}

// logisticsOrderRemainingTx is the outstanding delivery charge on one order:
// charge debits minus payment credits and credit applications referencing it.
func (s *PaymentService) logisticsOrderRemainingTx(ctx context.Context, tx pgx.Tx, logisticsID, orderID int) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN transaction_type = 'charge' THEN debit ELSE 0 END), 0)
		     - COALESCE(SUM(CASE WHEN transaction_type = 'payment' THEN credit ELSE 0 END), 0)
		     - COALESCE(SUM(CASE WHEN transaction_type = 'credit_application' THEN debit ELSE 0 END), 0)
		FROM ledger_entries
		WHERE entity_type = 'logistics' AND entity_id = $1 AND reference_id = $2`,
		logisticsID, orderID,
	).Scan(&remaining)
	if err != nil {
		return decimal.Zero, fmt.Errorf("aggregate outstanding charge for order %d: %w", orderID, err)
	}
	return remaining, nil
}

// persistPlanTx writes one payment credit entry per allocation plus an
// unreferenced entry for any advance credit.
func (s *PaymentService) persistPlanTx(ctx context.Context, tx pgx.Tx, entityType EntityType, entityID int, amount decimal.Decimal, method PaymentMethod, details, createdBy string, plan DistributionPlan) (*DistributionReport, error) {
	for _, a := range plan.Allocations {
		ref := a.OrderID
		if _, err := s.ledger.AppendTx(ctx, tx, EntryInput{
			EntityType:      entityType,
			EntityID:        entityID,
			TransactionType: TxnPayment,
			ReferenceID:     &ref,
			Credit:          a.AmountApplied,
			PaymentMethod:   method,
			PaymentDetails:  details,
			CreatedBy:       createdBy,
			Description:     fmt.Sprintf("payment applied to %s", a.OrderNumber),
		}); err != nil {
			return nil, err
		}
	}

	if plan.AdvanceCredit.IsPositive() {
		if _, err := s.ledger.AppendTx(ctx, tx, EntryInput{
			EntityType:      entityType,
			EntityID:        entityID,
			TransactionType: TxnPayment,
			Credit:          plan.AdvanceCredit,
			PaymentMethod:   method,
			PaymentDetails:  details,
			CreatedBy:       createdBy,
			Description:     "advance payment, no outstanding order to absorb it",
		}); err != nil {
			return nil, err
		}
	}

	return &DistributionReport{
		EntityType:    entityType,
		EntityID:      entityID,
		Amount:        amount,
		Method:        method,
		Allocations:   plan.Allocations,
		AdvanceCredit: plan.AdvanceCredit,
	}, nil
}
