package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OutstandingOrder is a confirmed order with money still owed on it, as seen
// by the payment distributor. Orders are ranked by confirmation timestamp —
// the moment the debt was actually posted — so allocation order always
// matches ledger display order.
type OutstandingOrder struct {
	OrderID     int             `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
	Remaining   decimal.Decimal `json:"remaining"`
}

// Allocation is one order's share of a distributed payment.
type Allocation struct {
	OrderID           int             `json:"order_id"`
	OrderNumber       string          `json:"order_number"`
	AmountApplied     decimal.Decimal `json:"amount_applied"`
	PreviousRemaining decimal.Decimal `json:"previous_remaining"`
	NewRemaining      decimal.Decimal `json:"new_remaining"`
	FullyPaid         bool            `json:"fully_paid"`
}

// DistributionPlan is the pure outcome of allocating a lump payment across
// outstanding orders oldest-confirmed-first. AdvanceCredit is whatever the
// orders could not absorb.
type DistributionPlan struct {
	Allocations   []Allocation    `json:"allocations"`
	AdvanceCredit decimal.Decimal `json:"advance_credit"`
}

// planDistribution walks orders oldest-confirmed-first, applying
// min(remaining payment, order remaining) to each until the payment runs out.
// Anything left after every order is satisfied becomes an advance credit;
// with no outstanding orders at all, the whole amount does.
func planDistribution(orders []OutstandingOrder, amount decimal.Decimal) DistributionPlan {
	ranked := make([]OutstandingOrder, 0, len(orders))
	for _, o := range orders {
		if o.Remaining.IsPositive() {
			ranked = append(ranked, o)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if !ranked[i].ConfirmedAt.Equal(ranked[j].ConfirmedAt) {
			return ranked[i].ConfirmedAt.Before(ranked[j].ConfirmedAt)
		}
		return ranked[i].OrderID < ranked[j].OrderID
	})

	plan := DistributionPlan{AdvanceCredit: decimal.Zero}
	left := amount
	for _, o := range ranked {
		if !left.IsPositive() {
			break
		}
		applied := decimal.Min(left, o.Remaining)
		newRemaining := o.Remaining.Sub(applied)
		plan.Allocations = append(plan.Allocations, Allocation{
			OrderID:           o.OrderID,
			OrderNumber:       o.OrderNumber,
			AmountApplied:     applied,
			PreviousRemaining: o.Remaining,
			NewRemaining:      newRemaining,
			FullyPaid:         newRemaining.IsZero(),
		})
		left = left.Sub(applied)
	}
	plan.AdvanceCredit = left
	return plan
}

// creditToApply is the credit-application inverse flow: when the entity's
// balance is negative (the business holds a credit), up to
// min(|balance|, orderRemaining) can settle a newly confirmed order.
func creditToApply(balance, orderRemaining decimal.Decimal) decimal.Decimal {
	if !balance.IsNegative() || !orderRemaining.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(balance.Neg(), orderRemaining)
}
