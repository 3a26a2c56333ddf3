package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// BatchAllocation is the share of one batch taken by a FIFO consumption.
type BatchAllocation struct {
	BatchID       int             `json:"batch_id"`
	SupplierID    int             `json:"supplier_id"`
	QuantityTaken decimal.Decimal `json:"quantity_taken"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	LandedPrice   decimal.Decimal `json:"landed_price"`
}

// ConsumptionResult is the outcome of a FIFO consumption: which batches were
// drawn down, and the total cost valued at each batch's own cost price.
type ConsumptionResult struct {
	Allocations []BatchAllocation `json:"allocations"`
	TotalCost   decimal.Decimal   `json:"total_cost"`
}

// planFIFOConsumption walks unexhausted batches oldest purchase date first,
// taking min(remaining, still needed) from each. The caller has already
// verified aggregate availability; running out of batches here means the
// aggregate and the batch breakdown disagree, so ErrBatchExhaustion is
// returned rather than a partial plan. The input slice is not modified.
func planFIFOConsumption(batches []PurchaseBatch, quantity decimal.Decimal) (*ConsumptionResult, error) {
	if quantity.IsZero() || quantity.IsNegative() {
		return nil, fmt.Errorf("consume quantity must be positive, got %s", quantity)
	}

	open := make([]PurchaseBatch, 0, len(batches))
	for _, b := range batches {
		if b.RemainingQuantity.IsPositive() {
			open = append(open, b)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].PurchaseDate.Equal(open[j].PurchaseDate) {
			return open[i].PurchaseDate.Before(open[j].PurchaseDate)
		}
		return open[i].ID < open[j].ID
	})

	needed := quantity
	result := &ConsumptionResult{TotalCost: decimal.Zero}
	for _, b := range open {
		if needed.IsZero() {
			break
		}
		take := decimal.Min(b.RemainingQuantity, needed)
		result.Allocations = append(result.Allocations, BatchAllocation{
			BatchID:       b.ID,
			SupplierID:    b.SupplierID,
			QuantityTaken: take,
			CostPrice:     b.CostPrice,
			LandedPrice:   b.LandedPrice,
		})
		result.TotalCost = result.TotalCost.Add(take.Mul(b.CostPrice))
		needed = needed.Sub(take)
	}

	if needed.IsPositive() {
		return nil, fmt.Errorf("%w: %s of %s still unallocated", ErrBatchExhaustion, needed, quantity)
	}
	return result, nil
}

// weightedAverageCost recomputes the average unit cost over all batches'
// remaining quantities. This is a full recomputation, never an incremental
// update. When nothing remains the fallback (typically the incoming batch's
// cost price) is returned.
func weightedAverageCost(batches []PurchaseBatch, fallback decimal.Decimal) decimal.Decimal {
	totalQty := decimal.Zero
	totalValue := decimal.Zero
	for _, b := range batches {
		if b.RemainingQuantity.IsPositive() {
			totalQty = totalQty.Add(b.RemainingQuantity)
			totalValue = totalValue.Add(b.RemainingQuantity.Mul(b.CostPrice))
		}
	}
	if totalQty.IsZero() {
		return fallback
	}
	return totalValue.Div(totalQty)
}

// applyAllocations decrements batch remaining quantities per the plan,
// returning the updated copy used for the average-cost recomputation.
func applyAllocations(batches []PurchaseBatch, allocations []BatchAllocation) []PurchaseBatch {
	updated := make([]PurchaseBatch, len(batches))
	copy(updated, batches)
	byID := make(map[int]*PurchaseBatch, len(updated))
	for i := range updated {
		byID[updated[i].ID] = &updated[i]
	}
	for _, a := range allocations {
		if b, ok := byID[a.BatchID]; ok {
			b.RemainingQuantity = b.RemainingQuantity.Sub(a.QuantityTaken)
		}
	}
	return updated
}

// sumRemaining is the batch-breakdown side of the stock/batch invariant.
func sumRemaining(batches []PurchaseBatch) decimal.Decimal {
	total := decimal.Zero
	for _, b := range batches {
		total = total.Add(b.RemainingQuantity)
	}
	return total
}
