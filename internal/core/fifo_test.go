package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func batch(id int, date string, remaining, cost string) PurchaseBatch {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return PurchaseBatch{
		ID:                id,
		ProductID:         1,
		SupplierID:        1,
		PurchaseDate:      t,
		Quantity:          d(remaining),
		RemainingQuantity: d(remaining),
		CostPrice:         d(cost),
	}
}

func TestPlanFIFOConsumption_SpansBatchesAtBatchCost(t *testing.T) {
	batches := []PurchaseBatch{
		batch(1, "2026-01-01", "5", "10"),
		batch(2, "2026-02-01", "5", "20"),
	}

	result, err := planFIFOConsumption(batches, d("7"))
	require.NoError(t, err)

	// 5 @ 10 from the older batch, 2 @ 20 from the newer: total 90.
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, 1, result.Allocations[0].BatchID)
	assert.True(t, result.Allocations[0].QuantityTaken.Equal(d("5")))
	assert.Equal(t, 2, result.Allocations[1].BatchID)
	assert.True(t, result.Allocations[1].QuantityTaken.Equal(d("2")))
	assert.True(t, result.TotalCost.Equal(d("90")), "got %s", result.TotalCost)
}

func TestPlanFIFOConsumption_OrdersByDateThenID(t *testing.T) {
	// Same purchase date: lower ID drains first. Input order is scrambled.
	batches := []PurchaseBatch{
		batch(9, "2026-01-15", "3", "12"),
		batch(2, "2026-01-15", "3", "11"),
		batch(5, "2026-01-01", "3", "10"),
	}

	result, err := planFIFOConsumption(batches, d("7"))
	require.NoError(t, err)
	require.Len(t, result.Allocations, 3)
	assert.Equal(t, 5, result.Allocations[0].BatchID)
	assert.Equal(t, 2, result.Allocations[1].BatchID)
	assert.Equal(t, 9, result.Allocations[2].BatchID)
	assert.True(t, result.Allocations[2].QuantityTaken.Equal(d("1")))
}

func TestPlanFIFOConsumption_SkipsExhaustedBatches(t *testing.T) {
	empty := batch(1, "2026-01-01", "0", "10")
	batches := []PurchaseBatch{empty, batch(2, "2026-02-01", "4", "20")}

	result, err := planFIFOConsumption(batches, d("4"))
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, 2, result.Allocations[0].BatchID)
}

func TestPlanFIFOConsumption_BatchExhaustion(t *testing.T) {
	batches := []PurchaseBatch{batch(1, "2026-01-01", "5", "10")}

	_, err := planFIFOConsumption(batches, d("6"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchExhaustion)
}

func TestPlanFIFOConsumption_RejectsNonPositiveQuantity(t *testing.T) {
	batches := []PurchaseBatch{batch(1, "2026-01-01", "5", "10")}

	_, err := planFIFOConsumption(batches, decimal.Zero)
	assert.Error(t, err)
	_, err = planFIFOConsumption(batches, d("-1"))
	assert.Error(t, err)
}

func TestPlanFIFOConsumption_DoesNotMutateInput(t *testing.T) {
	batches := []PurchaseBatch{batch(1, "2026-01-01", "5", "10")}

	_, err := planFIFOConsumption(batches, d("3"))
	require.NoError(t, err)
	assert.True(t, batches[0].RemainingQuantity.Equal(d("5")))
}

func TestWeightedAverageCost(t *testing.T) {
	batches := []PurchaseBatch{
		batch(1, "2026-01-01", "5", "10"),
		batch(2, "2026-02-01", "5", "20"),
	}
	// (5*10 + 5*20) / 10 = 15
	assert.True(t, weightedAverageCost(batches, d("99")).Equal(d("15")))
}

func TestWeightedAverageCost_FallbackWhenEmpty(t *testing.T) {
	assert.True(t, weightedAverageCost(nil, d("42")).Equal(d("42")))

	drained := []PurchaseBatch{batch(1, "2026-01-01", "0", "10")}
	assert.True(t, weightedAverageCost(drained, d("42")).Equal(d("42")))
}

func TestApplyAllocations(t *testing.T) {
	batches := []PurchaseBatch{
		batch(1, "2026-01-01", "5", "10"),
		batch(2, "2026-02-01", "5", "20"),
	}
	result, err := planFIFOConsumption(batches, d("7"))
	require.NoError(t, err)

	updated := applyAllocations(batches, result.Allocations)
	assert.True(t, updated[0].RemainingQuantity.Equal(d("0")))
	assert.True(t, updated[1].RemainingQuantity.Equal(d("3")))
	assert.True(t, sumRemaining(updated).Equal(d("3")))

	// After the consumption only the 20-cost batch remains.
	assert.True(t, weightedAverageCost(updated, d("0")).Equal(d("20")))
}
