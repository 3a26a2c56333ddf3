package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outstanding(id int, confirmed string, remaining string) OutstandingOrder {
	ts, err := time.Parse("2006-01-02", confirmed)
	if err != nil {
		panic(err)
	}
	return OutstandingOrder{OrderID: id, OrderNumber: "DO-TST-00001", ConfirmedAt: ts, Remaining: d(remaining)}
}

func TestPlanDistribution_PartialSecondOrder(t *testing.T) {
	orders := []OutstandingOrder{
		outstanding(1, "2026-01-01", "500"),
		outstanding(2, "2026-02-01", "300"),
	}

	plan := planDistribution(orders, d("600"))

	require.Len(t, plan.Allocations, 2)
	assert.True(t, plan.Allocations[0].AmountApplied.Equal(d("500")))
	assert.True(t, plan.Allocations[0].FullyPaid)
	assert.True(t, plan.Allocations[1].AmountApplied.Equal(d("100")))
	assert.True(t, plan.Allocations[1].NewRemaining.Equal(d("200")))
	assert.False(t, plan.Allocations[1].FullyPaid)
	assert.True(t, plan.AdvanceCredit.IsZero())
}

func TestPlanDistribution_SurplusBecomesAdvanceCredit(t *testing.T) {
	orders := []OutstandingOrder{
		outstanding(1, "2026-01-01", "500"),
		outstanding(2, "2026-02-01", "300"),
	}

	plan := planDistribution(orders, d("1500"))

	require.Len(t, plan.Allocations, 2)
	assert.True(t, plan.Allocations[0].FullyPaid)
	assert.True(t, plan.Allocations[1].FullyPaid)
	assert.True(t, plan.AdvanceCredit.Equal(d("700")))
}

func TestPlanDistribution_NoOutstandingOrders(t *testing.T) {
	plan := planDistribution(nil, d("250"))
	assert.Empty(t, plan.Allocations)
	assert.True(t, plan.AdvanceCredit.Equal(d("250")))
}

func TestPlanDistribution_OldestConfirmedFirst(t *testing.T) {
	// Input deliberately out of order; allocation must follow confirmed_at.
	orders := []OutstandingOrder{
		outstanding(3, "2026-03-01", "100"),
		outstanding(1, "2026-01-01", "100"),
		outstanding(2, "2026-02-01", "100"),
	}

	plan := planDistribution(orders, d("150"))

	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, 1, plan.Allocations[0].OrderID)
	assert.Equal(t, 2, plan.Allocations[1].OrderID)
	assert.True(t, plan.Allocations[1].AmountApplied.Equal(d("50")))
}

func TestPlanDistribution_TiedConfirmationUsesOrderID(t *testing.T) {
	orders := []OutstandingOrder{
		outstanding(7, "2026-01-01", "100"),
		outstanding(4, "2026-01-01", "100"),
	}

	plan := planDistribution(orders, d("100"))
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, 4, plan.Allocations[0].OrderID)
}

func TestPlanDistribution_SkipsSettledOrders(t *testing.T) {
	orders := []OutstandingOrder{
		outstanding(1, "2026-01-01", "0"),
		outstanding(2, "2026-02-01", "-25"),
		outstanding(3, "2026-03-01", "40"),
	}

	plan := planDistribution(orders, d("100"))
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, 3, plan.Allocations[0].OrderID)
	assert.True(t, plan.AdvanceCredit.Equal(d("60")))
}

func TestCreditToApply(t *testing.T) {
	tests := []struct {
		name      string
		balance   string
		remaining string
		want      string
	}{
		{"credit exceeds remaining", "-200", "150", "150"},
		{"credit far exceeds remaining", "-500", "150", "150"},
		{"remaining larger than credit", "-100", "400", "100"},
		{"no credit held", "300", "150", "0"},
		{"zero balance", "0", "150", "0"},
		{"nothing remaining", "-200", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := creditToApply(d(tt.balance), d(tt.remaining))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}
