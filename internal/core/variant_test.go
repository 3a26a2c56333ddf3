package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func composition() []Variant {
	return []Variant{
		{ID: 1, ProductID: 1, Size: "M", Color: "black", Quantity: d("10"), ReservedQuantity: d("2")},
		{ID: 2, ProductID: 1, Size: "L", Color: "black", Quantity: d("5")},
	}
}

func TestReserveVariant(t *testing.T) {
	variants := composition()

	i, err := reserveVariant(variants, "M", "black", d("3"))
	require.NoError(t, err)
	assert.True(t, variants[i].ReservedQuantity.Equal(d("5")))
}

func TestReserveVariant_InsufficientAvailable(t *testing.T) {
	variants := composition()

	// M/black has 10 with 2 already reserved: 8 available.
	_, err := reserveVariant(variants, "M", "black", d("9"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientVariantStock)
}

func TestReserveVariant_UnknownCell(t *testing.T) {
	_, err := reserveVariant(composition(), "XL", "red", d("1"))
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestReleaseVariant_ClampsAtZero(t *testing.T) {
	variants := composition()

	i, released, err := releaseVariant(variants, "M", "black", d("5"))
	require.NoError(t, err)
	assert.True(t, released.Equal(d("2")), "only what was reserved is released")
	assert.True(t, variants[i].ReservedQuantity.IsZero())
}

func TestReduceVariant(t *testing.T) {
	variants := composition()

	i, reservedDelta, err := reduceVariant(variants, "L", "black", d("3"))
	require.NoError(t, err)
	assert.True(t, variants[i].Quantity.Equal(d("2")))
	assert.True(t, reservedDelta.IsZero())
}

func TestReduceVariant_ReservedFollowsQuantityDown(t *testing.T) {
	variants := []Variant{
		{ID: 1, ProductID: 1, Size: "M", Color: "black", Quantity: d("10"), ReservedQuantity: d("9")},
	}

	i, reservedDelta, err := reduceVariant(variants, "M", "black", d("4"))
	require.NoError(t, err)
	assert.True(t, variants[i].Quantity.Equal(d("6")))
	assert.True(t, variants[i].ReservedQuantity.Equal(d("6")), "reserved clamps to quantity")
	assert.True(t, reservedDelta.Equal(d("3")))
}

func TestReduceVariant_RejectsOverdraw(t *testing.T) {
	variants := composition()

	_, _, err := reduceVariant(variants, "L", "black", d("6"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientVariantStock)
}

func TestMergeComposition(t *testing.T) {
	existing := composition()
	incoming := []VariantInput{
		{Size: "M", Color: "black", Quantity: d("5")},
		{Size: "S", Color: "white", Quantity: d("7")},
		{Size: "S", Color: "white", Quantity: d("0")}, // ignored
	}

	merged := mergeComposition(existing, 1, incoming)

	require.Len(t, merged, 3)
	i, err := findVariant(merged, "M", "black")
	require.NoError(t, err)
	assert.True(t, merged[i].Quantity.Equal(d("15")))

	i, err = findVariant(merged, "S", "white")
	require.NoError(t, err)
	assert.True(t, merged[i].Quantity.Equal(d("7")))

	// Original untouched.
	assert.True(t, existing[0].Quantity.Equal(d("10")))
}

func TestSumVariantQuantities(t *testing.T) {
	assert.True(t, sumVariantQuantities(composition()).Equal(d("15")))
	assert.True(t, sumVariantQuantities(nil).IsZero())
}
