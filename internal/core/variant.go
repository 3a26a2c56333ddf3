package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// findVariant locates the (size, color) cell in a composition.
func findVariant(variants []Variant, size, color string) (int, error) {
	for i := range variants {
		if variants[i].Size == size && variants[i].Color == color {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: size %q color %q", ErrVariantNotFound, size, color)
}

// reserveVariant increments the cell's reserved quantity after checking the
// unreserved balance. The caller mirrors the delta onto the record's
// aggregate reserved stock.
func reserveVariant(variants []Variant, size, color string, qty decimal.Decimal) (int, error) {
	if qty.IsZero() || qty.IsNegative() {
		return -1, fmt.Errorf("reserve quantity must be positive, got %s", qty)
	}
	i, err := findVariant(variants, size, color)
	if err != nil {
		return -1, err
	}
	v := &variants[i]
	available := v.Quantity.Sub(v.ReservedQuantity)
	if available.LessThan(qty) {
		return -1, fmt.Errorf("%w: size %q color %q has %s available, requested %s",
			ErrInsufficientVariantStock, size, color, available, qty)
	}
	v.ReservedQuantity = v.ReservedQuantity.Add(qty)
	return i, nil
}

// releaseVariant decrements the cell's reserved quantity, clamping at zero.
// Returns the quantity actually released.
func releaseVariant(variants []Variant, size, color string, qty decimal.Decimal) (int, decimal.Decimal, error) {
	if qty.IsZero() || qty.IsNegative() {
		return -1, decimal.Zero, fmt.Errorf("release quantity must be positive, got %s", qty)
	}
	i, err := findVariant(variants, size, color)
	if err != nil {
		return -1, decimal.Zero, err
	}
	v := &variants[i]
	released := decimal.Min(v.ReservedQuantity, qty)
	v.ReservedQuantity = v.ReservedQuantity.Sub(released)
	return i, released, nil
}

// reduceVariant removes stock from the cell. Reserved quantity follows the
// reduction down but is clamped at zero, never negative. The caller mirrors
// the deltas onto the aggregate record and appends the movement row.
func reduceVariant(variants []Variant, size, color string, qty decimal.Decimal) (int, decimal.Decimal, error) {
	if qty.IsZero() || qty.IsNegative() {
		return -1, decimal.Zero, fmt.Errorf("reduce quantity must be positive, got %s", qty)
	}
	i, err := findVariant(variants, size, color)
	if err != nil {
		return -1, decimal.Zero, err
	}
	v := &variants[i]
	if v.Quantity.LessThan(qty) {
		return -1, decimal.Zero, fmt.Errorf("%w: size %q color %q has %s, requested %s",
			ErrInsufficientVariantStock, size, color, v.Quantity, qty)
	}
	v.Quantity = v.Quantity.Sub(qty)
	reservedDelta := decimal.Zero
	if v.ReservedQuantity.GreaterThan(v.Quantity) {
		reservedDelta = v.ReservedQuantity.Sub(v.Quantity)
		v.ReservedQuantity = v.Quantity
	}
	return i, reservedDelta, nil
}

// mergeComposition folds incoming (size, color, quantity) tuples into an
// existing composition: summed into the matching cell, appended otherwise.
// Used when a single stock-in spans multiple size/color cells.
func mergeComposition(existing []Variant, productID int, incoming []VariantInput) []Variant {
	merged := make([]Variant, len(existing))
	copy(merged, existing)
	for _, in := range incoming {
		if in.Quantity.IsZero() || in.Quantity.IsNegative() {
			continue
		}
		if i, err := findVariant(merged, in.Size, in.Color); err == nil {
			merged[i].Quantity = merged[i].Quantity.Add(in.Quantity)
			continue
		}
		merged = append(merged, Variant{
			ProductID: productID,
			Size:      in.Size,
			Color:     in.Color,
			Quantity:  in.Quantity,
		})
	}
	return merged
}

// sumVariantQuantities is the variant side of the advisory composition
// invariant (sum of cells should match current stock when variant tracking
// is on).
func sumVariantQuantities(variants []Variant) decimal.Decimal {
	total := decimal.Zero
	for _, v := range variants {
		total = total.Add(v.Quantity)
	}
	return total
}
