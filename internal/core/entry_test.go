package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() EntryInput {
	return EntryInput{
		EntityType:      EntitySupplier,
		EntityID:        1,
		TransactionType: TxnPurchase,
		Debit:           d("100"),
		CreatedBy:       "test",
	}
}

func TestEntryInput_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*EntryInput)
		expectErr bool
	}{
		{"valid debit entry", func(e *EntryInput) {}, false},
		{"valid credit entry", func(e *EntryInput) {
			e.Debit = decimal.Zero
			e.Credit = d("100")
			e.TransactionType = TxnPayment
		}, false},
		{"unknown entity type", func(e *EntryInput) { e.EntityType = "warehouse" }, true},
		{"missing entity id", func(e *EntryInput) { e.EntityID = 0 }, true},
		{"unknown transaction type", func(e *EntryInput) { e.TransactionType = "refund" }, true},
		{"negative debit", func(e *EntryInput) { e.Debit = d("-10") }, true},
		{"both debit and credit", func(e *EntryInput) { e.Credit = d("50") }, true},
		{"neither debit nor credit", func(e *EntryInput) { e.Debit = decimal.Zero }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			err := e.Validate()
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidLedgerEntry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEntryInput_Normalize(t *testing.T) {
	ref := 7
	e := EntryInput{
		EntityType:      EntitySupplier,
		EntityID:        1,
		TransactionType: TxnPurchase,
		ReferenceID:     &ref,
		Debit:           d("100"),
		Description:     "  padded  ",
	}

	e.Normalize()

	assert.False(t, e.EntryDate.IsZero(), "entry date defaults to now")
	assert.Equal(t, "DispatchOrder", e.ReferenceModel, "reference model defaults when a reference is set")
	assert.Equal(t, "padded", e.Description)
}

func TestEntryInput_NormalizeKeepsExplicitModel(t *testing.T) {
	ref := 7
	e := EntryInput{ReferenceID: &ref, ReferenceModel: "OrderReturn"}
	e.Normalize()
	assert.Equal(t, "OrderReturn", e.ReferenceModel)
}
