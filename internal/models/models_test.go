package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepStatusTransitions(t *testing.T) {
	assert.True(t, PrepStatusQueued.CanTransition(PrepStatusInProgress))
	assert.True(t, PrepStatusInProgress.CanTransition(PrepStatusReady))
	assert.True(t, PrepStatusReady.CanTransition(PrepStatusServed))
	assert.False(t, PrepStatusQueued.CanTransition(PrepStatusServed))

	for _, s := range []PrepStatus{PrepStatusQueued, PrepStatusInProgress, PrepStatusReady} {
		assert.Truef(t, s.CanTransition(PrepStatusCancelled), "%s should be cancellable", s)
		assert.False(t, s.IsTerminal())
	}
	for _, s := range []PrepStatus{PrepStatusServed, PrepStatusCancelled} {
		assert.True(t, s.IsTerminal())
		assert.False(t, s.CanTransition(PrepStatusQueued))
	}
	assert.False(t, PrepStatus("plating").Valid())
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, SessionStatusActive.IsTerminal())
	assert.False(t, SessionStatusNeedsBill.IsTerminal())
	assert.True(t, SessionStatusClosed.IsTerminal())
	assert.True(t, SessionStatusCancelled.IsTerminal())
}

func TestSignatureIgnoresOptionOrder(t *testing.T) {
	a := CartItem{ID: "burger", Customisations: []CartItemCustomisation{
		{RuleName: "extras", SelectedOptions: []SelectedCustomization{{Name: "bacon"}, {Name: "cheese"}}},
		{RuleName: "bun", SelectedOptions: []SelectedCustomization{{Name: "brioche"}}},
	}}
	b := CartItem{ID: "burger", Customisations: []CartItemCustomisation{
		{RuleName: "bun", SelectedOptions: []SelectedCustomization{{Name: "brioche"}}},
		{RuleName: "extras", SelectedOptions: []SelectedCustomization{{Name: "cheese"}, {Name: "bacon"}}},
	}}
	c := CartItem{ID: "burger"}

	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
}

func TestValidateSelection(t *testing.T) {
	item := MenuItem{
		ID:    "pizza",
		Price: decimal.NewFromInt(1000),
		Customizations: []CustomizationRule{
			{Name: "size", Min: 1, Max: 1, Options: []SelectedCustomization{
				{Name: "small"}, {Name: "large", Price: decimal.NewFromInt(300)},
			}},
			{Name: "toppings", Max: 2, Options: []SelectedCustomization{
				{Name: "olives", Price: decimal.NewFromInt(50)}, {Name: "ham", Price: decimal.NewFromInt(150)},
			}},
		},
	}

	got, err := item.ValidateSelection(map[string][]string{"size": {"large"}, "toppings": {"olives", "ham"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, UnitPrice(item.Price, got).Equal(decimal.NewFromInt(1500)))

	_, err = item.ValidateSelection(map[string][]string{})
	assert.Error(t, err, "size is required")

	_, err = item.ValidateSelection(map[string][]string{"size": {"small", "large"}})
	assert.Error(t, err)

	_, err = item.ValidateSelection(map[string][]string{"size": {"huge"}})
	assert.Error(t, err)

	_, err = item.ValidateSelection(map[string][]string{"size": {"small"}, "sauce": {"bbq"}})
	assert.Error(t, err)
}

func TestStockItemIsLow(t *testing.T) {
	s := StockItem{Quantity: decimal.NewFromInt(2), MinLevel: decimal.NewFromInt(5)}
	assert.True(t, s.IsLow())
	s.Quantity = decimal.NewFromInt(6)
	assert.False(t, s.IsLow())
}

func TestDeclaredAllergens(t *testing.T) {
	mi := &MenuItem{Allergens: []string{"sesame", "celery", "milk"}}

	assert.True(t, mi.HasAllergen(AllergenMilk))
	assert.False(t, mi.HasAllergen(AllergenPeanuts))
	assert.Equal(t, []Allergen{AllergenMilk, AllergenSesame}, mi.DeclaredAllergens())
	assert.Empty(t, (&MenuItem{}).DeclaredAllergens())
}
