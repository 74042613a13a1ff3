package models

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CartItem is one line of a diner's pre-submission cart.
type CartItem struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Price           decimal.Decimal         `json:"price"`
	Quantity        int                     `json:"quantity"`
	Image           string                  `json:"image,omitempty"`
	AdditionalNotes string                  `json:"additionalNotes,omitempty"`
	Customisations  []CartItemCustomisation `json:"customisations"`
}

// CartItemCustomisation snapshots the options chosen for one customisation
// rule when the item was added.
type CartItemCustomisation struct {
	RuleName        string                  `json:"ruleName"`
	SelectedOptions []SelectedCustomization `json:"selectedOptions"`
}

// SelectedCustomization is a single chosen option.
type SelectedCustomization struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineTotal returns price * quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Signature identifies an item together with its chosen customisations.
// Two lines with equal signatures are the same logical line.
func (i CartItem) Signature() string {
	rules := make([]string, 0, len(i.Customisations))
	for _, c := range i.Customisations {
		opts := make([]string, 0, len(c.SelectedOptions))
		for _, o := range c.SelectedOptions {
			opts = append(opts, o.Name)
		}
		sort.Strings(opts)
		rules = append(rules, c.RuleName+"="+strings.Join(opts, ","))
	}
	sort.Strings(rules)
	return i.ID + "|" + strings.Join(rules, ";")
}
