package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Menu is a named set of categories offered by a restaurant
type Menu struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurantId"`
	Name         string     `json:"name"`
	IsActive     bool       `json:"isActive"`
	Categories   []Category `json:"categories,omitempty"`
}

// Category groups menu items
type Category struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurantId"`
	MenuID       string     `json:"menuId,omitempty"`
	Name         string     `json:"name"`
	Position     int        `json:"position"`
	Items        []MenuItem `json:"items,omitempty"`
}

// MenuItem represents a dish on the menu
type MenuItem struct {
	ID             string              `json:"id"`
	CategoryID     string              `json:"categoryId"`
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	Price          decimal.Decimal     `json:"price"`
	Image          string              `json:"image,omitempty"`
	Allergens      []string            `json:"allergens,omitempty"`
	IsAvailable    bool                `json:"isAvailable"`
	Customizations []CustomizationRule `json:"customizations,omitempty"`
}

// CustomizationRule constrains how many options a diner may pick.
type CustomizationRule struct {
	Name    string                  `json:"name"`
	Min     int                     `json:"min"`
	Max     int                     `json:"max"`
	Options []SelectedCustomization `json:"options"`
}

// Allergen is an allergen a dish can declare
type Allergen string

const (
	AllergenMilk      Allergen = "milk"
	AllergenEggs      Allergen = "eggs"
	AllergenFish      Allergen = "fish"
	AllergenShellfish Allergen = "shellfish"
	AllergenTreeNuts  Allergen = "tree_nuts"
	AllergenPeanuts   Allergen = "peanuts"
	AllergenWheat     Allergen = "wheat"
	AllergenSoy       Allergen = "soy"
	AllergenSesame    Allergen = "sesame"
)

// Allergens lists the known allergens in display order
var Allergens = []Allergen{
	AllergenMilk, AllergenEggs, AllergenFish, AllergenShellfish, AllergenTreeNuts,
	AllergenPeanuts, AllergenWheat, AllergenSoy, AllergenSesame,
}

// HasAllergen reports whether the item declares allergen
func (mi *MenuItem) HasAllergen(allergen Allergen) bool {
	for _, alg := range mi.Allergens {
		if alg == string(allergen) {
			return true
		}
	}
	return false
}

// DeclaredAllergens returns the known allergens the item declares, in
// display order. Unknown values are skipped.
func (mi *MenuItem) DeclaredAllergens() []Allergen {
	var out []Allergen
	for _, a := range Allergens {
		if mi.HasAllergen(a) {
			out = append(out, a)
		}
	}
	return out
}

// ValidateSelection checks chosen options against the item's rules and
// returns the cart snapshot for them.
func (mi *MenuItem) ValidateSelection(chosen map[string][]string) ([]CartItemCustomisation, error) {
	out := make([]CartItemCustomisation, 0, len(mi.Customizations))
	for _, rule := range mi.Customizations {
		names := chosen[rule.Name]
		if len(names) < rule.Min {
			return nil, fmt.Errorf("%s: pick at least %d option(s)", rule.Name, rule.Min)
		}
		if rule.Max > 0 && len(names) > rule.Max {
			return nil, fmt.Errorf("%s: pick at most %d option(s)", rule.Name, rule.Max)
		}
		if len(names) == 0 {
			continue
		}
		selected := make([]SelectedCustomization, 0, len(names))
		for _, n := range names {
			opt, ok := rule.option(n)
			if !ok {
				return nil, fmt.Errorf("%s: unknown option %q", rule.Name, n)
			}
			selected = append(selected, opt)
		}
		out = append(out, CartItemCustomisation{RuleName: rule.Name, SelectedOptions: selected})
	}
	for name := range chosen {
		if !mi.hasRule(name) {
			return nil, fmt.Errorf("unknown customisation %q", name)
		}
	}
	return out, nil
}

// UnitPrice returns the item price plus the price of every selected option.
func UnitPrice(base decimal.Decimal, customisations []CartItemCustomisation) decimal.Decimal {
	price := base
	for _, c := range customisations {
		for _, o := range c.SelectedOptions {
			price = price.Add(o.Price)
		}
	}
	return price
}

func (mi *MenuItem) hasRule(name string) bool {
	for _, r := range mi.Customizations {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (r CustomizationRule) option(name string) (SelectedCustomization, bool) {
	for _, o := range r.Options {
		if o.Name == name {
			return o, true
		}
	}
	return SelectedCustomization{}, false
}
