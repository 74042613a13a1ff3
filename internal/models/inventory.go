package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockItem represents an ingredient or supply tracked by the restaurant
type StockItem struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurantId"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         InventoryUnit   `json:"unit"`
	MinLevel     decimal.Decimal `json:"minLevel"`
	SupplierID   string          `json:"supplierId,omitempty"`
	Status       InventoryStatus `json:"status"`
}

// Movement is a stock adjustment. Creating one changes the quantity of
// its stock item on the backend.
type Movement struct {
	ID          string          `json:"id,omitempty"`
	StockItemID string          `json:"stockItemId"`
	Type        MovementType    `json:"type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason,omitempty"`
	CreatedAt   time.Time       `json:"createdAt,omitempty"`
}

// Supplier provides stock items
type Supplier struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// MovementType is the direction of a stock movement
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

// InventoryStatus represents the status of a stock item
type InventoryStatus string

const (
	StatusInStock    InventoryStatus = "in_stock"
	StatusLow        InventoryStatus = "low"
	StatusOutOfStock InventoryStatus = "out_of_stock"
)

// InventoryUnit represents the unit of measurement for a stock item
type InventoryUnit string

const (
	UnitGram       InventoryUnit = "g"
	UnitKilogram   InventoryUnit = "kg"
	UnitMilliliter InventoryUnit = "ml"
	UnitLiter      InventoryUnit = "l"
	UnitPiece      InventoryUnit = "pc"
	UnitBox        InventoryUnit = "box"
)

// IsLow reports whether the item is at or below its minimum level.
func (s *StockItem) IsLow() bool {
	return s.Quantity.LessThanOrEqual(s.MinLevel)
}
