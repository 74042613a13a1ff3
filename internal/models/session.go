package models

import "github.com/shopspring/decimal"

// TableSession groups everything a table orders between seating and payment.
type TableSession struct {
	ID           string           `json:"id"`
	TableID      string           `json:"tableId"`
	TableNumber  int              `json:"tableNumber"`
	RestaurantID string           `json:"restaurantId"`
	Status       SessionStatus    `json:"status"`
	Orders       []Order          `json:"orders,omitempty"`
	Total        *decimal.Decimal `json:"total,omitempty"`
	Review       *Review          `json:"review,omitempty"`
}

// Review is the optional diner feedback left on a closed session.
type Review struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// SessionStatus represents the possible states of a table session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusNeedsBill SessionStatus = "needs bill"
	SessionStatusClosed    SessionStatus = "closed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// IsTerminal reports whether the session has ended.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusClosed || s == SessionStatusCancelled
}

// Restaurant is the minimal restaurant record needed to route diners.
type Restaurant struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}
