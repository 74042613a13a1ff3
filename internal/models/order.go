package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a single ordered item line as the backend reports it. The
// backend owns the prep lifecycle; clients only create orders and read
// their status.
type Order struct {
	ID             string                  `json:"id"`
	SessionID      string                  `json:"sessionId"`
	ItemID         string                  `json:"itemId"`
	ItemName       string                  `json:"itemName,omitempty"`
	Quantity       int                     `json:"quantity"`
	UnitPrice      decimal.Decimal         `json:"unitPrice"`
	Total          decimal.Decimal         `json:"total"`
	PrepStatus     PrepStatus              `json:"prepStatus"`
	OrderTime      time.Time               `json:"orderTime"`
	Customisations []CartItemCustomisation `json:"customisations,omitempty"`
	AdditionalNote string                  `json:"additionalNote,omitempty"`
	TableNumber    int                     `json:"tableNumber"`
}

// NewOrder is the payload for creating an order from a cart line.
type NewOrder struct {
	SessionID      string                  `json:"sessionId"`
	MenuID         string                  `json:"menuId,omitempty"`
	ItemID         string                  `json:"itemId"`
	Quantity       int                     `json:"quantity"`
	UnitPrice      decimal.Decimal         `json:"unitPrice"`
	Customisations []CartItemCustomisation `json:"customisations,omitempty"`
	AdditionalNote string                  `json:"additionalNote,omitempty"`
	TableNumber    int                     `json:"tableNumber"`
	CustomerName   string                  `json:"customerName,omitempty"`
}

// PrepStatus represents the kitchen state of an order
type PrepStatus string

const (
	PrepStatusQueued     PrepStatus = "queued"
	PrepStatusInProgress PrepStatus = "in_progress"
	PrepStatusReady      PrepStatus = "ready"
	PrepStatusServed     PrepStatus = "served"
	PrepStatusCancelled  PrepStatus = "cancelled"
)

var prepTransitions = map[PrepStatus][]PrepStatus{
	PrepStatusQueued:     {PrepStatusInProgress, PrepStatusCancelled},
	PrepStatusInProgress: {PrepStatusReady, PrepStatusCancelled},
	PrepStatusReady:      {PrepStatusServed, PrepStatusCancelled},
}

// IsTerminal reports whether no further transition can happen.
func (s PrepStatus) IsTerminal() bool {
	return s == PrepStatusServed || s == PrepStatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s PrepStatus) Valid() bool {
	switch s {
	case PrepStatusQueued, PrepStatusInProgress, PrepStatusReady, PrepStatusServed, PrepStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the backend may move an order from s to next.
func (s PrepStatus) CanTransition(next PrepStatus) bool {
	for _, allowed := range prepTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsCancelled reports whether the order was cancelled.
func (o *Order) IsCancelled() bool {
	return o.PrepStatus == PrepStatusCancelled
}
