package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking is a table reservation
type Booking struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PartySize    int       `json:"partySize"`
	StartsAt     time.Time `json:"startsAt"`
	Status       string    `json:"status"`
}

// Invoice is issued when a session is paid
type Invoice struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Number    string          `json:"number"`
	Total     decimal.Decimal `json:"total"`
	IssuedAt  time.Time       `json:"issuedAt"`
	Status    string          `json:"status"`
}

// DateRange bounds a reporting query. Both ends are inclusive days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// SalesSummary aggregates sales over a date range
type SalesSummary struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	OrderCount  int             `json:"orderCount"`
	Revenue     decimal.Decimal `json:"revenue"`
	AverageBill decimal.Decimal `json:"averageBill"`
	TopItems    []ItemSales     `json:"topItems,omitempty"`
}

// ItemSales is one row of a best-sellers report
type ItemSales struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}
