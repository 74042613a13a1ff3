package cache

import (
	"strconv"
	"strings"

	"neembleeat/internal/models"
)

// Key identifies a cached resource as (resource, scope...). Build keys
// with the functions below so every caller agrees on the shape.
type Key []string

const sep = "\x1f"

func (k Key) String() string {
	return strings.Join(k, sep)
}

// Resource returns the leading element, used as a metrics label
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether p matches the leading elements of k
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

const dateLayout = "2006-01-02"

func rangeParts(r models.DateRange) []string {
	from, to := "", ""
	if !r.From.IsZero() {
		from = r.From.Format(dateLayout)
	}
	if !r.To.IsZero() {
		to = r.To.Format(dateLayout)
	}
	return []string{from, to}
}

func RestaurantBySlug(slug string) Key {
	return Key{"restaurants", "slug", slug}
}

func ActiveSession(restaurantID string, tableNumber int) Key {
	return Key{"sessions", "active", restaurantID, strconv.Itoa(tableNumber)}
}

func Session(sessionID string) Key {
	return Key{"sessions", "id", sessionID}
}

// Sessions is the prefix of every session key
func Sessions() Key {
	return Key{"sessions"}
}

func SessionOrders(sessionID string) Key {
	return Key{"orders", "session", sessionID}
}

func Categories(restaurantID string) Key {
	return Key{"categories", restaurantID}
}

func Menus(restaurantID string) Key {
	return Key{"menus", "restaurant", restaurantID}
}

func Menu(menuID string) Key {
	return Key{"menus", "id", menuID}
}

func Items(categoryID string) Key {
	return Key{"items", "category", categoryID}
}

func Item(itemID string) Key {
	return Key{"items", "id", itemID}
}

func StockItems(restaurantID string) Key {
	return Key{"stock", restaurantID}
}

func Suppliers(restaurantID string) Key {
	return Key{"suppliers", restaurantID}
}

// Bookings keys a date range. Bookings(id, models.DateRange{})[:2] is
// the prefix of all ranges.
func Bookings(restaurantID string, r models.DateRange) Key {
	return append(Key{"bookings", restaurantID}, rangeParts(r)...)
}

// Invoices keys one page; page 0 means the backend default
func Invoices(restaurantID string, page int) Key {
	return Key{"invoices", restaurantID, strconv.Itoa(page)}
}

// AllInvoices is the prefix of every invoice page of a restaurant
func AllInvoices(restaurantID string) Key {
	return Key{"invoices", restaurantID}
}

func SalesSummary(restaurantID string, r models.DateRange) Key {
	return append(Key{"sales", restaurantID}, rangeParts(r)...)
}

// AllSales is the prefix of every sales summary of a restaurant
func AllSales(restaurantID string) Key {
	return Key{"sales", restaurantID}
}

func CurrentUser() Key {
	return Key{"auth", "me"}
}
