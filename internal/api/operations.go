package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"neembleeat/internal/models"
)

const dateLayout = "2006-01-02"

// ListStockItems returns the stock items of a restaurant
func (c *Client) ListStockItems(ctx context.Context, restaurantID string) ([]models.StockItem, error) {
	q := url.Values{}
	q.Set("restaurantId", restaurantID)

	out := []models.StockItem{}
	if _, err := c.Do(ctx, http.MethodGet, "/stock", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMovement records a stock movement
func (c *Client) CreateMovement(ctx context.Context, m models.Movement) (*models.Movement, error) {
	var created models.Movement
	if _, err := c.Do(ctx, http.MethodPost, "/movements", nil, m, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListSuppliers returns the suppliers of a restaurant
func (c *Client) ListSuppliers(ctx context.Context, restaurantID string) ([]models.Supplier, error) {
	q := url.Values{}
	q.Set("restaurantId", restaurantID)

	out := []models.Supplier{}
	if _, err := c.Do(ctx, http.MethodGet, "/suppliers", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBookings returns reservations in a date range
func (c *Client) ListBookings(ctx context.Context, restaurantID string, r models.DateRange) ([]models.Booking, error) {
	q := rangeQuery(restaurantID, r)

	out := []models.Booking{}
	if _, err := c.Do(ctx, http.MethodGet, "/bookings", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListInvoices returns a page of invoices along with pagination meta
func (c *Client) ListInvoices(ctx context.Context, restaurantID string, page int) ([]models.Invoice, *Meta, error) {
	q := url.Values{}
	q.Set("restaurantId", restaurantID)
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}

	out := []models.Invoice{}
	env, err := c.Do(ctx, http.MethodGet, "/invoices", q, nil, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, env.Meta, nil
}

// GetSalesSummary aggregates sales over a date range
func (c *Client) GetSalesSummary(ctx context.Context, restaurantID string, r models.DateRange) (*models.SalesSummary, error) {
	var s models.SalesSummary
	if _, err := c.Do(ctx, http.MethodGet, "/sales/summary", rangeQuery(restaurantID, r), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func rangeQuery(restaurantID string, r models.DateRange) url.Values {
	q := url.Values{}
	q.Set("restaurantId", restaurantID)
	if !r.From.IsZero() {
		q.Set("from", r.From.Format(dateLayout))
	}
	if !r.To.IsZero() {
		q.Set("to", r.To.Format(dateLayout))
	}
	return q
}
