package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"neembleeat/internal/models"
)

// GetRestaurantBySlug resolves the restaurant a diner route points at
func (c *Client) GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	var r models.Restaurant
	if _, err := c.Do(ctx, http.MethodGet, "/restaurants/slug/"+url.PathEscape(slug), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetActiveSession returns the open session of a table, or nil when the
// table has none.
func (c *Client) GetActiveSession(ctx context.Context, restaurantID string, tableNumber int) (*models.TableSession, error) {
	q := url.Values{}
	q.Set("restaurantId", restaurantID)
	q.Set("tableNumber", strconv.Itoa(tableNumber))

	var s models.TableSession
	env, err := c.Do(ctx, http.MethodGet, "/sessions/active", q, nil, &s)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !env.HasData() {
		return nil, nil
	}
	return &s, nil
}

// GetSession fetches a session by id
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.TableSession, error) {
	var s models.TableSession
	if _, err := c.Do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkNeedsBill asks staff to bring the bill for a session
func (c *Client) MarkNeedsBill(ctx context.Context, sessionID string) error {
	_, err := c.Do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/needs-bill", nil, nil, nil)
	return err
}

// ListSessionOrders returns every order placed in a session
func (c *Client) ListSessionOrders(ctx context.Context, sessionID string) ([]models.Order, error) {
	q := url.Values{}
	q.Set("sessionId", sessionID)

	orders := []models.Order{}
	if _, err := c.Do(ctx, http.MethodGet, "/orders", q, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrdersRequest submits cart lines as new orders in one call
type CreateOrdersRequest struct {
	Orders []models.NewOrder `json:"orders"`
}

// CreateOrders submits new orders. idempotencyKey lets a retried
// submission be recognised by the backend; an empty key gets a fresh one.
func (c *Client) CreateOrders(ctx context.Context, idempotencyKey string, orders []models.NewOrder) ([]models.Order, error) {
	if len(orders) == 0 {
		return nil, fmt.Errorf("api: no orders to create")
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	created := []models.Order{}
	_, err := c.Do(ctx, http.MethodPost, "/orders", nil, CreateOrdersRequest{Orders: orders}, &created,
		WithHeader("Idempotency-Key", idempotencyKey))
	if err != nil {
		return nil, err
	}
	return created, nil
}
