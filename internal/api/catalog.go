package api

import (
	"context"
	"net/http"
	"net/url"

	"neembleeat/internal/models"
)

// ListCategories returns the categories of a restaurant
func (c *Client) ListCategories(ctx context.Context, restaurantID string) ([]models.Category, error) {
	q := url.Values{}
	q.Set("restaurantId", restaurantID)

	out := []models.Category{}
	if _, err := c.Do(ctx, http.MethodGet, "/categories", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCategory removes a category
func (c *Client) DeleteCategory(ctx context.Context, categoryID string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(categoryID), nil, nil, nil)
	return err
}

// GetItem fetches one menu item with its customisation rules
func (c *Client) GetItem(ctx context.Context, itemID string) (*models.MenuItem, error) {
	var it models.MenuItem
	if _, err := c.Do(ctx, http.MethodGet, "/items/"+url.PathEscape(itemID), nil, nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// ListItems returns the items of a category
func (c *Client) ListItems(ctx context.Context, categoryID string) ([]models.MenuItem, error) {
	q := url.Values{}
	q.Set("categoryId", categoryID)

	out := []models.MenuItem{}
	if _, err := c.Do(ctx, http.MethodGet, "/items", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMenu fetches a menu with its categories and items
func (c *Client) GetMenu(ctx context.Context, menuID string) (*models.Menu, error) {
	var m models.Menu
	if _, err := c.Do(ctx, http.MethodGet, "/menus/"+url.PathEscape(menuID), nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMenus returns the menus of a restaurant
func (c *Client) ListMenus(ctx context.Context, restaurantID string) ([]models.Menu, error) {
	q := url.Values{}
	q.Set("restaurantId", restaurantID)

	out := []models.Menu{}
	if _, err := c.Do(ctx, http.MethodGet, "/menus", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
