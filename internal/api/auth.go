package api

import (
	"context"
	"net/http"

	"neembleeat/internal/models"
)

// Login exchanges credentials for an access token. The backend also sets
// the refresh cookie in the client's jar.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthToken, error) {
	var tok models.AuthToken
	if _, err := c.Do(ctx, http.MethodPost, "/auth/login", nil, creds, &tok, withoutToken(), ignore401Hooks()); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Register creates an account and signs it in
func (c *Client) Register(ctx context.Context, creds models.Credentials) (*models.AuthToken, error) {
	var tok models.AuthToken
	if _, err := c.Do(ctx, http.MethodPost, "/auth/register", nil, creds, &tok, withoutToken(), ignore401Hooks()); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Refresh trades the refresh cookie for a new access token
func (c *Client) Refresh(ctx context.Context) (*models.AuthToken, error) {
	var tok models.AuthToken
	if _, err := c.Do(ctx, http.MethodPost, "/auth/refresh", nil, nil, &tok, withoutToken(), ignore401Hooks()); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Logout clears the refresh cookie on the backend
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, withoutToken(), ignore401Hooks())
	return err
}

// Me returns the signed-in user
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if _, err := c.Do(ctx, http.MethodGet, "/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
