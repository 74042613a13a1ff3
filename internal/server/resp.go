package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"neembleeat/internal/api"
	"neembleeat/internal/checkout"
	"neembleeat/internal/session"
)

// Responses use the same envelope as the upstream API so a browser
// client can share one decoder.

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, api.Envelope{
		Status:  status,
		Message: message,
		Success: true,
		Data:    mustRaw(data),
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, api.Envelope{
		Status:  status,
		Success: false,
		Error:   &api.ErrorBody{Code: code, Message: message},
	})
}

// failErr maps err onto a status and envelope
func (s *Server) failErr(c *gin.Context, err error) {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		fail(c, status, apiErr.Code, apiErr.Message)
	case errors.Is(err, api.ErrUnauthorized):
		if route, ok := s.redirect.Take(); ok {
			c.Header("X-Redirect-To", route)
		}
		fail(c, http.StatusUnauthorized, "unauthorized", "Your session has expired. Please sign in again.")
	case errors.Is(err, session.ErrNoSession):
		fail(c, http.StatusNotFound, "no_session", "Ordering has not started at this table yet.")
	case errors.Is(err, session.ErrBillUnavailable):
		fail(c, http.StatusConflict, "bill_unavailable", "The bill has already been requested.")
	case errors.Is(err, checkout.ErrEmptyCart):
		fail(c, http.StatusBadRequest, "empty_cart", "Your cart is empty.")
	case errors.Is(err, checkout.ErrSessionEnded):
		fail(c, http.StatusConflict, "session_ended", "This table is no longer taking orders.")
	case errors.Is(err, api.ErrMalformedEnvelope):
		s.log.WithError(err).Error("upstream sent a malformed response")
		fail(c, http.StatusBadGateway, "bad_upstream", api.DefaultErrorMessage)
	default:
		s.log.WithError(err).Warn("upstream call failed")
		fail(c, http.StatusBadGateway, "upstream_unavailable", api.DefaultErrorMessage)
	}
}

func mustRaw(data any) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
