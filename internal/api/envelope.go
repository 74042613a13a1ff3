package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// DefaultErrorMessage is used when a failed envelope carries no message
const DefaultErrorMessage = "Something went wrong. Please try again."

var (
	// ErrMalformedEnvelope is returned when the body is not a JSON
	// object shaped like an Envelope, or its data cannot be decoded.
	ErrMalformedEnvelope = errors.New("api: malformed response envelope")

	// ErrUnauthorized is returned after a 401 response has signed the
	// user out.
	ErrUnauthorized = errors.New("api: unauthorized")
)

// Envelope is the uniform body of every backend response
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
	Meta    *Meta           `json:"meta,omitempty"`
}

// ErrorBody describes why a request failed
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Meta carries pagination for list endpoints
type Meta struct {
	Page       int `json:"page,omitempty"`
	PageSize   int `json:"pageSize,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"totalPages,omitempty"`
}

// Error is a request the backend answered with success=false
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("api: %s (%d)", e.Message, e.Status)
}

// IsNotFound reports whether err is a backend 404
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// decodeEnvelope is the single shape guard: anything that is not an
// object envelope is malformed, success=false is an *Error.
func decodeEnvelope(status int, body []byte) (*Envelope, error) {
	if !isObject(body) {
		return nil, fmt.Errorf("%w: status %d", ErrMalformedEnvelope, status)
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if !env.Success {
		apiErr := &Error{Status: status, Message: DefaultErrorMessage}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			if env.Error.Message != "" {
				apiErr.Message = env.Error.Message
			}
		}
		return &env, apiErr
	}
	return &env, nil
}

// decodeData unmarshals the envelope payload into out. A null or absent
// payload leaves out untouched.
func (e *Envelope) decodeData(out any) error {
	if out == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("%w: data: %v", ErrMalformedEnvelope, err)
	}
	return nil
}

// HasData reports whether the envelope carried a non-null payload
func (e *Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

func isObject(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
