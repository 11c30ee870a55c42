package apierr

import (
	"errors"
	"fmt"
	"net/http"

	types "github.com/yungbote/intromatch-backend/internal/domain"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps the domain error taxonomy onto an HTTP status and code.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, types.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, types.ErrValidationFailed):
		return New(http.StatusBadRequest, "validation_failed", err)
	case errors.Is(err, types.ErrExternalService):
		return New(http.StatusBadGateway, "external_service_failure", err)
	case errors.Is(err, types.ErrConfiguration):
		return New(http.StatusInternalServerError, "configuration_error", err)
	case errors.Is(err, types.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}
