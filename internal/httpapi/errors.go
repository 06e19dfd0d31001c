package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/insight"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps the engine's error taxonomy onto HTTP statuses and a
// machine-readable kind. Malformed provider output is deliberately folded
// into service-unavailable: the UI must be able to tell "not enough data
// yet" from "AI is down", and a garbled response is the latter.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, insight.ErrDealNotClosed):
		return c.JSON(http.StatusConflict, errorBody{
			Error:   "deal_not_closed",
			Message: err.Error(),
		})
	case errors.Is(err, insight.ErrInvalidUsage), errors.Is(err, crm.ErrUnknownEntityType):
		return c.JSON(http.StatusBadRequest, errorBody{
			Error:   "invalid_input",
			Message: err.Error(),
		})
	case errors.Is(err, crm.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody{
			Error:   "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, insight.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, errorBody{
			Error:   "service_unavailable",
			Message: "AI provider is unavailable, try again later",
		})
	}
	return c.JSON(http.StatusInternalServerError, errorBody{
		Error:   "internal",
		Message: "internal error",
	})
}
