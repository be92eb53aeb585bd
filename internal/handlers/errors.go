package handlers

import (
	"errors"
	"net/http"

	"logitrack/internal/common"

	"github.com/labstack/echo/v4"
)

// httpError maps domain errors onto HTTP status codes. Anything unrecognized
// is a 500 so store failures never masquerade as client mistakes.
func httpError(err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	case errors.Is(err, common.ErrDuplicateSKU):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrInsufficientStock):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrReferencedByShipment):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Storage backend unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
