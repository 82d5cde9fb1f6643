package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"greader-sync/service"
	"greader-sync/utils"
)

// mapSyncError converts a sync or edit error into an echo.HTTPError.
func mapSyncError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrCycleInProgress):
		return echo.NewHTTPError(http.StatusConflict, "a sync cycle is already running for this account")

	case errors.Is(err, utils.ErrCircuitBreakerOpen),
		errors.Is(err, service.ErrQuotaExhausted):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "syncing is paused for this account")

	case errors.Is(err, service.ErrTokenNotAuthorized):
		return echo.NewHTTPError(http.StatusPreconditionFailed, "account is not authorized yet")

	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "provider did not answer in time")

	case service.KindOf(err) == service.ErrorKindAuth:
		return echo.NewHTTPError(http.StatusBadGateway, "provider rejected the account credentials")

	case service.KindOf(err) == service.ErrorKindNetwork:
		return echo.NewHTTPError(http.StatusBadGateway, "provider unavailable")

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
