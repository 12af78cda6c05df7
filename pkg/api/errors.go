package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/odgrim/abathur/pkg/task"
)

// mapServiceError maps task/repository-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *task.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	var transErr *task.TransitionError
	if errors.As(err, &transErr) {
		return echo.NewHTTPError(http.StatusConflict, transErr.Error())
	}
	if errors.Is(err, task.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if errors.Is(err, task.ErrIdempotencyConflict) {
		return echo.NewHTTPError(http.StatusConflict, "idempotency key already exists")
	}
	if errors.Is(err, task.ErrDecompositionConflict) {
		return echo.NewHTTPError(http.StatusConflict, "parent task version conflict")
	}

	slog.Error("unexpected task service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
