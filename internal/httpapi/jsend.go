package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ZaguanLabs/potlai"
)

// jsend is a JSend body. "fail" blames the request or the upstream model,
// "error" blames this server.
type jsend struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Reasons attached to failed translations.
const (
	reasonRateLimited = "rate_limited"
	reasonTokensLost  = "tokens_lost"
	reasonRefused     = "refused"
)

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, jsend{Status: "success", Data: data})
}

func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, jsend{Status: "fail", Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, jsend{
		Status:  "error",
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}

// translationFailed reports a chunk the orchestrator gave up on, together
// with the tokens spent on the attempts.
func translationFailed(c echo.Context, err error, tel potlai.Telemetry) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusServiceUnavailable, jsend{
			Status:  "error",
			Message: "translation cancelled",
			Code:    http.StatusServiceUnavailable,
			Data:    map[string]any{"usage": tel},
		})
	}

	var te *potlai.TranslationError
	if !errors.As(err, &te) {
		return internalError(c, err.Error())
	}

	status, reason := http.StatusBadGateway, reasonRefused
	var pe *potlai.PreservationError
	switch {
	case potlai.IsRateLimited(err):
		status, reason = http.StatusTooManyRequests, reasonRateLimited
	case errors.As(err, &pe):
		reason = reasonTokensLost
	}
	return fail(c, status, err.Error(), map[string]any{
		"reason":   reason,
		"attempts": te.Attempts,
		"usage":    tel,
	})
}
