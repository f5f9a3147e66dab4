package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// jsend-style response envelopes: "success" and "fail" carry data, "error"
// carries a message.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

func fail(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Status: "fail", Data: data})
}

func failBadRequest(c echo.Context, reason string) error {
	return fail(c, http.StatusBadRequest, map[string]string{"reason": reason})
}

func failValidation(c echo.Context, reasons []string) error {
	return fail(c, http.StatusBadRequest, map[string]any{"validation": reasons})
}

func failNotFound(c echo.Context, reason string) error {
	return fail(c, http.StatusNotFound, map[string]string{"reason": reason})
}

func failUnavailable(c echo.Context, reason string) error {
	return fail(c, http.StatusServiceUnavailable, map[string]string{"reason": reason})
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, envelope{Status: "error", Message: message})
}
