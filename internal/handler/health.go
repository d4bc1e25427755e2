package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and the
// scanner app's connectivity check.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
