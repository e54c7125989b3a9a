package handler // handler maps HTTP requests onto the ledger services

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/middleware"
)

// statusFor maps ledger sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": ...}.  Internal errors are logged and
// replaced by a generic message.
func fail(c echo.Context, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(code, echo.Map{"error": "internal error"})
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// caller returns the authenticated user or writes a 401.
func caller(c echo.Context) (uint64, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return id, ok
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		_ = badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
