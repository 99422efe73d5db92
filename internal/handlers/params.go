package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"itracksy/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// pagination reads limit/offset, clamping out-of-range values to the defaults
func pagination(c echo.Context) (limit, offset int) {
	limit = defaultLimit

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// timeParam parses an RFC 3339 timestamp or a YYYY-MM-DD date. Empty yields nil.
func timeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid %s: expected RFC 3339 timestamp or YYYY-MM-DD", name)
}

// boolParam parses an optional boolean query parameter
func boolParam(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: expected true or false", name)
	}
	return v, nil
}

// idParam reads a uuid path parameter in canonical form. A malformed id names no row.
func idParam(c echo.Context) (string, bool) {
	return canonicalID(c.Param("id"))
}

func canonicalID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
}

func serverError(c echo.Context, msg string) error {
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: msg})
}
