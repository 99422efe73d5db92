package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"itracksy/internal/database"
	"itracksy/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// dbPingTimeout bounds the database check; a shorter request deadline wins
const dbPingTimeout = 5 * time.Second

var errNoDatabase = errors.New("database connection not initialized")

// HealthHandler reports process liveness and the running version
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func HealthHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Version:   version,
		})
	}
}

// DBHealthHandler runs SELECT 1 against Postgres inside a read-only transaction
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} models.DBHealthResponse
// @Failure 503 {object} models.DBHealthResponse
// @Router /healthz/db [get]
func DBHealthHandler(db *sqlx.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db == nil {
			return dbUnhealthy(c, 0, errNoDatabase)
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), dbPingTimeout)
		defer cancel()

		start := time.Now()
		if err := database.ExecuteReadOnlyPing(ctx, db); err != nil {
			return dbUnhealthy(c, time.Since(start), fmt.Errorf("read-only check: %w", err))
		}

		return c.JSON(http.StatusOK, models.DBHealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Connected: true,
			Latency:   time.Since(start),
		})
	}
}

func dbUnhealthy(c echo.Context, latency time.Duration, err error) error {
	return c.JSON(http.StatusServiceUnavailable, models.DBHealthResponse{
		Status:    "unhealthy",
		Timestamp: time.Now().UTC(),
		Latency:   latency,
		Error:     err.Error(),
	})
}

// RootHandler identifies the API
func RootHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "iTracksy API",
			"version": version,
			"status":  "running",
		})
	}
}
