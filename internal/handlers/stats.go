package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"itracksy/internal/analytics"
	"itracksy/internal/models"
)

// statsFilter reads email_type, event_type and the from/to range. A period
// parameter stands in for from/to when neither is given.
func statsFilter(c echo.Context) (models.EmailStatsFilter, error) {
	f := models.EmailStatsFilter{
		EmailType: c.QueryParam("email_type"),
		EventType: c.QueryParam("event_type"),
	}

	var err error
	if f.From, err = timeParam(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = timeParam(c, "to"); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, fmt.Errorf("from must be before to")
	}

	if period := c.QueryParam("period"); period != "" && f.From == nil && f.To == nil {
		from, to := analytics.ResolvePeriod(period, time.Now())
		f.From, f.To = &from, &to
	}

	if f.EventType != "" && !knownEventType(f.EventType) {
		return f, fmt.Errorf("unknown event_type %q", f.EventType)
	}
	return f, nil
}

func knownEventType(t string) bool {
	for _, known := range models.EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// EmailStatsHandler returns delivery statistics
// @Summary Email statistics
// @Description Event counts and delivery/open/click/bounce/complaint rates
// @Tags admin
// @Produce json
// @Param email_type query string false "Email type tag"
// @Param from query string false "Start (RFC 3339 or YYYY-MM-DD), inclusive"
// @Param to query string false "End (RFC 3339 or YYYY-MM-DD), exclusive"
// @Param period query string false "today, yesterday, last_7_days or last_30_days when from/to are absent"
// @Success 200 {object} models.EmailStatsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.EmailStatsResponse
// @Security BearerAuth
// @Router /api/admin/email-stats [get]
func EmailStatsHandler(stats StatsProvider, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		f, err := statsFilter(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		f.EventType = ""

		result, err := stats.EmailStats(c.Request().Context(), f)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to compute email stats")
			return c.JSON(http.StatusInternalServerError, models.EmailStatsResponse{
				Success: false,
				Error:   fmt.Sprintf("Failed to get email stats: %v", err),
			})
		}

		return c.JSON(http.StatusOK, models.EmailStatsResponse{Success: true, Stats: result})
	}
}

// EmailEventsListHandler lists stored delivery events
// @Summary List email events
// @Tags admin
// @Produce json
// @Param email_type query string false "Email type tag"
// @Param event_type query string false "Event type"
// @Param from query string false "Start (RFC 3339 or YYYY-MM-DD), inclusive"
// @Param to query string false "End (RFC 3339 or YYYY-MM-DD), exclusive"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.ListResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/email-events [get]
func EmailEventsListHandler(events EventStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		f, err := statsFilter(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		f.Limit, f.Offset = pagination(c)

		items, err := events.List(c.Request().Context(), f)
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to list email events: %v", err))
		}
		if items == nil {
			items = []models.EmailEvent{}
		}

		return c.JSON(http.StatusOK, models.ListResponse{Items: items, Limit: f.Limit, Offset: f.Offset})
	}
}
