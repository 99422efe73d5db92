package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"itracksy/internal/database"
	"itracksy/internal/models"
)

// ListMessagesHandler lists stored inbound and outbound email
// @Summary List messages
// @Tags admin
// @Produce json
// @Param direction query string false "inbound or outbound"
// @Param feedback_id query string false "Only messages of this conversation"
// @Param unread query bool false "Only unread messages"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.ListResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/messages [get]
func ListMessagesHandler(messages MessageStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		direction := c.QueryParam("direction")
		if direction != "" && direction != models.DirectionInbound && direction != models.DirectionOutbound {
			return badRequest(c, "direction must be inbound or outbound")
		}
		unread, err := boolParam(c, "unread")
		if err != nil {
			return badRequest(c, err.Error())
		}
		feedbackID := c.QueryParam("feedback_id")
		if feedbackID != "" {
			var ok bool
			if feedbackID, ok = canonicalID(feedbackID); !ok {
				return badRequest(c, "feedback_id must be a uuid")
			}
		}
		limit, offset := pagination(c)

		items, err := messages.List(c.Request().Context(), database.MessageFilter{
			Direction:  direction,
			FeedbackID: feedbackID,
			UnreadOnly: unread,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to list messages: %v", err))
		}
		if items == nil {
			items = []models.Message{}
		}

		return c.JSON(http.StatusOK, models.ListResponse{Items: items, Limit: limit, Offset: offset})
	}
}

// MarkMessageReadHandler toggles a message's read flag
// @Summary Mark message read or unread
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param request body models.MarkReadRequest true "Read flag"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/messages/{id}/read [patch]
func MarkMessageReadHandler(messages MessageStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := idParam(c)
		if !ok {
			return notFound(c, "Message not found")
		}

		var req models.MarkReadRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}

		err := messages.MarkRead(c.Request().Context(), id, req.Read)
		if errors.Is(err, database.ErrNotFound) {
			return notFound(c, "Message not found")
		}
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to update message: %v", err))
		}

		return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
	}
}
