package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"itracksy/internal/database"
	"itracksy/internal/email"
	"itracksy/internal/models"
)

// CreateCampaignHandler creates a draft campaign
// @Summary Create campaign
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.CampaignRequest true "Campaign"
// @Success 201 {object} models.Campaign
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/campaigns [post]
func CreateCampaignHandler(campaigns CampaignStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.CampaignRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}

		req.TemplateKey = optionalPtr(req.TemplateKey)
		req.Content = optionalPtr(req.Content)
		switch {
		case strings.TrimSpace(req.Name) == "":
			return badRequest(c, "Name is required")
		case strings.TrimSpace(req.Subject) == "":
			return badRequest(c, "Subject is required")
		case req.TemplateKey == nil && req.Content == nil:
			return badRequest(c, "Either templateKey or content is required")
		}
		// Reject unknown templates up front rather than at send time
		if _, err := email.Render(req.Subject, req.TemplateKey, req.Content, email.Vars{}); err != nil {
			return badRequest(c, err.Error())
		}

		campaign := &models.Campaign{
			Name:        strings.TrimSpace(req.Name),
			Description: strings.TrimSpace(req.Description),
			Subject:     strings.TrimSpace(req.Subject),
			TemplateKey: req.TemplateKey,
			Content:     req.Content,
		}
		if err := campaigns.Create(c.Request().Context(), campaign); err != nil {
			return serverError(c, fmt.Sprintf("Failed to create campaign: %v", err))
		}

		return c.JSON(http.StatusCreated, campaign)
	}
}

func optionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(*s)
}

// ListCampaignsHandler lists campaigns, newest first
// @Summary List campaigns
// @Tags admin
// @Produce json
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.ListResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/campaigns [get]
func ListCampaignsHandler(campaigns CampaignStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pagination(c)

		items, err := campaigns.List(c.Request().Context(), limit, offset)
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to list campaigns: %v", err))
		}
		if items == nil {
			items = []models.Campaign{}
		}

		return c.JSON(http.StatusOK, models.ListResponse{Items: items, Limit: limit, Offset: offset})
	}
}

// GetCampaignHandler returns a campaign with recipient counts per status
// @Summary Get campaign
// @Tags admin
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.CampaignDetail
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/campaigns/{id} [get]
func GetCampaignHandler(campaigns CampaignStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id, ok := idParam(c)
		if !ok {
			return notFound(c, "Campaign not found")
		}

		campaign, err := campaigns.Get(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			return notFound(c, "Campaign not found")
		}
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to load campaign: %v", err))
		}

		counts, err := campaigns.RecipientCounts(ctx, id)
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to count recipients: %v", err))
		}

		return c.JSON(http.StatusOK, models.CampaignDetail{Campaign: *campaign, Recipients: counts})
	}
}

// AddRecipientsHandler attaches leads to a campaign by id list or group tag
// @Summary Add campaign recipients
// @Description Leads already attached to the campaign are skipped
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body models.RecipientsRequest true "Lead ids or group"
// @Success 200 {object} models.CountResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/campaigns/{id}/recipients [post]
func AddRecipientsHandler(campaigns CampaignStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id, ok := idParam(c)
		if !ok {
			return notFound(c, "Campaign not found")
		}

		var req models.RecipientsRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		group := strings.TrimSpace(req.Group)
		if len(req.LeadIDs) == 0 && group == "" {
			return badRequest(c, "Either leadIds or group is required")
		}
		leadIDs := make([]string, 0, len(req.LeadIDs))
		for _, raw := range req.LeadIDs {
			leadID, ok := canonicalID(raw)
			if !ok {
				return badRequest(c, fmt.Sprintf("Invalid lead id %q", raw))
			}
			leadIDs = append(leadIDs, leadID)
		}

		campaign, err := campaigns.Get(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			return notFound(c, "Campaign not found")
		}
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to load campaign: %v", err))
		}
		if campaign.Status == models.CampaignCompleted || campaign.Status == models.CampaignFailed {
			return badRequest(c, fmt.Sprintf("Campaign is %s", campaign.Status))
		}

		var added int
		if len(leadIDs) > 0 {
			added, err = campaigns.AddRecipients(ctx, id, leadIDs)
		} else {
			added, err = campaigns.AddRecipientsByGroup(ctx, id, group)
		}
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to add recipients: %v", err))
		}

		return c.JSON(http.StatusOK, models.CountResponse{Success: true, Count: added})
	}
}

// PreviewCampaignHandler renders a campaign for a sample recipient
// @Summary Preview campaign
// @Tags admin
// @Produce html
// @Param id path string true "Campaign ID"
// @Param name query string false "Sample recipient name"
// @Param email query string false "Sample recipient email"
// @Success 200 {string} string "HTML content"
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/campaigns/{id}/preview [get]
func PreviewCampaignHandler(campaigns CampaignStore, siteURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := idParam(c)
		if !ok {
			return notFound(c, "Campaign not found")
		}

		campaign, err := campaigns.Get(c.Request().Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			return notFound(c, "Campaign not found")
		}
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to load campaign: %v", err))
		}

		name := c.QueryParam("name")
		if name == "" {
			name = "Alex"
		}
		sample := c.QueryParam("email")
		if sample == "" {
			sample = "alex@example.com"
		}

		rendered, err := email.Render(campaign.Subject, campaign.TemplateKey, campaign.Content, email.Vars{
			Name: name, Email: sample, SiteURL: siteURL,
		})
		if err != nil {
			return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error()})
		}

		c.Response().Header().Set("X-Email-Subject", rendered.Subject)
		return c.HTML(http.StatusOK, rendered.HTML)
	}
}

// DispatchCampaignsHandler runs one campaign batch pass
// @Summary Dispatch campaigns
// @Description Sends the next window-filtered batch of every draft or active campaign. Intended for an hourly scheduler.
// @Tags cron
// @Produce json
// @Success 200 {object} models.DispatchResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/cron/campaigns [post]
func DispatchCampaignsHandler(dispatcher Dispatcher, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		results, err := dispatcher.Run(c.Request().Context())
		if err != nil {
			logger.Error().Err(err).Msg("Campaign dispatch failed")
			return serverError(c, fmt.Sprintf("Campaign dispatch failed: %v", err))
		}
		if results == nil {
			results = []models.DispatchResult{}
		}

		return c.JSON(http.StatusOK, models.DispatchResponse{Success: true, Campaigns: results})
	}
}
