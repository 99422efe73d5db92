package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"itracksy/internal/leads"
	"itracksy/internal/models"
)

// maxUploadSize caps lead CSV uploads
const maxUploadSize = 10 << 20

// CaptureLeadHandler records a lead from the landing or download page
// @Summary Capture lead
// @Tags public
// @Accept json
// @Produce json
// @Param request body models.LeadRequest true "Lead"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/leads [post]
func CaptureLeadHandler(store LeadStore, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.LeadRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		if !leads.ValidEmail(req.Email) {
			return badRequest(c, "A valid email is required")
		}

		lead := &models.Lead{
			Name:    strings.TrimSpace(req.Name),
			Email:   req.Email,
			Phone:   strings.TrimSpace(req.Phone),
			Message: strings.TrimSpace(req.Message),
		}
		if g := strings.TrimSpace(req.Group); g != "" {
			lead.GroupTag = &g
		}

		if err := store.Upsert(c.Request().Context(), lead); err != nil {
			logger.Error().Err(err).Msg("Failed to store lead")
			return serverError(c, "Failed to store lead")
		}

		return c.JSON(http.StatusCreated, models.SuccessResponse{Success: true})
	}
}

// ListLeadsHandler lists leads, optionally by group tag
// @Summary List leads
// @Tags admin
// @Produce json
// @Param group query string false "Group tag"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.ListResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/leads [get]
func ListLeadsHandler(store LeadStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pagination(c)

		items, err := store.List(c.Request().Context(), c.QueryParam("group"), limit, offset)
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to list leads: %v", err))
		}
		if items == nil {
			items = []models.Lead{}
		}

		return c.JSON(http.StatusOK, models.ListResponse{Items: items, Limit: limit, Offset: offset})
	}
}

// UploadLeadsResponse reports the outcome of a CSV upload
type UploadLeadsResponse struct {
	Success  bool     `json:"success"`
	Rows     int      `json:"rows"`     // Data rows in the file
	Unique   int      `json:"unique"`   // Distinct emails after dedup
	Imported int      `json:"imported"` // Rows inserted or updated
	Skipped  []string `json:"skipped,omitempty"`
}

// UploadLeadsHandler imports a lead CSV (multipart field "file")
// @Summary Upload lead CSV
// @Description Headers name,email,phone,message,group,submitted_at. Rows sharing an email keep the latest submitted_at.
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} UploadLeadsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/leads/upload [post]
func UploadLeadsHandler(store LeadStore, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "A CSV file is required in the \"file\" field")
		}
		if fh.Size > maxUploadSize {
			return badRequest(c, "CSV file is too large")
		}

		f, err := fh.Open()
		if err != nil {
			return badRequest(c, fmt.Sprintf("Failed to open upload: %v", err))
		}
		defer func() { _ = f.Close() }()

		parsed, err := leads.ParseCSV(f)
		if err != nil {
			return badRequest(c, err.Error())
		}

		imported, err := store.Import(c.Request().Context(), parsed.Leads)
		if err != nil {
			logger.Error().Err(err).Int("leads", len(parsed.Leads)).Msg("Lead import failed")
			return serverError(c, fmt.Sprintf("Failed to import leads: %v", err))
		}

		logger.Info().
			Int("rows", parsed.Rows).
			Int("unique", len(parsed.Leads)).
			Int("imported", imported).
			Int("skipped", len(parsed.Skipped)).
			Msg("Lead CSV imported")

		return c.JSON(http.StatusOK, UploadLeadsResponse{
			Success:  true,
			Rows:     parsed.Rows,
			Unique:   len(parsed.Leads),
			Imported: imported,
			Skipped:  parsed.Skipped,
		})
	}
}

// ImportFeedbackLeadsHandler turns feedback submitters into leads
// @Summary Import leads from feedback
// @Tags admin
// @Produce json
// @Success 200 {object} models.CountResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/leads/import-feedback [post]
func ImportFeedbackLeadsHandler(store LeadStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		n, err := store.ImportFromFeedback(c.Request().Context())
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to import feedback leads: %v", err))
		}
		return c.JSON(http.StatusOK, models.CountResponse{Success: true, Count: n})
	}
}
