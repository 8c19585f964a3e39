package api

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"agrimonitor/internal/models"
	"agrimonitor/internal/series"
	"agrimonitor/internal/services"
	"agrimonitor/pkg/client"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Handler struct {
	dashboard *services.Dashboard
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewHandler(dashboard *services.Dashboard, logger *zap.Logger) *Handler {
	return &Handler{
		dashboard: dashboard,
		validate:  validator.New(),
		logger:    logger,
	}
}

// GetSuggestions handles GET /api/v1/geo/suggest. It always answers 200: the
// autocomplete list cannot distinguish lookup failure from no results.
func (h *Handler) GetSuggestions(c *fiber.Ctx) error {
	query := c.Query("q")
	limit := c.QueryInt("limit", 0)

	candidates := h.dashboard.Suggest(c.Context(), query, limit)
	if candidates == nil {
		candidates = []models.LocationCandidate{}
	}
	return c.JSON(fiber.Map{
		"candidates": candidates,
	})
}

// ResolveAddress handles GET /api/v1/geo/resolve. Unlike the suggestion path
// it maps each failure category to a distinct response for diagnostics.
func (h *Handler) ResolveAddress(c *fiber.Ctx) error {
	address := c.Query("q")
	if address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter q is required",
		})
	}

	candidate, err := h.dashboard.Resolve(c.Context(), address)
	if err != nil {
		h.logger.Warn("Address resolution failed",
			zap.String("address", address),
			zap.Error(err))
		return h.upstreamError(c, err)
	}
	if candidate == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Address not found",
		})
	}
	return c.JSON(candidate)
}

// GetTelemetry handles GET /api/v1/telemetry.
func (h *Handler) GetTelemetry(c *fiber.Ctx) error {
	query, err := h.telemetryQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.logger.Info("Fetching telemetry",
		zap.Float64("latitude", query.Latitude),
		zap.Float64("longitude", query.Longitude))

	report, err := h.dashboard.Telemetry(c.Context(), query)
	if err != nil {
		return h.upstreamError(c, err)
	}
	return c.JSON(report)
}

// ExportTelemetry handles GET /api/v1/telemetry/export, serving the series
// as a CSV download.
func (h *Handler) ExportTelemetry(c *fiber.Ctx) error {
	query, err := h.telemetryQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	data, err := h.dashboard.ExportCSV(c.Context(), query)
	if err != nil {
		return h.upstreamError(c, err)
	}

	filename := fmt.Sprintf("field_telemetry_%s.csv", time.Now().Format("20060102"))
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}

// GetValve handles GET /api/v1/valve. An unavailable store still renders:
// the valve is reported OFF with availability false.
func (h *Handler) GetValve(c *fiber.Ctx) error {
	return c.JSON(h.dashboard.ValveStatus(c.Context()))
}

type valveRequest struct {
	On *bool `json:"on"`
}

// SetValve handles PUT /api/v1/valve.
func (h *Handler) SetValve(c *fiber.Ctx) error {
	var req valveRequest
	if err := c.BodyParser(&req); err != nil || req.On == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Body must be a JSON object with a boolean \"on\" field",
		})
	}

	status, written := h.dashboard.SetValve(c.Context(), *req.On)
	if !written {
		code := fiber.StatusBadGateway
		if !status.Available {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"error":  "Failed to write valve state",
			"status": status,
		})
	}

	h.logger.Info("Valve state requested", zap.Bool("on", *req.On))
	return c.JSON(status)
}

// GetHealth handles GET /api/v1/health.
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":          "healthy",
		"timestamp":       time.Now(),
		"uptime":          time.Since(startTime).String(),
		"valve_available": h.dashboard.ValveStatus(c.Context()).Available,
	})
}

// telemetryQuery builds the query from request parameters, falling back to
// the configured defaults for anything omitted.
func (h *Handler) telemetryQuery(c *fiber.Ctx) (models.TelemetryQuery, error) {
	query := h.dashboard.DefaultQuery()

	if v := c.Query("lat"); v != "" {
		lat, err := parseCoordinate(v, "lat")
		if err != nil {
			return models.TelemetryQuery{}, err
		}
		query.Latitude = lat
	}
	if v := c.Query("lon"); v != "" {
		lon, err := parseCoordinate(v, "lon")
		if err != nil {
			return models.TelemetryQuery{}, err
		}
		query.Longitude = lon
	}
	if v := c.Query("start_date"); v != "" {
		start, err := time.Parse(dateLayout, v)
		if err != nil {
			return models.TelemetryQuery{}, fmt.Errorf("start_date must be YYYY-MM-DD")
		}
		query.StartDate = start
	}
	if v := c.Query("end_date"); v != "" {
		end, err := time.Parse(dateLayout, v)
		if err != nil {
			return models.TelemetryQuery{}, fmt.Errorf("end_date must be YYYY-MM-DD")
		}
		query.EndDate = end
	}

	if err := h.validate.Struct(query); err != nil {
		return models.TelemetryQuery{}, fmt.Errorf("latitude must be in [-90,90] and longitude in [-180,180]")
	}
	return query, nil
}

func parseCoordinate(value, name string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return f, nil
}

// upstreamError translates the integration failure taxonomy into responses.
// Nothing propagates as an unhandled fault; every path leaves the dashboard
// renderable.
func (h *Handler) upstreamError(c *fiber.Ctx, err error) error {
	var httpErr *client.HTTPError
	switch {
	case errors.Is(err, services.ErrInvalidPeriod):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "invalid_period",
		})
	case errors.As(err, &httpErr):
		if httpErr.Status == fiber.StatusBadRequest {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request, check coordinates and dates",
				"code":  "invalid_request",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": fmt.Sprintf("Upstream service answered HTTP %d", httpErr.Status),
			"code":  "upstream_error",
		})
	case errors.Is(err, client.ErrTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "Upstream service did not respond in time, please retry",
			"code":  "timeout",
		})
	case errors.Is(err, client.ErrPartialData):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Some requested variables are not available for this location",
			"code":  "partial_data",
		})
	case errors.Is(err, client.ErrMalformedResponse):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream service returned an unexpected payload",
			"code":  "malformed_response",
		})
	case errors.Is(err, client.ErrNetwork):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Could not reach the upstream service",
			"code":  "network_error",
		})
	case errors.Is(err, series.ErrNoValidData):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No valid data for the selected location and period",
			"code":  "no_valid_data",
		})
	default:
		h.logger.Error("Unclassified failure", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unexpected failure",
			"code":  "unknown",
		})
	}
}

var startTime = time.Now()
