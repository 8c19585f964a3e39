package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"agrimonitor/internal/models"
	"go.uber.org/zap"
)

// OpenMeteoClient fetches hourly air-humidity and soil-moisture series from
// the Open-Meteo forecast endpoint. The endpoint is forecast-oriented and in
// practice only serves a recent rolling window; older ranges come back
// truncated or empty rather than as an explicit error, and that behaviour is
// kept as-is for compatibility with the existing dashboard.
type OpenMeteoClient struct {
	*BaseClient
	baseURL   string
	timezone  string
	soilDepth string
}

const (
	airHumidityVar     = "relative_humidity_2m"
	soilMoisturePrefix = "soil_moisture_"
)

// NewOpenMeteoClient builds a client for the given soil depth band
// (e.g. "0_to_1cm", "3_to_9cm"). Open-Meteo needs no API key.
func NewOpenMeteoClient(baseURL, timezone, soilDepth string, config ClientConfig, logger *zap.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if timezone == "" {
		timezone = "Europe/Paris"
	}
	if soilDepth == "" {
		soilDepth = "0_to_1cm"
	}
	return &OpenMeteoClient{
		BaseClient: NewBaseClient("openmeteo", config, logger),
		baseURL:    baseURL,
		timezone:   timezone,
		soilDepth:  soilDepth,
	}
}

func (c *OpenMeteoClient) soilMoistureVar() string {
	return soilMoisturePrefix + c.soilDepth
}

// FetchHourly retrieves the raw hourly record for the query window. It
// returns ErrMalformedResponse when the payload lacks the hourly object,
// ErrPartialData when either requested variable is absent or empty, and the
// base client's classified errors otherwise. HTTP 400 (invalid coordinates
// or dates) stays distinguishable through HTTPError.Status.
func (c *OpenMeteoClient) FetchHourly(ctx context.Context, q models.TelemetryQuery) (*models.HourlyRecord, error) {
	soilVar := c.soilMoistureVar()

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%g", q.Latitude))
	values.Set("longitude", fmt.Sprintf("%g", q.Longitude))
	values.Set("hourly", airHumidityVar+","+soilVar)
	values.Set("start_date", q.StartDate.Format("2006-01-02"))
	values.Set("end_date", q.EndDate.Format("2006-01-02"))
	values.Set("timezone", c.timezone)

	body, err := c.Get(ctx, fmt.Sprintf("%s?%s", c.baseURL, values.Encode()))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Hourly == nil {
		return nil, fmt.Errorf("%w: missing hourly object", ErrMalformedResponse)
	}

	record := &models.HourlyRecord{}
	if err := decodeHourlyField(payload.Hourly, "time", &record.Times); err != nil {
		return nil, err
	}
	if err := decodeHourlyField(payload.Hourly, airHumidityVar, &record.AirHumidity); err != nil {
		return nil, err
	}
	if err := decodeHourlyField(payload.Hourly, soilVar, &record.SoilMoisture); err != nil {
		return nil, err
	}

	// Either variable missing entirely is "partial data": the location may
	// simply not have soil telemetry, so the caller can still degrade.
	if len(record.AirHumidity) == 0 || len(record.SoilMoisture) == 0 {
		c.logger.Warn("Requested variables unavailable for location",
			zap.Float64("latitude", q.Latitude),
			zap.Float64("longitude", q.Longitude),
			zap.Int("air_values", len(record.AirHumidity)),
			zap.Int("soil_values", len(record.SoilMoisture)))
		return nil, ErrPartialData
	}

	return record, nil
}

func decodeHourlyField(hourly map[string]json.RawMessage, key string, dst interface{}) error {
	raw, ok := hourly[key]
	if !ok {
		// Absent arrays are reported as empty; FetchHourly decides whether
		// that is partial data.
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrMalformedResponse, key, err)
	}
	return nil
}
