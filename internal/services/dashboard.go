package services

import (
	"bytes"
	"context"
	"errors"
	"time"

	"agrimonitor/internal/config"
	"agrimonitor/internal/models"
	"agrimonitor/internal/series"
	"go.uber.org/zap"
)

// ErrInvalidPeriod is returned when the requested window is not a valid past
// range (start must precede end, end must not be in the future).
var ErrInvalidPeriod = errors.New("start date must precede end date and end date cannot be in the future")

// GeoLookup converts free text into location candidates.
type GeoLookup interface {
	Suggest(ctx context.Context, query string, limit int) []models.LocationCandidate
	Resolve(ctx context.Context, address string) (*models.LocationCandidate, error)
}

// WeatherFetcher retrieves the raw hourly record for a point and period.
type WeatherFetcher interface {
	FetchHourly(ctx context.Context, q models.TelemetryQuery) (*models.HourlyRecord, error)
}

// FlagStore is the remote valve flag.
type FlagStore interface {
	Available(ctx context.Context) bool
	LastError() error
	ReadFlag(ctx context.Context) (value bool, ok bool)
	WriteFlag(ctx context.Context, on bool) bool
}

// Dashboard reconstructs the full pipeline output on every external input
// event: geocode, fetch, normalize, summarize, and the independent valve
// read/write. It keeps no state between renders beyond the remote store's
// connection handle.
type Dashboard struct {
	geo     GeoLookup
	weather WeatherFetcher
	valve   FlagStore
	cfg     *config.Config
	logger  *zap.Logger
}

func NewDashboard(geo GeoLookup, weather WeatherFetcher, valve FlagStore, cfg *config.Config, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		geo:     geo,
		weather: weather,
		valve:   valve,
		cfg:     cfg,
		logger:  logger,
	}
}

// DefaultQuery is the window shown before the user picks anything: the
// configured point over the configured lookback ending today.
func (d *Dashboard) DefaultQuery() models.TelemetryQuery {
	end := time.Now().Truncate(24 * time.Hour)
	return models.TelemetryQuery{
		Latitude:  d.cfg.Defaults.Latitude,
		Longitude: d.cfg.Defaults.Longitude,
		StartDate: end.AddDate(0, 0, -d.cfg.Defaults.LookbackDays),
		EndDate:   end,
	}
}

// Suggest proxies autocomplete lookups. A non-positive limit falls back to
// the configured one.
func (d *Dashboard) Suggest(ctx context.Context, query string, limit int) []models.LocationCandidate {
	if limit <= 0 {
		limit = d.cfg.Geocoder.SuggestLimit
	}
	return d.geo.Suggest(ctx, query, limit)
}

// Resolve geocodes a full address, keeping the lookup's error classification
// for user-facing diagnostics.
func (d *Dashboard) Resolve(ctx context.Context, address string) (*models.LocationCandidate, error) {
	return d.geo.Resolve(ctx, address)
}

// Telemetry runs one synchronous acquisition pass: fetch, normalize,
// summarize.
func (d *Dashboard) Telemetry(ctx context.Context, q models.TelemetryQuery) (*models.TelemetryReport, error) {
	if err := validatePeriod(q); err != nil {
		return nil, err
	}

	record, err := d.weather.FetchHourly(ctx, q)
	if err != nil {
		return nil, err
	}

	s, err := series.Normalize(*record)
	if err != nil {
		return nil, err
	}

	report := &models.TelemetryReport{
		Latitude:  q.Latitude,
		Longitude: q.Longitude,
		Series:    s,
		Stats:     series.Stats(s),
	}
	latest := s[len(s)-1]
	report.Latest = &latest

	d.logger.Debug("Telemetry pass complete",
		zap.Float64("latitude", q.Latitude),
		zap.Float64("longitude", q.Longitude),
		zap.Int("samples", len(s)))

	return report, nil
}

// ExportCSV serializes the normalized series for download.
func (d *Dashboard) ExportCSV(ctx context.Context, q models.TelemetryQuery) ([]byte, error) {
	report, err := d.Telemetry(ctx, q)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := series.WriteCSV(&buf, report.Series); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValveStatus reads the remote flag for this render. Whenever the true state
// cannot be determined the valve is assumed OFF; the default is applied here,
// fresh on every call, never cached.
func (d *Dashboard) ValveStatus(ctx context.Context) models.ValveStatus {
	state, ok := d.valve.ReadFlag(ctx)
	if !ok {
		status := models.ValveStatus{Available: d.valve.Available(ctx), On: false}
		if err := d.valve.LastError(); err != nil {
			status.Detail = err.Error()
		}
		return status
	}
	return models.ValveStatus{Available: true, On: state}
}

// SetValve writes the requested state if it differs from the current one and
// reports the state as seen after the pass. written is false when a needed
// write failed.
func (d *Dashboard) SetValve(ctx context.Context, on bool) (status models.ValveStatus, written bool) {
	current, ok := d.valve.ReadFlag(ctx)
	if ok && current == on {
		return models.ValveStatus{Available: true, On: current}, true
	}

	if !d.valve.WriteFlag(ctx, on) {
		status = d.ValveStatus(ctx)
		return status, false
	}
	return models.ValveStatus{Available: true, On: on}, true
}

func validatePeriod(q models.TelemetryQuery) error {
	if !q.StartDate.Before(q.EndDate) {
		return ErrInvalidPeriod
	}
	today := time.Now().Truncate(24 * time.Hour)
	if q.EndDate.After(today) {
		return ErrInvalidPeriod
	}
	return nil
}
