package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agrimonitor/internal/config"
	"agrimonitor/internal/models"
	"agrimonitor/internal/services"
	"agrimonitor/pkg/client"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type stubGeo struct {
	candidates []models.LocationCandidate
	resolveErr error
}

func (g *stubGeo) Suggest(ctx context.Context, query string, limit int) []models.LocationCandidate {
	if len(query) < 2 {
		return nil
	}
	return g.candidates
}

func (g *stubGeo) Resolve(ctx context.Context, address string) (*models.LocationCandidate, error) {
	if g.resolveErr != nil {
		return nil, g.resolveErr
	}
	if len(g.candidates) == 0 {
		return nil, nil
	}
	return &g.candidates[0], nil
}

type stubWeather struct {
	record *models.HourlyRecord
	err    error
}

func (w *stubWeather) FetchHourly(ctx context.Context, q models.TelemetryQuery) (*models.HourlyRecord, error) {
	return w.record, w.err
}

type stubFlagStore struct {
	available bool
	value     bool
	hasValue  bool
	writeOK   bool
}

func (s *stubFlagStore) Available(ctx context.Context) bool { return s.available }
func (s *stubFlagStore) LastError() error                   { return nil }

func (s *stubFlagStore) ReadFlag(ctx context.Context) (bool, bool) {
	if !s.available || !s.hasValue {
		return false, false
	}
	return s.value, true
}

func (s *stubFlagStore) WriteFlag(ctx context.Context, on bool) bool {
	if !s.available || !s.writeOK {
		return false
	}
	s.value = on
	s.hasValue = true
	return true
}

func fv(v float64) *float64 { return &v }

func stubRecord() *models.HourlyRecord {
	rec := &models.HourlyRecord{}
	for i := 0; i < 24; i++ {
		rec.Times = append(rec.Times, fmt.Sprintf("2024-06-01T%02d:00", i))
		rec.AirHumidity = append(rec.AirHumidity, fv(60+float64(i)))
		rec.SoilMoisture = append(rec.SoilMoisture, fv(0.3))
	}
	return rec
}

func newTestApp(geo services.GeoLookup, weather services.WeatherFetcher, store services.FlagStore) *fiber.App {
	cfg := &config.Config{}
	cfg.Defaults.Latitude = config.DefaultLatitude
	cfg.Defaults.Longitude = config.DefaultLongitude
	cfg.Defaults.LookbackDays = 7
	cfg.Geocoder.SuggestLimit = 10

	logger := zap.NewNop()
	dashboard := services.NewDashboard(geo, weather, store, cfg, logger)

	app := fiber.New()
	SetupRoutes(app, NewHandler(dashboard, logger), logger)
	return app
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decoding body %q: %v", body, err)
	}
}

func TestSuggestEndpointAlwaysAnswers(t *testing.T) {
	app := newTestApp(&stubGeo{}, &stubWeather{}, &stubFlagStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/geo/suggest?q=a", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Candidates []models.LocationCandidate `json:"candidates"`
	}
	decodeBody(t, resp, &payload)
	if len(payload.Candidates) != 0 {
		t.Fatalf("expected empty candidate list, got %d", len(payload.Candidates))
	}
}

func TestTelemetryValidatesCoordinates(t *testing.T) {
	app := newTestApp(&stubGeo{}, &stubWeather{record: stubRecord()}, &stubFlagStore{})

	for _, target := range []string{
		"/api/v1/telemetry?lat=91&start_date=2024-06-01&end_date=2024-06-02",
		"/api/v1/telemetry?lon=-181&start_date=2024-06-01&end_date=2024-06-02",
		"/api/v1/telemetry?lat=abc",
		"/api/v1/telemetry?start_date=2024-06-02&end_date=2024-06-01",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", target, resp.StatusCode)
		}
	}
}

func TestTelemetryReturnsReport(t *testing.T) {
	app := newTestApp(&stubGeo{}, &stubWeather{record: stubRecord()}, &stubFlagStore{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/telemetry?lat=47.5&lon=2.0&start_date=2024-06-01&end_date=2024-06-02", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var report models.TelemetryReport
	decodeBody(t, resp, &report)
	if len(report.Series) != 24 {
		t.Fatalf("expected 24 samples, got %d", len(report.Series))
	}
	if report.Latest == nil || report.Latest.AirHumidityPct != 83 {
		t.Fatalf("unexpected latest sample: %+v", report.Latest)
	}
}

func TestTelemetryErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"partial data", client.ErrPartialData, http.StatusBadGateway, "partial_data"},
		{"upstream bad request", &client.HTTPError{Status: http.StatusBadRequest}, http.StatusBadRequest, "invalid_request"},
		{"upstream server error", &client.HTTPError{Status: http.StatusInternalServerError}, http.StatusBadGateway, "upstream_error"},
		{"timeout", client.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
		{"network", client.ErrNetwork, http.StatusBadGateway, "network_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(&stubGeo{}, &stubWeather{err: tc.err}, &stubFlagStore{})

			req := httptest.NewRequest(http.MethodGet,
				"/api/v1/telemetry?start_date=2024-06-01&end_date=2024-06-02", nil)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, resp.StatusCode)
			}

			var payload struct {
				Code string `json:"code"`
			}
			decodeBody(t, resp, &payload)
			if payload.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, payload.Code)
			}
		})
	}
}

func TestExportServesCSV(t *testing.T) {
	app := newTestApp(&stubGeo{}, &stubWeather{record: stubRecord()}, &stubFlagStore{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/telemetry/export?start_date=2024-06-01&end_date=2024-06-02", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv content type, got %q", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 25 { // header + 24 samples
		t.Fatalf("expected 25 lines, got %d", len(lines))
	}
}

func TestValveReadDegradesToOff(t *testing.T) {
	app := newTestApp(&stubGeo{}, &stubWeather{}, &stubFlagStore{available: false})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/valve", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected degraded 200, got %d", resp.StatusCode)
	}

	var status models.ValveStatus
	decodeBody(t, resp, &status)
	if status.Available || status.On {
		t.Fatalf("expected unavailable valve reported OFF, got %+v", status)
	}
}

func TestValveWrite(t *testing.T) {
	store := &stubFlagStore{available: true, writeOK: true}
	app := newTestApp(&stubGeo{}, &stubWeather{}, store)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/valve", strings.NewReader(`{"on": true}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var status models.ValveStatus
	decodeBody(t, resp, &status)
	if !status.On {
		t.Fatalf("expected valve reported ON, got %+v", status)
	}
	if !store.value {
		t.Fatal("expected the flag to be written to the store")
	}
}

func TestValveWriteUnavailable(t *testing.T) {
	app := newTestApp(&stubGeo{}, &stubWeather{}, &stubFlagStore{available: false})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/valve", strings.NewReader(`{"on": true}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.StatusCode)
	}
}

func TestValveWriteRejectsBadBody(t *testing.T) {
	app := newTestApp(&stubGeo{}, &stubWeather{}, &stubFlagStore{available: true, writeOK: true})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/valve", strings.NewReader(`{"state": "on"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestResolveNotFound(t *testing.T) {
	app := newTestApp(&stubGeo{}, &stubWeather{}, &stubFlagStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/geo/resolve?q=Nowhere", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestResolveTimeoutDiagnostic(t *testing.T) {
	app := newTestApp(&stubGeo{resolveErr: client.ErrTimeout}, &stubWeather{}, &stubFlagStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/geo/resolve?q=Paris", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected status 504, got %d", resp.StatusCode)
	}
}
