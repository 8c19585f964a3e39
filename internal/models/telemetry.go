package models

import (
	"time"
)

// LocationCandidate is one ranked result from a free-text location lookup.
type LocationCandidate struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// TelemetryQuery identifies the point and period to fetch hourly data for.
// Dates are whole days; EndDate must not be in the future and StartDate must
// precede EndDate (enforced by the controller).
type TelemetryQuery struct {
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// HourlyRecord is the raw upstream payload: parallel arrays keyed by variable.
// Entries may be null, which is why the value slices hold pointers.
type HourlyRecord struct {
	Times        []string   `json:"time"`
	AirHumidity  []*float64 `json:"air_humidity"`
	SoilMoisture []*float64 `json:"soil_moisture"`
}

// Sample is one normalized hourly row. No field is ever null after
// normalization.
type Sample struct {
	Timestamp       time.Time `json:"timestamp"`
	AirHumidityPct  float64   `json:"air_humidity_pct"`
	SoilMoistureVol float64   `json:"soil_moisture_vol"`
}

// Series is a chronologically ordered run of samples. It is rebuilt on every
// dashboard refresh and never persisted.
type Series []Sample

// MetricStats summarizes one variable over the selected period.
type MetricStats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// SeriesStats carries the summary panel numbers for both variables.
type SeriesStats struct {
	Air  MetricStats `json:"air_humidity"`
	Soil MetricStats `json:"soil_moisture"`
}

// TelemetryReport is the full pipeline output for one render: the normalized
// series plus the derived presentation values.
type TelemetryReport struct {
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Series    Series      `json:"series"`
	Stats     SeriesStats `json:"stats"`
	Latest    *Sample     `json:"latest,omitempty"`
}

// ValveStatus reports the remote valve flag as seen this render. When the
// store is unavailable or the read fails, On is already the fail-safe OFF
// default and Available is false.
type ValveStatus struct {
	Available bool   `json:"available"`
	On        bool   `json:"on"`
	Detail    string `json:"detail,omitempty"`
}
