// Package series turns raw hourly records into the clean, gap-free form the
// dashboard charts and exports.
package series

import (
	"errors"
	"math"
	"sort"
	"time"

	"agrimonitor/internal/models"
)

// ErrNoValidData means nothing survived normalization: mismatched arrays,
// all-null rows, or an empty record.
var ErrNoValidData = errors.New("no valid data")

// Open-Meteo emits local timestamps without a zone offset.
const hourlyTimeLayout = "2006-01-02T15:04"

// Normalize zips the raw parallel arrays into samples, dropping every row
// with a null or unparseable field. It is a pure function: the same record
// always yields the identical series.
func Normalize(rec models.HourlyRecord) (models.Series, error) {
	n := len(rec.Times)
	if n == 0 || len(rec.AirHumidity) != n || len(rec.SoilMoisture) != n {
		return nil, ErrNoValidData
	}

	out := make(models.Series, 0, n)
	for i := 0; i < n; i++ {
		if rec.AirHumidity[i] == nil || rec.SoilMoisture[i] == nil {
			continue
		}
		ts, err := parseHourlyTime(rec.Times[i])
		if err != nil {
			continue
		}
		out = append(out, models.Sample{
			Timestamp:       ts,
			AirHumidityPct:  *rec.AirHumidity[i],
			SoilMoistureVol: *rec.SoilMoisture[i],
		})
	}

	if len(out) == 0 {
		return nil, ErrNoValidData
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out, nil
}

func parseHourlyTime(s string) (time.Time, error) {
	if ts, err := time.Parse(hourlyTimeLayout, s); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Stats computes the summary panel numbers over the period. StdDev is the
// sample standard deviation; with fewer than two samples it is zero.
func Stats(s models.Series) models.SeriesStats {
	air := make([]float64, len(s))
	soil := make([]float64, len(s))
	for i, sample := range s {
		air[i] = sample.AirHumidityPct
		soil[i] = sample.SoilMoistureVol
	}
	return models.SeriesStats{
		Air:  metricStats(air),
		Soil: metricStats(soil),
	}
}

func metricStats(values []float64) models.MetricStats {
	if len(values) == 0 {
		return models.MetricStats{}
	}

	min, max := values[0], values[0]
	sum := 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(values))

	std := 0.0
	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := v - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(len(values)-1))
	}

	return models.MetricStats{
		Mean:   mean,
		Min:    min,
		Max:    max,
		StdDev: std,
	}
}
