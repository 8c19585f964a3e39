package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"agrimonitor/internal/models"
)

var csvHeader = []string{"timestamp", "air_humidity", "soil_moisture"}

// WriteCSV serializes the series for download, one row per sample.
func WriteCSV(w io.Writer, s models.Series) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, sample := range s {
		row := []string{
			sample.Timestamp.Format(hourlyTimeLayout),
			strconv.FormatFloat(sample.AirHumidityPct, 'f', -1, 64),
			strconv.FormatFloat(sample.SoilMoistureVol, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a previously exported file back into a series.
func ReadCSV(r io.Reader) (models.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoValidData
	}

	out := make(models.Series, 0, len(records)-1)
	for i, row := range records {
		if i == 0 {
			continue // header
		}
		ts, err := time.Parse(hourlyTimeLayout, row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad timestamp %q: %w", i, row[0], err)
		}
		airVal, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad air humidity %q: %w", i, row[1], err)
		}
		soilVal, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad soil moisture %q: %w", i, row[2], err)
		}
		out = append(out, models.Sample{
			Timestamp:       ts,
			AirHumidityPct:  airVal,
			SoilMoistureVol: soilVal,
		})
	}

	if len(out) == 0 {
		return nil, ErrNoValidData
	}
	return out, nil
}
