package series

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"agrimonitor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRoundTrip(t *testing.T) {
	s := models.Series{
		{Timestamp: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), AirHumidityPct: 61.123456, SoilMoistureVol: 0.301234},
		{Timestamp: time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC), AirHumidityPct: 62.654321, SoilMoistureVol: 0.299999},
		{Timestamp: time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC), AirHumidityPct: 58.5, SoilMoistureVol: 0.31},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, s))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "timestamp,air_humidity,soil_moisture", lines[0])

	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, len(s))

	for i := range s {
		assert.True(t, s[i].Timestamp.Equal(parsed[i].Timestamp), "row %d timestamp", i)
		assert.InDelta(t, s[i].AirHumidityPct, parsed[i].AirHumidityPct, 1e-6, "row %d air humidity", i)
		assert.InDelta(t, s[i].SoilMoistureVol, parsed[i].SoilMoistureVol, 1e-6, "row %d soil moisture", i)
	}
}

func TestReadCSVRejectsBadRows(t *testing.T) {
	input := "timestamp,air_humidity,soil_moisture\n2024-06-01T00:00,not-a-number,0.3\n"
	_, err := ReadCSV(strings.NewReader(input))
	assert.Error(t, err)
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("timestamp,air_humidity,soil_moisture\n"))
	assert.ErrorIs(t, err, ErrNoValidData)
}
