package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Default monitored point: an agricultural zone in central France.
const (
	DefaultLatitude  = 47.5
	DefaultLongitude = 2.0
)

const defaultFirebaseURL = "https://esp32-spi-projet-default-rtdb.europe-west1.firebasedatabase.app"

// localCredentialsFile takes precedence over GOOGLE_APPLICATION_CREDENTIALS
// when present in the working directory.
const localCredentialsFile = "firebase_credentials.json"

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Geocoder struct {
		BaseURL      string
		UserAgent    string
		Timeout      time.Duration
		SuggestLimit int
	}

	Weather struct {
		BaseURL   string
		Timeout   time.Duration
		Timezone  string
		SoilDepth string
	}

	Valve struct {
		DatabaseURL     string
		CredentialsPath string
	}

	Defaults struct {
		Latitude     float64
		Longitude    float64
		LookbackDays int
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("SERVER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("SERVER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("SERVER_WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Geocoding (Nominatim requires an identifying User-Agent)
	cfg.Geocoder.BaseURL = getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/search")
	cfg.Geocoder.UserAgent = getEnv("GEOCODER_USER_AGENT", "agrimonitor/1.0")
	cfg.Geocoder.Timeout = parseDuration(getEnv("GEOCODER_TIMEOUT", "10s"))
	cfg.Geocoder.SuggestLimit = parseInt(getEnv("SUGGEST_LIMIT", "10"))

	// Weather API
	cfg.Weather.BaseURL = getEnv("WEATHER_URL", "https://api.open-meteo.com/v1/forecast")
	cfg.Weather.Timeout = parseDuration(getEnv("WEATHER_TIMEOUT", "10s"))
	cfg.Weather.Timezone = getEnv("WEATHER_TIMEZONE", "Europe/Paris")
	cfg.Weather.SoilDepth = getEnv("SOIL_DEPTH_BAND", "0_to_1cm")

	// Remote valve flag store
	cfg.Valve.DatabaseURL = getEnv("FIREBASE_DATABASE_URL", defaultFirebaseURL)
	cfg.Valve.CredentialsPath = resolveCredentialsPath()

	// Dashboard defaults
	cfg.Defaults.Latitude = parseFloat(getEnv("DEFAULT_LATITUDE", strconv.FormatFloat(DefaultLatitude, 'f', -1, 64)))
	cfg.Defaults.Longitude = parseFloat(getEnv("DEFAULT_LONGITUDE", strconv.FormatFloat(DefaultLongitude, 'f', -1, 64)))
	cfg.Defaults.LookbackDays = parseInt(getEnv("LOOKBACK_DAYS", "7"))

	return cfg, nil
}

// resolveCredentialsPath prefers a service-account file next to the binary,
// then falls back to the path the environment points at. The returned path
// may not exist; the valve store treats that as "unavailable" rather than a
// startup error.
func resolveCredentialsPath() string {
	if _, err := os.Stat(localCredentialsFile); err == nil {
		return localCredentialsFile
	}
	if env := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); env != "" {
		return env
	}
	return localCredentialsFile
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
