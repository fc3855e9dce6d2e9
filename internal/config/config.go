package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cleanskies/no2-data-prep/internal/domain"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DownloadDir string
	DailyDir    string
	MonthlyDir  string
	CityDataDir string

	CitiesGeoJSON string
	IncidenceCSV  string

	Alpha            float64
	Workers          int
	RequireFullMonth bool

	// BaselinePeriods overrides the default same-month-of-2019 baseline
	// selection. Entries are YYYY_MM, YYYY-MM, or a bare year that takes
	// each target's month.
	BaselinePeriods []string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Copernicus Data Space (Sentinel Hub) acquisition configuration.
	CDSEClientID     string
	CDSEClientSecret string
	CDSETokenURL     string
	CDSEBaseURL      string
	CDSETimeout      time.Duration
	AOIBBox          [4]float64 // minLon, minLat, maxLon, maxLat
	ResolutionX      float64    // meters per pixel
	ResolutionY      float64

	// Optional Kafka fan-out for city timepoint records.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	alpha, err := parseFloat("ALPHA", 0.05)
	if err != nil {
		return nil, err
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.New("ALPHA must be strictly between 0 and 1")
	}

	workers, err := parseInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, errors.New("WORKERS must be at least 1")
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cdseTimeout, err := parseDuration("CDSE_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	bbox, err := parseBBox("AOI_BBOX", [4]float64{5.8663, 47.2701, 15.0419, 55.0992})
	if err != nil {
		return nil, err
	}
	resX, err := parseFloat("RESOLUTION_X", 5000)
	if err != nil {
		return nil, err
	}
	resY, err := parseFloat("RESOLUTION_Y", 3500)
	if err != nil {
		return nil, err
	}

	requireFullMonth, err := parseBool("REQUIRE_FULL_MONTH", true)
	if err != nil {
		return nil, err
	}

	baselinePeriods := parseList(os.Getenv("BASELINE_PERIODS"))
	for _, b := range baselinePeriods {
		if _, err := domain.ParsePeriodWithFallback(b, time.January); err != nil {
			return nil, fmt.Errorf("invalid BASELINE_PERIODS entry: %w", err)
		}
	}

	kafkaBrokers := parseList(os.Getenv("KAFKA_BROKERS"))

	cfg := &Config{
		DownloadDir: envOrDefault("DOWNLOAD_DIR", "data/downloads"),
		DailyDir:    envOrDefault("NO2_DAILY_DIR", "data/no2_daily"),
		MonthlyDir:  envOrDefault("NO2_MONTHLY_DIR", "data/no2_monthly"),
		CityDataDir: envOrDefault("CITY_DATA_DIR", "data/city_data"),

		CitiesGeoJSON: envOrDefault("CITIES_GEOJSON", "cities_major.geojson"),
		IncidenceCSV:  os.Getenv("INCIDENCE_CSV"),

		Alpha:            alpha,
		Workers:          workers,
		RequireFullMonth: requireFullMonth,
		BaselinePeriods:  baselinePeriods,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CDSEClientID:     os.Getenv("SENTINELHUB_CLIENT_ID"),
		CDSEClientSecret: os.Getenv("SENTINELHUB_CLIENT_SECRET"),
		CDSETokenURL:     envOrDefault("CDSE_TOKEN_URL", "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"),
		CDSEBaseURL:      envOrDefault("CDSE_BASE_URL", "https://sh.dataspace.copernicus.eu"),
		CDSETimeout:      cdseTimeout,
		AOIBBox:          bbox,
		ResolutionX:      resX,
		ResolutionY:      resY,

		KafkaBrokers:   kafkaBrokers,
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "city-timepoints"),
		KafkaEnabled:   len(kafkaBrokers) > 0,
	}

	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_SINK_TOPIC is empty")
	}

	return cfg, nil
}

// ValidateCDSE checks the acquisition credentials, which only the download
// command needs.
func (c *Config) ValidateCDSE() error {
	if c.CDSEClientID == "" || c.CDSEClientSecret == "" {
		return errors.New("SENTINELHUB_CLIENT_ID and SENTINELHUB_CLIENT_SECRET must be set")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: want a positive duration", key)
	}
	return d, nil
}

func parseBBox(key string, fallback [4]float64) ([4]float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]float64{}, fmt.Errorf("invalid %s: want minLon,minLat,maxLon,maxLat", key)
	}
	var bbox [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		bbox[i] = v
	}
	if bbox[0] >= bbox[2] || bbox[1] >= bbox[3] {
		return [4]float64{}, fmt.Errorf("invalid %s: min corner must be south-west of max corner", key)
	}
	return bbox, nil
}
