package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	PostgresAddress  string
	PostgresPort     string
	PostgresDB       string
	PostgresUsername string
	PostgresPassword string

	LocalDBPath string

	AnomalyBaseURL string
	AnomalyTimeout time.Duration

	CatalogBaseURL         string
	CatalogTimeout         time.Duration
	CatalogRefreshInterval time.Duration

	IngestAccountName string
	DedupWindow       time.Duration
	OperatorWorkers   int

	ProximityRadiusMeters float64
	ProximityInterval     time.Duration
	ProximityFlex         time.Duration
	LocationWaitTimeout   time.Duration

	ConnectivityProbeAddr string
	LogLevel              string
}

// PostgresURL builds the connection string for the ledger database.
func (c *Config) PostgresURL() string {
	return "postgres://" + c.PostgresUsername + ":" + c.PostgresPassword + "@" +
		c.PostgresAddress + ":" + c.PostgresPort + "/" + c.PostgresDB + "?sslmode=disable"
}

func ProcessEnvironmentVariables() (*Config, error) {
	// A missing .env file is the normal case outside local development
	_ = godotenv.Load()

	// In all cases the default behavior should be for the docker compose setup
	env := Config{
		Port:                   "9446",
		PostgresAddress:        "localhost",
		PostgresPort:           "5433",
		PostgresDB:             "postgres",
		PostgresUsername:       "postgres",
		PostgresPassword:       "testpassword",
		LocalDBPath:            "spendiq-local.db",
		AnomalyBaseURL:         "http://localhost:8000",
		AnomalyTimeout:         30 * time.Second,
		CatalogBaseURL:         "http://localhost:8000",
		CatalogTimeout:         10 * time.Second,
		CatalogRefreshInterval: time.Hour,
		IngestAccountName:      "Nu",
		DedupWindow:            60 * time.Second,
		OperatorWorkers:        4,
		ProximityRadiusMeters:  1000,
		ProximityInterval:      15 * time.Minute,
		ProximityFlex:          5 * time.Minute,
		LocationWaitTimeout:    30 * time.Second,
		ConnectivityProbeAddr:  "1.1.1.1:53",
		LogLevel:               "info",
	}

	stringVars := map[string]*string{
		"PORT":                    &env.Port,
		"POSTGRES_ADDRESS":        &env.PostgresAddress,
		"POSTGRES_PORT":           &env.PostgresPort,
		"POSTGRES_DB":             &env.PostgresDB,
		"POSTGRES_USERNAME":       &env.PostgresUsername,
		"POSTGRES_PASSWORD":       &env.PostgresPassword,
		"LOCAL_DB_PATH":           &env.LocalDBPath,
		"ANOMALY_BASE_URL":        &env.AnomalyBaseURL,
		"CATALOG_BASE_URL":        &env.CatalogBaseURL,
		"INGEST_ACCOUNT_NAME":     &env.IngestAccountName,
		"CONNECTIVITY_PROBE_ADDR": &env.ConnectivityProbeAddr,
		"LOG_LEVEL":               &env.LogLevel,
	}
	for name, target := range stringVars {
		if value := os.Getenv(name); len(value) != 0 {
			*target = value
		}
	}

	durationVars := map[string]*time.Duration{
		"ANOMALY_TIMEOUT":          &env.AnomalyTimeout,
		"CATALOG_TIMEOUT":          &env.CatalogTimeout,
		"CATALOG_REFRESH_INTERVAL": &env.CatalogRefreshInterval,
		"DEDUP_WINDOW":             &env.DedupWindow,
		"PROXIMITY_INTERVAL":       &env.ProximityInterval,
		"PROXIMITY_FLEX":           &env.ProximityFlex,
		"LOCATION_WAIT_TIMEOUT":    &env.LocationWaitTimeout,
	}
	for name, target := range durationVars {
		value := os.Getenv(name)
		if len(value) == 0 {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("%s: must not be negative", name)
		}
		*target = parsed
	}

	if value := os.Getenv("OPERATOR_WORKERS"); len(value) != 0 {
		workers, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("OPERATOR_WORKERS: %w", err)
		}
		env.OperatorWorkers = workers
	}

	if value := os.Getenv("PROXIMITY_RADIUS_METERS"); len(value) != 0 {
		radius, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("PROXIMITY_RADIUS_METERS: %w", err)
		}
		if radius <= 0 {
			return nil, fmt.Errorf("PROXIMITY_RADIUS_METERS: must be positive")
		}
		env.ProximityRadiusMeters = radius
	}

	if env.ProximityFlex > env.ProximityInterval {
		return nil, fmt.Errorf("PROXIMITY_FLEX must not exceed PROXIMITY_INTERVAL")
	}

	return &env, nil
}
