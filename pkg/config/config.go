// Package config loads ledger configuration from environment variables and
// .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config represents the application configuration.
type Config struct {
	Ledger LedgerConfig
	Server ServerConfig
	Debug  bool
}

// LedgerConfig holds storage and pricing settings. Empty paths are derived
// from DataDir by pathutil.
type LedgerConfig struct {
	DataDir           string
	DBPath            string
	ReportsDir        string
	SequencePath      string
	CategoryMapping   string
	DefaultVATPercent decimal.Decimal
	Currency          string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
}

// Load loads configuration from environment variables.
// It loads .env from the current directory when present, or the given file.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}

	vat, err := parseDecimalEnv("LEDGER_DEFAULT_VAT_PERCENT", decimal.NewFromInt(15))
	if err != nil {
		return nil, err
	}
	if vat.IsNegative() {
		return nil, fmt.Errorf("invalid LEDGER_DEFAULT_VAT_PERCENT: must not be negative")
	}

	config := &Config{
		Ledger: LedgerConfig{
			DataDir:           getEnvOrDefault("LEDGER_DATA_DIR", "./data"),
			DBPath:            os.Getenv("LEDGER_DB_PATH"),
			SequencePath:      os.Getenv("LEDGER_SEQUENCE_PATH"),
			ReportsDir:        os.Getenv("LEDGER_REPORTS_DIR"),
			CategoryMapping:   getEnvOrDefault("LEDGER_CATEGORY_MAPPING", "config/category-mapping.yaml"),
			DefaultVATPercent: vat,
			Currency:          getEnvOrDefault("LEDGER_CURRENCY", "SAR"),
		},
		Server: ServerConfig{
			Port: port,
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate checks that every required dotted path (e.g. {"ledger", "dbPath"}) is set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "ledger":
			switch path[1] {
			case "dataDir":
				value = c.Ledger.DataDir
			case "dbPath":
				value = c.Ledger.DBPath
			case "sequencePath":
				value = c.Ledger.SequencePath
			case "categoryMapping":
				value = c.Ledger.CategoryMapping
			case "currency":
				value = c.Ledger.Currency
			}
		case "server":
			if path[1] == "port" && c.Server.Port > 0 {
				value = strconv.Itoa(c.Server.Port)
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseDecimalEnv(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid decimal value for %s: %s", key, value)
	}
	return parsed, nil
}
