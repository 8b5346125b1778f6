package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Warehouse drivers understood by database.Open.
const (
	DriverClickHouse = "clickhouse"
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
)

type Config struct {
	// Runtime
	Env      string
	LogLevel string
	HTTPAddr string

	// Warehouse Configuration
	WarehouseDriver     string
	WarehouseInitSchema bool
	CacheTTL            time.Duration

	// ClickHouse Configuration
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// Postgres / SQLite Configuration
	PostgresURL string
	SQLitePath  string

	// Agent Configuration
	GenAIAPIKey       string
	CompletionModel   string
	EmbeddingModel    string
	SemanticModelPath string
	SearchURL         string
	SearchCorpus      string
	SearchLimit       int
	AgentRowLimit     int

	// MQTT Configuration
	MQTTBroker       string
	MQTTClientID     string
	MQTTUsername     string
	MQTTPassword     string
	MQTTTopicScoring string
	MQTTTopicAlerts  string

	// Command Center
	CriticalAlertThreshold int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Env:      getEnv("ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		WarehouseDriver:     getEnv("WAREHOUSE_DRIVER", DriverClickHouse),
		WarehouseInitSchema: getEnvBool("WAREHOUSE_INIT_SCHEMA", false),
		CacheTTL:            getEnvDuration("CACHE_TTL", 5*time.Minute),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "fleet_ops"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		PostgresURL: getEnv("POSTGRES_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "fleet_ops.db"),

		GenAIAPIKey:       getEnv("GENAI_API_KEY", ""),
		CompletionModel:   getEnv("COMPLETION_MODEL", "gemini-2.5-flash"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		SemanticModelPath: getEnv("SEMANTIC_MODEL_PATH", ""),
		SearchURL:         getEnv("SEARCH_URL", ""),
		SearchCorpus:      getEnv("SEARCH_CORPUS", "runbook_documents"),
		SearchLimit:       getEnvInt("SEARCH_LIMIT", 3),
		AgentRowLimit:     getEnvInt("AGENT_ROW_LIMIT", 500),

		MQTTBroker:       getEnv("MQTT_BROKER", ""),
		MQTTClientID:     getEnv("MQTT_CLIENT_ID", "fleet-dashboard"),
		MQTTUsername:     getEnv("MQTT_USERNAME", ""),
		MQTTPassword:     getEnv("MQTT_PASSWORD", ""),
		MQTTTopicScoring: getEnv("MQTT_TOPIC_SCORING", "fleet/scoring/+/completed"),
		MQTTTopicAlerts:  getEnv("MQTT_TOPIC_ALERTS", "fleet/alerts/{region}"),

		CriticalAlertThreshold: getEnvInt("CRITICAL_ALERT_THRESHOLD", 15),
	}
}

// Validate reports configuration that cannot produce a working warehouse session.
func (c *Config) Validate() error {
	switch c.WarehouseDriver {
	case DriverClickHouse:
		if c.ClickHouseAddr == "" {
			return fmt.Errorf("CLICKHOUSE_ADDR is required for the %s driver", c.WarehouseDriver)
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the %s driver", c.WarehouseDriver)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s driver", c.WarehouseDriver)
		}
	default:
		return fmt.Errorf("unknown WAREHOUSE_DRIVER %q", c.WarehouseDriver)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("SEARCH_LIMIT must be positive, got %d", c.SearchLimit)
	}
	return nil
}

// MQTTEnabled reports whether a broker is configured.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to parse int, using default")
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to parse bool, using default")
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to parse duration, using default")
		return defaultValue
	}
	return d
}
