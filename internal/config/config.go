package config

import (
	"os"
	"strconv"
	"strings"
)

// Analytics sink names accepted by ANALYTICS_SINK
const (
	SinkRPC        = "rpc"
	SinkPostgres   = "postgres"
	SinkClickHouse = "clickhouse"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	TablePrefix string
	DataDir     string
	LogDir      string
	LogMaxFiles int

	// Supabase
	SupabaseURL     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json

	// Caller-facing anon keys. Either one authenticates an ingest request.
	SupabaseAnonKey string
	QSAnonKey       string
	// Privileged key for the store write. Never accepted from callers.
	ServiceRoleKey string

	// Analytics sink
	AnalyticsSink   string
	AnalyticsSchema string
	AnalyticsTable  string
	ClickHouse      ClickHouseConfig

	// Outbound tracker
	AnalyticsEnabled bool
	AppVersion       string

	// Groups
	AllowRemoteGroupCreate bool
}

// ClickHouseConfig holds native-protocol connection settings
type ClickHouseConfig struct {
	Host       string
	NativePort int
	Database   string
	Username   string
	Password   string
	Table      string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	supabaseURL := strings.TrimRight(getEnv("SUPABASE_URL", ""), "/")

	jwksURL := ""
	if supabaseURL != "" {
		jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	return &Config{
		Port:        getEnv("PORT", "5000"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		TablePrefix: getTablePrefix(env),
		DataDir:     getEnv("DATA_DIR", "data"),
		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),

		SupabaseURL:     supabaseURL,
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,

		SupabaseAnonKey: strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		QSAnonKey:       strings.TrimSpace(os.Getenv("QS_ANON_KEY")),
		ServiceRoleKey:  strings.TrimSpace(os.Getenv("QS_SERVICE_ROLE_KEY")),

		AnalyticsSink:   strings.ToLower(getEnv("ANALYTICS_SINK", SinkRPC)),
		AnalyticsSchema: getEnv("SUPABASE_ANALYTICS_SCHEMA", "quicksend_analytics"),
		AnalyticsTable:  getEnv("SUPABASE_ANALYTICS_TABLE", "events_raw_v1"),
		ClickHouse: ClickHouseConfig{
			Host:       getEnv("CLICKHOUSE_HOST", ""),
			NativePort: getEnvInt("CLICKHOUSE_NATIVE_PORT", 9000),
			Database:   getEnv("CLICKHOUSE_DB_NAME", ""),
			Username:   getEnv("CLICKHOUSE_USERNAME", "default"),
			Password:   getEnv("CLICKHOUSE_PASSWORD", ""),
			Table:      getEnv("CLICKHOUSE_TABLE", "events_raw_v1"),
		},

		AnalyticsEnabled: getEnvBool("SUPABASE_ANALYTICS_ENABLED", true),
		AppVersion:       getEnv("APP_VERSION", "1.0.8"),

		AllowRemoteGroupCreate: getEnvBool("ALLOW_REMOTE_GROUP_CREATE", true),
	}
}

// AnonKeys returns the configured caller-facing keys, empty values dropped
func (c *Config) AnonKeys() []string {
	var keys []string
	for _, k := range []string{c.SupabaseAnonKey, c.QSAnonKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// TrackerAnonKey is the key the outbound tracker presents to the ingest function
func (c *Config) TrackerAnonKey() string {
	if c.SupabaseAnonKey != "" {
		return c.SupabaseAnonKey
	}
	return c.QSAnonKey
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvBool accepts 1/true/yes/on (any case) as true
func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
