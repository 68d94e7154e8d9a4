package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eduledger/institute/pkg/observability"
)

// Course name lookup strategies
const (
	CourseLookupBatched  = "batched"
	CourseLookupPerGroup = "per-group"
)

// Target dialects supported by the migrator
const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

// APIConfig holds configuration for the analytics API server
type APIConfig struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Analytics     AnalyticsConfig
	Observability ObservabilityConfig
}

// MigrateConfig holds configuration for the cross-database migrator
type MigrateConfig struct {
	Source        DatabaseConfig
	Target        TargetConfig
	Migration     MigrationConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s liveness and readiness checks)
	HealthPort string
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string
	Schema       string
	MaxOpenConns int
	MaxIdleConns int
	ConnTimeout  time.Duration
	MaxLifetime  time.Duration
}

// TargetConfig describes the database the migrator writes to
type TargetConfig struct {
	URL     string
	Dialect string
}

// MigrationConfig tunes the copy loop and table selection
type MigrationConfig struct {
	BatchSize    int
	TablesFile   string
	DiscoverFKs  bool
	Tables       []string
	DryRun       bool
	VerifyCounts bool
}

// AuditConfig configures the migration audit artifact
type AuditConfig struct {
	LogDir     string
	MaxSize    int64
	MaxFiles   int
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string

	// Static keys for S3-compatible stores; empty uses the AWS default chain
	S3AccessKey string
	S3SecretKey string
}

// AnalyticsConfig holds aggregation settings
type AnalyticsConfig struct {
	Currency      string
	CourseLookup  string
	Timezone      string
	GaugeSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelEnvironment    string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// OTel converts the settings into an observability.OTelConfig
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Environment:    o.OTelEnvironment,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// LoadAPIConfig loads API configuration from environment variables
func LoadAPIConfig() (*APIConfig, error) {
	cfg := &APIConfig{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Analytics:     loadAnalyticsConfig(),
		Observability: loadObservabilityConfig("institute-api"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadMigrateConfig loads migrator configuration from environment variables.
// Callers may override fields (e.g. from flags) and must call Validate afterwards.
func LoadMigrateConfig() *MigrateConfig {
	return &MigrateConfig{
		Source: loadDatabaseConfig(),
		Target: TargetConfig{
			URL:     getEnv("INSTITUTE_TARGET_DATABASE_URL", ""),
			Dialect: strings.ToLower(getEnv("INSTITUTE_TARGET_DIALECT", DialectMySQL)),
		},
		Migration: MigrationConfig{
			BatchSize:    getEnvInt("INSTITUTE_MIGRATE_BATCH_SIZE", 100),
			TablesFile:   getEnv("INSTITUTE_MIGRATE_TABLES_FILE", ""),
			DiscoverFKs:  getEnvBool("INSTITUTE_MIGRATE_DISCOVER_FKS", false),
			Tables:       getEnvList("INSTITUTE_MIGRATE_TABLES"),
			VerifyCounts: getEnvBool("INSTITUTE_MIGRATE_VERIFY_COUNTS", true),
		},
		Audit: AuditConfig{
			LogDir:     getEnv("INSTITUTE_MIGRATE_LOG_DIR", "./migration-logs"),
			MaxSize:    getEnvInt64("INSTITUTE_MIGRATE_LOG_MAX_SIZE", 50*1024*1024),
			MaxFiles:   getEnvInt("INSTITUTE_MIGRATE_LOG_MAX_FILES", 10),
			S3Bucket:   getEnv("INSTITUTE_AUDIT_S3_BUCKET", ""),
			S3Region:   getEnv("INSTITUTE_AUDIT_S3_REGION", "me-central-1"),
			S3Endpoint: getEnv("INSTITUTE_AUDIT_S3_ENDPOINT", ""),
			S3Prefix:   getEnv("INSTITUTE_AUDIT_S3_PREFIX", "migrations/"),

			S3AccessKey: getEnv("INSTITUTE_AUDIT_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("INSTITUTE_AUDIT_S3_SECRET_KEY", ""),
		},
		Observability: loadObservabilityConfig("institute-migrate"),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("INSTITUTE_HOST", "0.0.0.0"),
		Port:            getEnv("INSTITUTE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("INSTITUTE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("INSTITUTE_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("INSTITUTE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("INSTITUTE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("INSTITUTE_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("INSTITUTE_DATABASE_URL", ""),
		Schema:       getEnv("INSTITUTE_SOURCE_SCHEMA", "public"),
		MaxOpenConns: getEnvInt("INSTITUTE_DATABASE_MAX_CONNS", 10),
		MaxIdleConns: getEnvInt("INSTITUTE_DATABASE_MIN_CONNS", 2),
		ConnTimeout:  getEnvDuration("INSTITUTE_DATABASE_TIMEOUT", 10*time.Second),
		MaxLifetime:  getEnvDuration("INSTITUTE_DATABASE_MAX_LIFETIME", 30*time.Minute),
	}
}

func loadAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		Currency:      getEnv("INSTITUTE_CURRENCY", "AED"),
		CourseLookup:  strings.ToLower(getEnv("INSTITUTE_COURSE_LOOKUP", CourseLookupBatched)),
		Timezone:      getEnv("INSTITUTE_TIMEZONE", "Asia/Dubai"),
		GaugeSchedule: getEnv("INSTITUTE_GAUGE_SCHEDULE", "*/5 * * * *"),
	}
}

func loadObservabilityConfig(serviceName string) ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("INSTITUTE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("INSTITUTE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("INSTITUTE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("INSTITUTE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("INSTITUTE_OTEL_SERVICE_NAME", serviceName),
		OTelServiceVersion: getEnv("INSTITUTE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelEnvironment:    getEnv("INSTITUTE_OTEL_ENVIRONMENT", ""),
		OTelInsecure:       getEnvBool("INSTITUTE_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("INSTITUTE_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the API configuration is valid
func (c *APIConfig) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("INSTITUTE_DATABASE_URL is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Analytics.CourseLookup {
	case CourseLookupBatched, CourseLookupPerGroup:
	default:
		return fmt.Errorf("invalid course lookup: %s (must be %s or %s)",
			c.Analytics.CourseLookup, CourseLookupBatched, CourseLookupPerGroup)
	}
	if strings.TrimSpace(c.Analytics.Currency) == "" {
		return fmt.Errorf("currency code is required")
	}
	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Analytics.Timezone, err)
	}

	return validateOTel(c.Observability)
}

// Validate checks if the migrator configuration is valid
func (c *MigrateConfig) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("INSTITUTE_DATABASE_URL is required")
	}
	if c.Source.Schema == "" {
		return fmt.Errorf("source schema is required")
	}

	switch c.Target.Dialect {
	case DialectMySQL, DialectSQLite:
	default:
		return fmt.Errorf("invalid target dialect: %s (must be %s or %s)",
			c.Target.Dialect, DialectMySQL, DialectSQLite)
	}
	if c.Target.URL == "" && !c.Migration.DryRun {
		return fmt.Errorf("INSTITUTE_TARGET_DATABASE_URL is required")
	}

	if c.Migration.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Migration.BatchSize)
	}
	if c.Audit.LogDir == "" {
		return fmt.Errorf("audit log directory is required")
	}
	if (c.Audit.S3AccessKey == "") != (c.Audit.S3SecretKey == "") {
		return fmt.Errorf("INSTITUTE_AUDIT_S3_ACCESS_KEY and INSTITUTE_AUDIT_S3_SECRET_KEY must be set together")
	}

	return validateOTel(c.Observability)
}

func validateOTel(o ObservabilityConfig) error {
	if o.OTelEnabled {
		if o.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if o.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if o.OTelSampleRatio < 0 || o.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %g", o.OTelSampleRatio)
		}
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable, dropping blanks
func getEnvList(key string) []string {
	return SplitList(os.Getenv(key))
}

// SplitList splits a comma-separated list, trimming spaces and dropping blanks
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
