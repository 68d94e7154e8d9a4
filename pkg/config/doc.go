// Package config loads the institute services' settings from environment variables.
//
// Two configurations exist: APIConfig for the analytics HTTP server and
// MigrateConfig for the PostgreSQL to MySQL/SQLite migrator.
//
// # Analytics API
//
//	INSTITUTE_DATABASE_URL="postgres://..."   # required
//	INSTITUTE_HOST="0.0.0.0"
//	INSTITUTE_PORT="8080"
//	INSTITUTE_HEALTH_PORT="9090"
//	INSTITUTE_CURRENCY="AED"
//	INSTITUTE_COURSE_LOOKUP="batched"         # batched or per-group
//	INSTITUTE_TIMEZONE="Asia/Dubai"
//	INSTITUTE_GAUGE_SCHEDULE="*/5 * * * *"
//
// # Migrator
//
//	INSTITUTE_TARGET_DATABASE_URL="user:pw@tcp(host:3306)/institute"
//	INSTITUTE_TARGET_DIALECT="mysql"          # mysql or sqlite
//	INSTITUTE_MIGRATE_BATCH_SIZE="100"
//	INSTITUTE_MIGRATE_TABLES="courses,students"
//	INSTITUTE_MIGRATE_TABLES_FILE="tables.yaml"
//	INSTITUTE_MIGRATE_LOG_DIR="./migration-logs"
//	INSTITUTE_AUDIT_S3_BUCKET=""
//
// LoadMigrateConfig does not validate so that command-line flags can be
// layered on top; call Validate once they are applied.
//
// # Observability
//
//	INSTITUTE_LOG_LEVEL="info"
//	INSTITUTE_METRICS_ENABLED="true"
//	INSTITUTE_OTEL_ENABLED="false"
//	INSTITUTE_OTEL_ENDPOINT="localhost:4317"
package config
