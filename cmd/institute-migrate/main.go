package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eduledger/institute/pkg/audit"
	"github.com/eduledger/institute/pkg/config"
	"github.com/eduledger/institute/pkg/migrate"
	"github.com/eduledger/institute/pkg/observability"
)

var (
	dryRun      = flag.Bool("dry-run", false, "Print the DDL for each table without touching the target")
	tables      = flag.String("tables", "", "Comma-separated tables to migrate (default: every table in the graph)")
	batchSize   = flag.Int("batch-size", 0, "Rows per INSERT statement (overrides INSTITUTE_MIGRATE_BATCH_SIZE)")
	tablesFile  = flag.String("tables-file", "", "YAML file declaring tables and their parents")
	discoverFKs = flag.Bool("discover-fks", false, "Add foreign key edges found in the source catalog to the table graph")
	skipVerify  = flag.Bool("skip-verify", false, "Do not compare target row counts after copying")
)

const auditTailLines = 20

var targetDrivers = map[string]string{
	config.DialectMySQL:  "mysql",
	config.DialectSQLite: "sqlite3",
}

func main() {
	flag.Parse()

	cfg := config.LoadMigrateConfig()
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		log.Fatalf("Failed to initialise OpenTelemetry: %v", err)
	}

	code := run(ctx, cfg, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("OpenTelemetry shutdown failed")
	}
	cancel()
	stop()
	os.Exit(code)
}

func applyFlags(cfg *config.MigrateConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dry-run":
			cfg.Migration.DryRun = *dryRun
		case "tables":
			cfg.Migration.Tables = config.SplitList(*tables)
		case "batch-size":
			cfg.Migration.BatchSize = *batchSize
		case "tables-file":
			cfg.Migration.TablesFile = *tablesFile
		case "discover-fks":
			cfg.Migration.DiscoverFKs = *discoverFKs
		case "skip-verify":
			cfg.Migration.VerifyCounts = !*skipVerify
		}
	})
}

func run(ctx context.Context, cfg *config.MigrateConfig, logger *observability.Logger) int {
	dialect, err := migrate.DialectFor(cfg.Target.Dialect)
	if err != nil {
		logger.WithError(err).Error("Unsupported target dialect")
		return 1
	}

	graph := migrate.DefaultTableGraph()
	if cfg.Migration.TablesFile != "" {
		graph, err = migrate.LoadTableGraphFile(cfg.Migration.TablesFile)
		if err != nil {
			logger.WithError(err).Error("Failed to load table graph")
			return 1
		}
	}

	sourceDB, err := sql.Open("postgres", cfg.Source.URL)
	if err != nil {
		logger.WithError(err).Error("Failed to open source database")
		return 1
	}
	defer sourceDB.Close()

	var targetDB *sql.DB
	if !cfg.Migration.DryRun {
		targetDB, err = sql.Open(targetDrivers[dialect.Name()], cfg.Target.URL)
		if err != nil {
			logger.WithError(err).Error("Failed to open target database")
			return 1
		}
		defer targetDB.Close()
		if dialect.Name() == config.DialectSQLite {
			targetDB.SetMaxOpenConns(1)
		}
	}

	recorder, err := audit.NewFileLogger(audit.FileLoggerConfig{
		Dir:      cfg.Audit.LogDir,
		MaxSize:  cfg.Audit.MaxSize,
		MaxFiles: cfg.Audit.MaxFiles,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to open audit log")
		return 1
	}
	defer recorder.Close()

	migrator := migrate.New(
		migrate.NewPostgresSource(sourceDB, cfg.Source.Schema),
		targetDB,
		dialect,
		graph,
		migrate.WithBatchSize(cfg.Migration.BatchSize),
		migrate.WithTables(cfg.Migration.Tables),
		migrate.WithDryRun(cfg.Migration.DryRun),
		migrate.WithVerifyCounts(cfg.Migration.VerifyCounts),
		migrate.WithForeignKeyDiscovery(cfg.Migration.DiscoverFKs),
		migrate.WithLogger(logger),
		migrate.WithRecorder(recorder),
	)

	report, err := migrator.Run(ctx)
	if report != nil {
		printReport(os.Stdout, report)
	}
	if err != nil {
		logger.WithError(err).Error("Migration aborted")
		printAuditTail(os.Stderr, recorder, auditTailLines)
		return 1
	}

	if cfg.Audit.S3Bucket != "" {
		if err := uploadAudit(ctx, cfg.Audit, recorder, report.RunID); err != nil {
			logger.WithError(err).Error("Failed to upload audit log")
			return 1
		}
	}

	if failed := report.FailedTables(); len(failed) > 0 {
		logger.WithField("failed_tables", strings.Join(failed, ",")).Error("Migration finished with failures")
		printAuditTail(os.Stderr, recorder, auditTailLines)
		return 1
	}
	return 0
}

func uploadAudit(ctx context.Context, cfg config.AuditConfig, recorder *audit.FileLogger, runID string) error {
	uploader, err := audit.NewS3Uploader(ctx, s3Config(cfg))
	if err != nil {
		return err
	}

	files, err := recorder.Files()
	if err != nil {
		return err
	}
	keys, err := uploader.UploadRun(ctx, runID, files)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintf(os.Stderr, "uploaded s3://%s/%s\n", cfg.S3Bucket, key)
	}
	return nil
}

func s3Config(cfg config.AuditConfig) audit.S3Config {
	return audit.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		Prefix:    cfg.S3Prefix,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}
}

// printAuditTail echoes the last audit lines so failures are visible
// without opening the log directory.
func printAuditTail(out io.Writer, recorder *audit.FileLogger, n int) {
	lines, err := recorder.ReadLines(n)
	if err != nil {
		fmt.Fprintf(out, "audit log unavailable: %v\n", err)
		return
	}
	fmt.Fprintf(out, "last %d audit lines from %s:\n", len(lines), recorder.Path())
	for _, line := range lines {
		fmt.Fprintln(out, "  "+line)
	}
}

func printReport(out io.Writer, report *migrate.Report) {
	if report.DryRun {
		for _, t := range report.Tables {
			fmt.Fprintf(out, "-- %s\n", t.Table)
			for _, w := range t.Warnings {
				fmt.Fprintf(out, "-- warning: %s\n", w)
			}
			for _, stmt := range t.Statements {
				fmt.Fprintf(out, "%s;\n", stmt)
			}
			if t.Err != nil {
				fmt.Fprintf(out, "-- error: %v\n", t.Err)
			}
			fmt.Fprintln(out)
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS\tBATCHES\tNEXT ID\tSTATUS")
	for _, t := range report.Tables {
		status := "ok"
		if t.Err != nil {
			status = "failed: " + t.Err.Error()
		}
		next := "-"
		if t.NextIdentity > 0 {
			next = fmt.Sprint(t.NextIdentity)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", t.Table, t.Rows, t.Batches, next, status)
	}
	w.Flush()

	fmt.Fprintf(out, "\nrun %s: %d/%d tables, %d rows in %s\n",
		report.RunID, report.Succeeded(), len(report.Tables), report.TotalRows(), report.Duration().Round(time.Millisecond))
}
