package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduledger/institute/pkg/audit"
	"github.com/eduledger/institute/pkg/config"
	"github.com/eduledger/institute/pkg/migrate"
)

func TestPrintReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	report := &migrate.Report{
		RunID:      "run-1",
		Dialect:    "mysql",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Tables: []migrate.TableResult{
			{Table: "courses", Rows: 3, Batches: 1, NextIdentity: 8},
			{Table: "students", Err: errors.New("boom")},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "TABLE")
	assert.Regexp(t, `courses\s+3\s+1\s+8\s+ok`, out)
	assert.Regexp(t, `students\s+0\s+0\s+-\s+failed: boom`, out)
	assert.Contains(t, out, "run run-1: 1/2 tables, 3 rows in 1.5s")
	assert.NotContains(t, out, "-- courses")
}

func TestPrintReport_DryRunStatements(t *testing.T) {
	report := &migrate.Report{
		RunID:  "run-2",
		DryRun: true,
		Tables: []migrate.TableResult{{
			Table:      "courses",
			Warnings:   []string{"column search: no mapping for tsvector, using TEXT"},
			Statements: []string{"DROP TABLE IF EXISTS `courses`", "CREATE TABLE `courses` (`id` INT)"},
		}},
	}

	var buf bytes.Buffer
	printReport(&buf, report)

	assert.Contains(t, buf.String(), "-- courses\n-- warning: column search: no mapping for tsvector, using TEXT\n"+
		"DROP TABLE IF EXISTS `courses`;\nCREATE TABLE `courses` (`id` INT);\n")
}

func TestApplyFlags(t *testing.T) {
	require.NoError(t, flag.CommandLine.Parse([]string{"--dry-run", "--tables", "courses, students", "--batch-size", "25", "--skip-verify"}))
	t.Cleanup(func() {
		_ = flag.CommandLine.Parse([]string{"--dry-run=false", "--tables=", "--batch-size=0", "--skip-verify=false"})
	})

	cfg := &config.MigrateConfig{Migration: config.MigrationConfig{BatchSize: 100, VerifyCounts: true}}
	applyFlags(cfg)

	assert.True(t, cfg.Migration.DryRun)
	assert.Equal(t, []string{"courses", "students"}, cfg.Migration.Tables)
	assert.Equal(t, 25, cfg.Migration.BatchSize)
	assert.False(t, cfg.Migration.VerifyCounts)
	assert.False(t, cfg.Migration.DiscoverFKs)
	assert.Equal(t, "mysql", targetDrivers[config.DialectMySQL])
}

func TestS3Config(t *testing.T) {
	got := s3Config(config.AuditConfig{
		LogDir:      "/tmp/logs",
		S3Bucket:    "institute-audit",
		S3Region:    "me-central-1",
		S3Endpoint:  "http://minio:9000",
		S3Prefix:    "migrations/",
		S3AccessKey: "minio",
		S3SecretKey: "minio-secret",
	})

	assert.Equal(t, audit.S3Config{
		Bucket:    "institute-audit",
		Region:    "me-central-1",
		Endpoint:  "http://minio:9000",
		Prefix:    "migrations/",
		AccessKey: "minio",
		SecretKey: "minio-secret",
	}, got)
}

func TestPrintAuditTail(t *testing.T) {
	recorder, err := audit.NewFileLogger(audit.FileLoggerConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	defer recorder.Close()

	recorder.RunStarted("run-7", "mysql", []string{"courses", "students"})
	recorder.TableStarted("courses")
	recorder.TableFinished(migrate.TableResult{Table: "courses", Err: errors.New("duplicate key")})

	var buf bytes.Buffer
	printAuditTail(&buf, recorder, 2)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "last 2 audit lines from "+recorder.Path())
	assert.Contains(t, lines[1], "table started")
	assert.Contains(t, lines[2], "table failed")
	assert.Contains(t, lines[2], "duplicate key")
	assert.Contains(t, lines[2], "run_id=run-7")
}
