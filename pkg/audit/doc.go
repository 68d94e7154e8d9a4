// Package audit writes the migration audit trail.
//
// FileLogger implements migrate.Recorder and writes one plain-text line per
// event to <dir>/migration.log, tagged with the run ID:
//
//	time="2026-03-15T10:30:00Z" level=info msg="table migrated" batches=3 rows=250 run_id=4f0c... table=students
//
// The file rotates to migration-<timestamp>.log once it reaches MaxSize and
// at most MaxFiles rotated files are kept.
//
// When a bucket is configured, S3Uploader copies the log files to
// s3://<bucket>/<prefix><run id>/ after the run.
package audit
