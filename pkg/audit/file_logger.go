package audit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eduledger/institute/pkg/migrate"
)

const (
	currentName   = "migration.log"
	rotatedPrefix = "migration-"
	rotatedLayout = "20060102-150405.000000"
)

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	Dir      string // Directory holding the audit files
	MaxSize  int64  // Rotate once the current file reaches this many bytes (default: 50MB)
	MaxFiles int    // Rotated files to keep (default: 10)
}

// FileLogger writes migration progress to a rotating plain-text file
type FileLogger struct {
	out    *rotatingFile
	logger *logrus.Logger
	runID  string
}

var _ migrate.Recorder = (*FileLogger)(nil)

// NewFileLogger opens (or creates) the audit file in config.Dir
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = 50 * 1024 * 1024
	}
	if config.MaxFiles <= 0 {
		config.MaxFiles = 10
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	out := &rotatingFile{dir: config.Dir, maxSize: config.MaxSize, maxFiles: config.MaxFiles, now: time.Now}
	if err := out.open(); err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return &FileLogger{out: out, logger: logger}, nil
}

// Path returns the current audit file
func (l *FileLogger) Path() string {
	return filepath.Join(l.out.dir, currentName)
}

// Files returns the rotated files followed by the current one
func (l *FileLogger) Files() ([]string, error) {
	rotated, err := l.out.rotated()
	if err != nil {
		return nil, err
	}
	return append(rotated, l.Path()), nil
}

func (l *FileLogger) entry() *logrus.Entry {
	return l.logger.WithField("run_id", l.runID)
}

func (l *FileLogger) RunStarted(runID, dialect string, tables []string) {
	l.runID = runID
	l.entry().WithFields(logrus.Fields{
		"dialect": dialect,
		"tables":  strings.Join(tables, ","),
	}).Info("migration started")
}

func (l *FileLogger) TableStarted(table string) {
	l.entry().WithField("table", table).Info("table started")
}

func (l *FileLogger) TableWarning(table, message string) {
	l.entry().WithField("table", table).Warn(message)
}

func (l *FileLogger) TableFinished(res migrate.TableResult) {
	e := l.entry().WithFields(logrus.Fields{
		"table":    res.Table,
		"columns":  res.Columns,
		"rows":     res.Rows,
		"batches":  res.Batches,
		"duration": res.Duration.String(),
	})
	if res.NextIdentity > 0 {
		e = e.WithField("next_identity", res.NextIdentity)
	}
	if len(res.FallbackColumns) > 0 {
		e = e.WithField("fallback_columns", strings.Join(res.FallbackColumns, ","))
	}
	if res.Err != nil {
		e.WithError(res.Err).Error("table failed")
		return
	}
	e.Info("table migrated")
}

func (l *FileLogger) RunFinished(report *migrate.Report) {
	e := l.entry().WithFields(logrus.Fields{
		"succeeded": report.Succeeded(),
		"failed":    len(report.FailedTables()),
		"rows":      report.TotalRows(),
		"duration":  report.Duration().String(),
		"dry_run":   report.DryRun,
	})
	if failed := report.FailedTables(); len(failed) > 0 {
		e.WithField("failed_tables", strings.Join(failed, ",")).Warn("migration finished with failures")
		return
	}
	e.Info("migration finished")
}

// ReadLines returns up to limit trailing lines of the current file. A
// non-positive limit returns every line.
func (l *FileLogger) ReadLines(limit int) ([]string, error) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	file, err := os.Open(l.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

// Close closes the audit file
func (l *FileLogger) Close() error {
	return l.out.Close()
}

// rotatingFile is the io.Writer behind the logrus logger
type rotatingFile struct {
	mu       sync.Mutex
	dir      string
	file     *os.File
	size     int64
	maxSize  int64
	maxFiles int
	now      func() time.Time
}

func (f *rotatingFile) open() error {
	path := filepath.Join(f.dir, currentName)
	if info, err := os.Stat(path); err == nil && info.Size() >= f.maxSize {
		if err := f.rotate(); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}
	f.file = file
	f.size = info.Size()
	return nil
}

func (f *rotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, os.ErrClosed
	}
	if f.size > 0 && f.size+int64(len(p)) > f.maxSize {
		if err := f.rotate(); err != nil {
			return 0, err
		}
		if err := f.open(); err != nil {
			return 0, err
		}
	}

	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

// rotate renames the current file aside and prunes old ones. Callers hold mu
// or have not yet published f.
func (f *rotatingFile) rotate() error {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}

	current := filepath.Join(f.dir, currentName)
	rotated := filepath.Join(f.dir, rotatedPrefix+f.now().UTC().Format(rotatedLayout)+".log")
	if err := os.Rename(current, rotated); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	files, err := f.rotated()
	if err != nil {
		return err
	}
	if len(files) > f.maxFiles {
		for _, old := range files[:len(files)-f.maxFiles] {
			if err := os.Remove(old); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old audit log %s: %v\n", old, err)
			}
		}
	}
	return nil
}

// rotated lists rotated files oldest first. The timestamp layout sorts
// lexically.
func (f *rotatingFile) rotated() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(f.dir, rotatedPrefix+"*.log"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (f *rotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
