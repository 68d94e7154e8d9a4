package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_NoDatabase(t *testing.T) {
	checker := NewHealthChecker(nil, "test")
	status := checker.Check(context.Background())

	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "test", status.Version)
	assert.Empty(t, status.Checks)
}

func TestHealthChecker_DatabaseHealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	status := NewHealthChecker(db, "1.0.0").Check(context.Background())

	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Checks["database"].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_DatabasePingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	status := NewHealthChecker(db, "1.0.0").Check(context.Background())

	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Checks["database"].Message, "connection refused")
}

func TestHealthChecker_QueryFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("read only"))

	status := NewHealthChecker(db, "1.0.0").Check(context.Background())

	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Checks["database"].Message, "query failed")
}

func TestHealthChecker_SchemaCheck(t *testing.T) {
	const missingQuery = `SELECT t FROM unnest\(\$1::text\[\]\) AS t WHERE to_regclass\(t\) IS NULL`

	t.Run("all tables present", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
		mock.ExpectQuery(missingQuery).WithArgs(sqlmock.AnyArg()).WillReturnRows(sqlmock.NewRows([]string{"t"}))

		status := NewHealthChecker(db, "1.0.0", "students", "courses").Check(context.Background())

		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, StatusHealthy, status.Checks["schema"].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing tables degrade", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
		mock.ExpectQuery(missingQuery).WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow("leads").AddRow("invoices"))

		status := NewHealthChecker(db, "1.0.0", "students", "invoices", "leads").Check(context.Background())

		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, "missing tables: invoices, leads", status.Checks["schema"].Message)
		assert.Equal(t, StatusHealthy, status.Checks["database"].Status)
	})

	t.Run("skipped when database is down", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("down"))

		status := NewHealthChecker(db, "1.0.0", "students").Check(context.Background())

		assert.Equal(t, StatusUnhealthy, status.Status)
		_, checked := status.Checks["schema"]
		assert.False(t, checked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHealthChecker_Routes(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, NewHealthChecker(db, "1.0.0"))

	t.Run("liveness", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readiness unhealthy", func(t *testing.T) {
		mock.ExpectPing().WillReturnError(errors.New("down"))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, StatusUnhealthy, status.Status)
	})
}
