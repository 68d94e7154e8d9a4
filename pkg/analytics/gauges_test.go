package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduledger/institute/pkg/observability"
)

func TestGaugeRefresher_Refresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	refresher := NewGaugeRefresher(db, metrics, observability.NopLogger())

	expectCount(mock, "SELECT COUNT\\(\\*\\) FROM students", 120)
	expectCount(mock, "SELECT COUNT\\(\\*\\) FROM courses", 14)
	expectCount(mock, "SELECT COUNT\\(\\*\\) FROM trainers", 6)
	expectCount(mock, "SELECT COUNT\\(\\*\\) FROM leads", 48)
	expectCount(mock, "SELECT COUNT\\(\\*\\) FROM invoices WHERE", 3)

	require.NoError(t, refresher.Refresh(context.Background()))

	assert.Equal(t, 120.0, testutil.ToFloat64(metrics.StudentsTotal))
	assert.Equal(t, 14.0, testutil.ToFloat64(metrics.CoursesTotal))
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.TrainersTotal))
	assert.Equal(t, 48.0, testutil.ToFloat64(metrics.LeadsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.UnpaidInvoicesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.GaugeRefreshFailures))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGaugeRefresher_RunCountsFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	refresher := NewGaugeRefresher(db, metrics, observability.NopLogger())

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM students").WillReturnError(errors.New("db down"))

	refresher.Run()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GaugeRefreshFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.StudentsTotal))
	assert.NoError(t, mock.ExpectationsWereMet())
}
