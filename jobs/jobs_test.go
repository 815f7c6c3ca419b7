package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a4s/shopledger/internal/inventory"
	jobmetrics "github.com/a4s/shopledger/internal/jobs"
	"github.com/a4s/shopledger/internal/reporting"
)

type stubLowStock struct {
	items []inventory.StockLevel
	err   error
}

func (s stubLowStock) LowStock(context.Context) ([]inventory.StockLevel, error) {
	return s.items, s.err
}

type stubReporter struct {
	got time.Time
	err error
}

func (s *stubReporter) DailyReport(_ context.Context, day time.Time) (reporting.Report, error) {
	s.got = day
	if s.err != nil {
		return reporting.Report{}, s.err
	}
	return reporting.Report{
		From:       day.Format(time.DateOnly),
		To:         day.Format(time.DateOnly),
		TotalGross: decimal.NewFromInt(1550),
		NetRevenue: decimal.NewFromInt(950),
	}, nil
}

func TestLowStockScanHandle(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewLowStockScanJob(stubLowStock{items: []inventory.StockLevel{
		{ItemID: 1, Name: "Brake Pad", Stock: 1, ReorderLevel: 5},
		{ItemID: 2, Name: "Spark Plug", Stock: 0, ReorderLevel: 10},
	}}, nil, metrics)

	task, err := NewLowStockScanTask("test")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestLowStockScanPropagatesError(t *testing.T) {
	job := NewLowStockScanJob(stubLowStock{err: errors.New("db down")}, nil, nil)
	task, err := NewLowStockScanTask("")
	require.NoError(t, err)
	require.EqualError(t, job.Handle(context.Background(), task), "db down")
}

func TestLowStockScanBadPayload(t *testing.T) {
	job := NewLowStockScanJob(stubLowStock{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDailyCloseDefaultsToYesterday(t *testing.T) {
	loc := time.FixedZone("PHT", 8*3600)
	rep := &stubReporter{}
	job := NewDailyCloseJob(rep, loc, nil, nil)
	// 01:30 local on March 4th is still March 3rd in UTC.
	job.clock = func() time.Time { return time.Date(2024, 3, 3, 17, 30, 0, 0, time.UTC) }

	task, err := NewDailyCloseTask("")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, loc), rep.got)
}

func TestDailyCloseExplicitDate(t *testing.T) {
	rep := &stubReporter{}
	job := NewDailyCloseJob(rep, time.UTC, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewDailyCloseTask("2024-05-10")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, "2024-05-10", rep.got.Format(time.DateOnly))
}

func TestDailyCloseRejectsMalformedDate(t *testing.T) {
	rep := &stubReporter{}
	job := NewDailyCloseJob(rep, time.UTC, nil, nil)
	task, err := NewDailyCloseTask("10/05/2024")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
	assert.True(t, rep.got.IsZero())
}

type stubEnqueuer struct {
	date string
	err  error
}

func (s *stubEnqueuer) EnqueueLowStockScan(context.Context, string) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{ID: "scan-1"}, s.err
}

func (s *stubEnqueuer) EnqueueDailyClose(_ context.Context, date string) (*asynq.TaskInfo, error) {
	s.date = date
	return &asynq.TaskInfo{ID: "close-1"}, s.err
}

func TestHandlerTriggers(t *testing.T) {
	enq := &stubEnqueuer{}
	r := chi.NewRouter()
	NewHandler(nil, enq, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/daily-close?date=2024-05-10", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"task_id":"close-1"}`, rec.Body.String())
	assert.Equal(t, "2024-05-10", enq.date)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/daily-close?date=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	enq.err = asynq.ErrDuplicateTask
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/low-stock-scan", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
