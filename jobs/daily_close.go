package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/a4s/shopledger/internal/jobs"
	"github.com/a4s/shopledger/internal/reporting"
)

// DailyReporter builds a day's report.
type DailyReporter interface {
	DailyReport(ctx context.Context, day time.Time) (reporting.Report, error)
}

// DailyCloseJob derives the previous day's report and logs its totals.
// Nothing is stored; the report can be re-derived at any time.
type DailyCloseJob struct {
	Reports  DailyReporter
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Location *time.Location
	clock    func() time.Time
}

// NewDailyCloseJob initialises the daily close handler.
func NewDailyCloseJob(reports DailyReporter, loc *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics) *DailyCloseJob {
	if loc == nil {
		loc = time.Local
	}
	return &DailyCloseJob{Reports: reports, Logger: logger, Metrics: metrics, Location: loc, clock: time.Now}
}

// Handle closes the requested day.
func (j *DailyCloseJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("daily close: handler not configured")
	}
	var payload DailyClosePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	day, err := j.day(payload.Date)
	if err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskDailyClose)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("date", day.Format(time.DateOnly)))
	rep, err := j.Reports.DailyReport(ctx, day)
	if err != nil {
		logger.Error("daily close failed", slog.Any("error", err))
		return err
	}
	gross, _ := rep.TotalGross.Float64()
	net, _ := rep.NetRevenue.Float64()
	j.Metrics.SetDailyClose(gross, net)
	logger.Info("daily close",
		slog.Int("paid_sales", len(rep.Sales)),
		slog.Int("unresolved_sales", len(rep.Unresolved)),
		slog.String("gross", rep.TotalGross.StringFixed(2)),
		slog.String("mechanic_cut", rep.TotalMechanicCut.StringFixed(2)),
		slog.String("shop_topup", rep.TotalShopTopUp.StringFixed(2)),
		slog.String("net", rep.NetRevenue.StringFixed(2)))
	return nil
}

func (j *DailyCloseJob) day(raw string) (time.Time, error) {
	if raw != "" {
		return time.ParseInLocation(time.DateOnly, raw, j.Location)
	}
	now := time.Now
	if j.clock != nil {
		now = j.clock
	}
	y := now().In(j.Location).AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, j.Location), nil
}

func (j *DailyCloseJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
