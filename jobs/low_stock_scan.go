package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/a4s/shopledger/internal/inventory"
	jobmetrics "github.com/a4s/shopledger/internal/jobs"
)

// LowStockSource lists items at or below reorder level.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.StockLevel, error)
}

// LowStockScanJob reports items that need reordering.
type LowStockScanJob struct {
	Stock   LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(stock LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Stock: stock, Logger: logger, Metrics: metrics}
}

// Handle runs one scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Stock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	start := time.Now()
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger()
	items, err := j.Stock.LowStock(ctx)
	if err != nil {
		logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	for _, it := range items {
		logger.Warn("item at or below reorder level",
			slog.Int64("item_id", it.ItemID),
			slog.String("name", it.Name),
			slog.Int("stock", it.Stock),
			slog.Int("reorder_level", it.ReorderLevel))
	}
	j.Metrics.SetLowStock(len(items))
	logger.Info("completed low stock scan",
		slog.Int("items", len(items)),
		slog.String("reason", payload.Reason),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
