package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan logs items at or below their reorder level.
	TaskLowStockScan = "inventory:low-stock-scan"
	// TaskDailyClose computes and logs a day's sales report.
	TaskDailyClose = "reports:daily-close"
)

// LowStockScanPayload carries no options today; it keeps the task body stable.
type LowStockScanPayload struct {
	Reason string `json:"reason,omitempty"`
}

// DailyClosePayload selects the day to close. An empty Date means yesterday
// in the shop's timezone.
type DailyClosePayload struct {
	Date string `json:"date,omitempty"`
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(reason string) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewDailyCloseTask constructs the daily close task.
func NewDailyCloseTask(date string) (*asynq.Task, error) {
	body, err := json.Marshal(DailyClosePayload{Date: date})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailyClose, body, asynq.Queue(QueueDefault)), nil
}
