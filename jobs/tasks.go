package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeExpirySweep finds batches close to expiry and notifies
	// their tenants.
	TaskTypeExpirySweep = "ledger:expiry_sweep"
	// TaskTypeLowStockScan finds products whose usable quantity fell
	// below the configured minimum.
	TaskTypeLowStockScan = "ledger:low_stock_scan"
)

// ExpirySweepPayload controls how far ahead the sweep looks.
type ExpirySweepPayload struct {
	HorizonHours int `json:"horizon_hours"`
}

// NewExpirySweepTask constructs an Asynq task.
func NewExpirySweepTask(payload ExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExpirySweep, data), nil
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLowStockScan, nil)
}
