package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpirationScan scans the catalog for products nearing expiration.
	TaskExpirationScan = "products:expiration_scan"
)

// ExpirationScanPayload configures one expiration scan run.
type ExpirationScanPayload struct {
	// WindowDays is how far ahead the scan looks. Zero means the default
	// window of 7 days.
	WindowDays int `json:"window_days,omitempty"`
}

// NewExpirationScanTask constructs the Asynq task.
func NewExpirationScanTask(payload ExpirationScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpirationScan, data), nil
}
