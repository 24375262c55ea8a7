package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceExport exports one saved invoice.
	TaskInvoiceExport = "invoice:export"
	// TaskInvoiceExportAll exports every saved invoice.
	TaskInvoiceExportAll = "invoice:export-all"
)

// ExportPayload identifies the saved invoice to export.
type ExportPayload struct {
	Name  string `json:"name"`
	Theme string `json:"theme,omitempty"`
}

// ExportAllPayload configures a bulk export.
type ExportAllPayload struct {
	Theme       string `json:"theme,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
}

// NewExportTask constructs an Asynq task for one saved invoice.
func NewExportTask(payload ExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceExport, data, asynq.MaxRetry(3)), nil
}

// NewExportAllTask constructs the bulk export task.
func NewExportAllTask(payload ExportAllPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceExportAll, data, asynq.MaxRetry(3)), nil
}
