package dto

import "encoding/json"

// ExportResponse acknowledges an enqueued report job.
type ExportResponse struct {
	JobID string `json:"jobId"`
}

// JobStatusResponse reports queue-side job state.
type JobStatusResponse struct {
	State        string          `json:"state"`
	Attempts     int             `json:"attempts"`
	FailedReason string          `json:"failedReason,omitempty"`
	ReturnValue  json.RawMessage `json:"returnValue,omitempty"`
}
