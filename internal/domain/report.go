package domain

import "time"

// FileObject records an artifact uploaded to object storage.
type FileObject struct {
	ID        string
	Bucket    string
	ObjectKey string
	MimeType  string
	Size      int64
	CreatedAt time.Time
}

// JobState tracks a report job through the queue.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// ReportJobUsersCSV is the only job kind the worker currently understands.
const ReportJobUsersCSV = "USERS_CSV"
