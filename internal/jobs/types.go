package jobs

import "time"

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// ProgressInfo carries the latest progress update.
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo describes why a job failed.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record is the current state of one job.
type Record struct {
	JobID       string       `json:"jobId"`
	Action      string       `json:"action"`
	Status      Status       `json:"status"`
	Progress    ProgressInfo `json:"progress"`
	DownloadURL string       `json:"downloadUrl,omitempty"`
	Meta        any          `json:"meta,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}
