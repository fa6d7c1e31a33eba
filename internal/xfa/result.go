package xfa

import (
	"sync"
)

// ActionType identifies the worker action for a request.
type ActionType string

const (
	ActionAnalyze ActionType = "analyze"
	ActionFill    ActionType = "fill"
)

// Result is the outcome of one analyze or fill invocation.
type Result struct {
	JobID  string         `json:"jobId"`
	Action ActionType     `json:"action"`
	Report map[string]any `json:"report,omitempty"`

	// MismatchPending is set when the worker reported a mismatch that the
	// caller has not confirmed. No document is produced in that case.
	MismatchPending bool `json:"mismatchPending,omitempty"`

	OutputPath     string `json:"outputPath,omitempty"`
	OutputFilename string `json:"outputFilename,omitempty"`
	OutputSize     int64  `json:"outputSize,omitempty"`

	jobDir      string
	cleanupOnce sync.Once
	cleanupErr  error
}

// Cleanup removes the staging directory backing this result.
func (r *Result) Cleanup() error {
	if r == nil {
		return nil
	}
	r.cleanupOnce.Do(func() {
		r.cleanupErr = removeDir(r.jobDir)
	})
	return r.cleanupErr
}
