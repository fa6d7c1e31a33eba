package xfa

import (
	"context"
	"fmt"
)

// RunJob executes the staged action for jobID. On failure the workspace is
// removed; on success it stays until the result is consumed or expires.
func (s *Service) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	ws := s.workspaceFor(jobID)
	manifest, err := loadManifest(ws.dir)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}

	var (
		result *Result
		runErr error
	)

	switch manifest.Action {
	case ActionAnalyze:
		state := &analyzeState{ws: ws, payload: manifest.Payload}
		result, runErr = s.executeAnalyze(ctx, state, reporter)
	case ActionFill:
		state := &fillState{
			ws:              ws,
			payload:         manifest.Payload,
			confirmMismatch: manifest.ConfirmMismatch,
		}
		result, runErr = s.executeFill(ctx, state, reporter)
	default:
		_ = removeDir(ws.dir)
		return nil, fmt.Errorf("unsupported action: %s", manifest.Action)
	}

	if runErr != nil {
		if cleanupErr := removeDir(ws.dir); cleanupErr != nil {
			runErr = fmt.Errorf("%w (workspace removal also failed: %v)", runErr, cleanupErr)
		}
		return nil, runErr
	}

	return result, nil
}

// DiscardJob drops a staged job that will not be run.
func (s *Service) DiscardJob(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	return removeDir(s.workspaceFor(jobID).dir)
}
