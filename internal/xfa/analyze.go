package xfa

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Analyze stages the uploaded file, runs the worker's analyze action and
// returns its report verbatim.
func (s *Service) Analyze(ctx context.Context, req *FormRequest) (_ *Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil || len(req.FileBytes) == 0 {
		return nil, newError(CodeMalformedRequest, "no file content to analyze", nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state, _, err := s.prepareAnalyze(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = removeDir(state.ws.dir)
		}
	}()

	result, execErr := s.executeAnalyze(ctx, state, nil)
	if execErr != nil {
		return nil, execErr
	}
	return result, nil
}

type analyzeState struct {
	ws      workspace
	payload map[string]any
}

func (s *Service) prepareAnalyze(ctx context.Context, req *FormRequest) (*analyzeState, *JobManifest, error) {
	ws, err := s.createWorkspace()
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.stageInput(ws, req)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, nil, err
	}

	manifest := &JobManifest{
		JobID:     ws.jobID,
		Action:    ActionAnalyze,
		Payload:   req.Payload,
		File:      stored,
		CreatedAt: s.now().UTC(),
	}
	if err := writeManifest(ws.dir, manifest); err != nil {
		_ = removeDir(ws.dir)
		return nil, nil, fmt.Errorf("failed to save job manifest: %w", err)
	}

	return &analyzeState{ws: ws, payload: req.Payload}, manifest, nil
}

func (s *Service) executeAnalyze(ctx context.Context, state *analyzeState, progress ProgressReporter) (*Result, error) {
	reportProgress(progress, "process", 40)

	report, err := s.invokeWorker(ctx, ActionAnalyze, state.ws, state.payload, false)
	if err != nil {
		return nil, err
	}

	meta := &jobMeta{
		Action:    ActionAnalyze,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Report:    report,
	}
	if err := writeJSON(filepath.Join(state.ws.dir, metaFilename), meta); err != nil {
		return nil, fmt.Errorf("failed to save meta: %w", err)
	}

	s.scheduleExpiry(state.ws)
	reportProgress(progress, "completed", 100)

	return &Result{
		JobID:  state.ws.jobID,
		Action: ActionAnalyze,
		Report: report,
		jobDir: state.ws.dir,
	}, nil
}

// PrepareAnalyzeJob stages an upload for asynchronous processing.
func (s *Service) PrepareAnalyzeJob(ctx context.Context, req *FormRequest) (*JobManifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil || len(req.FileBytes) == 0 {
		return nil, newError(CodeMalformedRequest, "no file content to analyze", nil)
	}
	_, manifest, err := s.prepareAnalyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}
