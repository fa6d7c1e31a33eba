package xfa

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// defaultDownloadName is used when the worker reports no downloadName.
const defaultDownloadName = "Mantelbogen.pdf"

// Fill stages the uploaded file, runs the worker's fill action and returns
// either the produced document or a pending-mismatch result that the caller
// must confirm before a document is produced.
func (s *Service) Fill(ctx context.Context, req *FormRequest) (_ *Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil || len(req.FileBytes) == 0 {
		return nil, newError(CodeMalformedRequest, "no file content to fill", nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state, _, err := s.prepareFill(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = removeDir(state.ws.dir)
		}
	}()

	result, execErr := s.executeFill(ctx, state, nil)
	if execErr != nil {
		return nil, execErr
	}
	return result, nil
}

type fillState struct {
	ws              workspace
	payload         map[string]any
	confirmMismatch bool
}

func (s *Service) prepareFill(ctx context.Context, req *FormRequest) (*fillState, *JobManifest, error) {
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
		JobID:           ws.jobID,
		Action:          ActionFill,
		Payload:         req.Payload,
		ConfirmMismatch: req.ConfirmMismatch,
		File:            stored,
		CreatedAt:       s.now().UTC(),
	}
	if err := writeManifest(ws.dir, manifest); err != nil {
		_ = removeDir(ws.dir)
		return nil, nil, fmt.Errorf("failed to save job manifest: %w", err)
	}

	return &fillState{ws: ws, payload: req.Payload, confirmMismatch: req.ConfirmMismatch}, manifest, nil
}

func (s *Service) executeFill(ctx context.Context, state *fillState, progress ProgressReporter) (*Result, error) {
	reportProgress(progress, "process", 40)

	report, err := s.invokeWorker(ctx, ActionFill, state.ws, state.payload, state.confirmMismatch)
	if err != nil {
		return nil, err
	}

	if reportMismatch(report) && !state.confirmMismatch {
		// Unconfirmed mismatch: hand back the report, not a document. The
		// caller resubmits the whole request with confirmMismatch=true.
		meta := &jobMeta{
			Action:          ActionFill,
			CreatedAt:       s.now().UTC().Format(time.RFC3339),
			Report:          report,
			MismatchPending: true,
		}
		if err := writeJSON(filepath.Join(state.ws.dir, metaFilename), meta); err != nil {
			return nil, fmt.Errorf("failed to save meta: %w", err)
		}

		s.scheduleExpiry(state.ws)
		reportProgress(progress, "completed", 100)

		return &Result{
			JobID:           state.ws.jobID,
			Action:          ActionFill,
			Report:          report,
			MismatchPending: true,
			jobDir:          state.ws.dir,
		}, nil
	}

	reportProgress(progress, "write", 80)

	outputPath := state.ws.outputPath()
	info, statErr := os.Stat(outputPath)
	if statErr != nil {
		raw, _ := json.Marshal(report)
		return nil, newError(CodeWorkerProtocol,
			fmt.Sprintf("worker reported success but wrote no output file (result: %s)", raw), statErr)
	}

	name := reportDownloadName(report)
	if name == "" {
		name = defaultDownloadName
	}

	meta := &jobMeta{
		Action:       ActionFill,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
		Report:       report,
		DownloadName: name,
	}
	if err := writeJSON(filepath.Join(state.ws.dir, metaFilename), meta); err != nil {
		return nil, fmt.Errorf("failed to save meta: %w", err)
	}

	s.scheduleExpiry(state.ws)
	reportProgress(progress, "completed", 100)

	return &Result{
		JobID:          state.ws.jobID,
		Action:         ActionFill,
		Report:         report,
		OutputPath:     outputPath,
		OutputFilename: name,
		OutputSize:     info.Size(),
		jobDir:         state.ws.dir,
	}, nil
}

// PrepareFillJob stages an upload for asynchronous processing.
func (s *Service) PrepareFillJob(ctx context.Context, req *FormRequest) (*JobManifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil || len(req.FileBytes) == 0 {
		return nil, newError(CodeMalformedRequest, "no file content to fill", nil)
	}
	_, manifest, err := s.prepareFill(ctx, req)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}
