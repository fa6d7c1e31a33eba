package xfa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Keys the broker reads from the worker's JSON output.
const (
	resultKeyMismatch     = "mismatch"
	resultKeyDownloadName = "downloadName"
)

// invokeWorker runs one worker process to completion and decodes its stdout
// as a single JSON value. One process per call, no reuse, no retry.
func (s *Service) invokeWorker(ctx context.Context, action ActionType, ws workspace, payload map[string]any, confirmMismatch bool) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	args := []string{string(action), "--input", ws.inputPath(), "--payload", string(payloadJSON)}
	if action == ActionFill {
		args = append(args,
			"--output", ws.outputPath(),
			"--confirm-mismatch", strconv.FormatBool(confirmMismatch),
		)
	}

	timeout := time.Duration(s.cfg.WorkerTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.cfg.WorkerPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	s.log.WithFields(logrus.Fields{
		"action":   action,
		"job":      ws.jobID,
		"duration": time.Since(started).Round(time.Millisecond),
	}).Debug("worker finished")

	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newError(CodeWorkerFailed,
				fmt.Sprintf("worker did not finish within %s", timeout), runErr)
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = fmt.Sprintf("worker exited with status %d", exitCode(runErr))
		}
		return nil, newError(CodeWorkerFailed, message, runErr)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		// tolerated: future worker versions may have nothing to report
		return map[string]any{}, nil
	}
	report := map[string]any{}
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, newError(CodeWorkerProtocol,
			fmt.Sprintf("worker output is not valid JSON: %s", out), err)
	}
	return report, nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func reportMismatch(report map[string]any) bool {
	v, _ := report[resultKeyMismatch].(bool)
	return v
}

func reportDownloadName(report map[string]any) string {
	v, _ := report[resultKeyDownloadName].(string)
	return v
}
