package xfa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/gin-gonic/gin"
)

// JobRunner is implemented by services that can run staged jobs.
type JobRunner interface {
	RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error)
	DiscardJob(jobID string) error
}

// AnalyzeService prepares and runs analyze jobs.
type AnalyzeService interface {
	JobRunner
	PrepareAnalyzeJob(ctx context.Context, req *FormRequest) (*JobManifest, error)
}

// FillService prepares and runs fill jobs.
type FillService interface {
	JobRunner
	PrepareFillJob(ctx context.Context, req *FormRequest) (*JobManifest, error)
}

// InspectService probes uploads without invoking the worker.
type InspectService interface {
	Inspect(ctx context.Context, req *FormRequest) (*InspectResult, error)
}

// JobScheduler enqueues a staged job for asynchronous execution.
type JobScheduler interface {
	Schedule(ctx context.Context, action ActionType, jobID string) error
}

// HandlerOptions controls body limits and the sync/async switch.
type HandlerOptions struct {
	Scheduler           JobScheduler
	AsyncThresholdBytes int64
	AsyncThresholdPages int
	MaxUploadBytes      int64
}

// AnalyzeHandler returns the handler for POST /api/xfa/fields.
func AnalyzeHandler(svc AnalyzeService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := readForm(c, opts.MaxUploadBytes)
		if err != nil {
			respondWithError(c, err)
			return
		}

		manifest, err := svc.PrepareAnalyzeJob(c.Request.Context(), req)
		if err != nil {
			respondWithError(c, err)
			return
		}

		if shouldProcessAsync(manifest, opts) {
			if err := opts.Scheduler.Schedule(c.Request.Context(), ActionAnalyze, manifest.JobID); err != nil {
				if cleanupErr := svc.DiscardJob(manifest.JobID); cleanupErr != nil {
					err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
				}
				respondWithError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"jobId": manifest.JobID})
			return
		}

		result, err := svc.RunJob(c.Request.Context(), manifest.JobID, nil)
		if err != nil {
			respondWithError(c, err)
			return
		}
		defer result.Cleanup()

		c.JSON(http.StatusOK, result.Report)
	}
}

// FillHandler returns the handler for POST /api/xfa/fill.
func FillHandler(svc FillService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := readForm(c, opts.MaxUploadBytes)
		if err != nil {
			respondWithError(c, err)
			return
		}

		manifest, err := svc.PrepareFillJob(c.Request.Context(), req)
		if err != nil {
			respondWithError(c, err)
			return
		}

		if shouldProcessAsync(manifest, opts) {
			if err := opts.Scheduler.Schedule(c.Request.Context(), ActionFill, manifest.JobID); err != nil {
				if cleanupErr := svc.DiscardJob(manifest.JobID); cleanupErr != nil {
					err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
				}
				respondWithError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"jobId": manifest.JobID})
			return
		}

		result, err := svc.RunJob(c.Request.Context(), manifest.JobID, nil)
		if err != nil {
			respondWithError(c, err)
			return
		}
		defer result.Cleanup()

		if result.MismatchPending {
			c.JSON(http.StatusConflict, result.Report)
			return
		}

		if err := streamResult(c, result); err != nil {
			respondWithError(c, err)
		}
	}
}

// InspectHandler returns the handler for POST /api/xfa/inspect.
func InspectHandler(svc InspectService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := readForm(c, opts.MaxUploadBytes)
		if err != nil {
			respondWithError(c, err)
			return
		}

		result, err := svc.Inspect(c.Request.Context(), req)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// readForm reads the raw body, bounded by the configured ceiling, and decodes
// it with the in-package multipart decoder.
func readForm(c *gin.Context, maxBytes int64) (*FormRequest, error) {
	reader := io.Reader(c.Request.Body)
	if maxBytes > 0 {
		reader = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, newError(CodeLimitExceeded,
				fmt.Sprintf("request body exceeds the %d byte limit", maxErr.Limit), err)
		}
		return nil, newError(CodeMalformedRequest, "failed to read request body", err)
	}

	return DecodeForm(body, c.GetHeader("Content-Type"))
}

func shouldProcessAsync(manifest *JobManifest, opts HandlerOptions) bool {
	if manifest == nil || opts.Scheduler == nil {
		return false
	}
	if opts.AsyncThresholdBytes > 0 && manifest.File.Size > opts.AsyncThresholdBytes {
		return true
	}
	if opts.AsyncThresholdPages > 0 && manifest.File.Pages > opts.AsyncThresholdPages {
		return true
	}
	return false
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		if apiErr.Code == CodeLimitExceeded {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{
			"code":  apiErr.Code,
			"error": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":  "REQUEST_CANCELED",
			"error": "request was canceled",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": "internal server error",
		})
	}
}

func streamResult(c *gin.Context, result *Result) error {
	file, err := os.Open(result.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to open produced document: %w", err)
	}
	defer file.Close()

	const contentType = "application/pdf"
	encodedName := url.PathEscape(result.OutputFilename)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", result.OutputFilename, encodedName))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Job-Id", result.JobID)
	c.DataFromReader(http.StatusOK, result.OutputSize, contentType, file, nil)
	return nil
}
