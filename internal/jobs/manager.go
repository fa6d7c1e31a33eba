package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/form-forge/internal/config"
	"github.com/yourusername/form-forge/internal/xfa"
)

const (
	taskTypeForm = "xfa:process"
	queueName    = "xfa"
)

// Manager enqueues jobs and runs the asynq worker that executes them.
type Manager struct {
	cfg        *config.Config
	client     *asynq.Client
	server     *asynq.Server
	mux        *asynq.ServeMux
	store      *Store
	xfaService *xfa.Service
	logger     *logrus.Logger
}

// TaskPayload is the queue payload for one staged job.
type TaskPayload struct {
	JobID  string         `json:"jobId"`
	Action xfa.ActionType `json:"action"`
}

// NewManager initializes a Manager.
func NewManager(cfg *config.Config, xfaService *xfa.Service, store *Store, logger *logrus.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if xfaService == nil {
		return nil, errors.New("xfaService is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:        cfg,
		client:     client,
		server:     server,
		mux:        mux,
		store:      store,
		xfaService: xfaService,
		logger:     logger,
	}
	mux.HandleFunc(taskTypeForm, manager.handleFormTask)
	return manager, nil
}

// StartWorkers runs the asynq server in the background.
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logger.Errorf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown closes the server and the client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Enqueue puts a staged job on the queue and creates its record.
func (m *Manager) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("payload is nil")
	}
	if payload.JobID == "" {
		return "", fmt.Errorf("payload.JobID is required")
	}

	record := &Record{
		JobID:  payload.JobID,
		Action: string(payload.Action),
		Status: StatusQueued,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
		},
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(taskTypeForm, body, asynq.Queue(queueName))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(0))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// GetRecord fetches a job record.
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

func (m *Manager) handleFormTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}

	if err := m.store.Upsert(ctx, &Record{
		JobID:  payload.JobID,
		Action: string(payload.Action),
		Status: StatusRunning,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "load",
		},
	}); err != nil {
		return err
	}

	result, err := m.xfaService.RunJob(ctx, payload.JobID, func(stage string, percent int) {
		_ = m.store.UpdateProgress(ctx, payload.JobID, ProgressInfo{
			Stage:   stage,
			Percent: percent,
		})
	})
	if err != nil {
		return m.failJobWithError(ctx, payload.JobID, err)
	}
	return m.finishJob(ctx, payload.JobID, result)
}

func (m *Manager) finishJob(ctx context.Context, jobID string, result *xfa.Result) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}
	downloadURL := ""
	if result.Action == xfa.ActionFill && !result.MismatchPending {
		downloadURL = m.buildDownloadURL(result)
	}
	return m.store.MarkDone(ctx, jobID, downloadURL, result.Report)
}

func (m *Manager) failJob(ctx context.Context, jobID, code, message string) error {
	return m.store.MarkFailed(ctx, jobID, &ErrorInfo{
		Code:    code,
		Message: message,
	})
}

func (m *Manager) failJobWithError(ctx context.Context, jobID string, err error) error {
	var apiErr *xfa.Error
	if errors.As(err, &apiErr) {
		return m.failJob(ctx, jobID, apiErr.Code, apiErr.Message)
	}
	return m.failJob(ctx, jobID, "INTERNAL_ERROR", err.Error())
}

func (m *Manager) buildDownloadURL(result *xfa.Result) string {
	base := m.cfg.JobResultBaseURL
	if base == "" {
		return fmt.Sprintf("/api/jobs/%s/download", result.JobID)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), result.JobID, url.PathEscape(result.OutputFilename))
}
