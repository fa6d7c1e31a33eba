package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/form-forge/internal/config"
	"github.com/yourusername/form-forge/internal/jobs"
	"github.com/yourusername/form-forge/internal/logging"
	"github.com/yourusername/form-forge/internal/xfa"
)

type formJobScheduler struct {
	manager *jobs.Manager
}

func (s *formJobScheduler) Schedule(ctx context.Context, action xfa.ActionType, jobID string) error {
	_, err := s.manager.Enqueue(ctx, &jobs.TaskPayload{
		JobID:  jobID,
		Action: action,
	})
	return err
}

func setupJobs(cfg *config.Config, xfaService *xfa.Service) (*jobs.Manager, error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 10
	}
	store := jobs.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute)
	return jobs.NewManager(cfg, xfaService, store, logging.GetLogger())
}

func jobStatusHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_INPUT",
				"error": "jobId is required",
			})
			return
		}

		record, err := manager.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":  "INTERNAL_ERROR",
				"error": "failed to fetch job record",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":  "JOB_NOT_FOUND",
				"error": "no such job",
			})
			return
		}

		payload := gin.H{
			"jobId":  record.JobID,
			"action": record.Action,
			"status": record.Status,
			"progress": gin.H{
				"percent": record.Progress.Percent,
				"stage":   record.Progress.Stage,
				"message": record.Progress.Message,
			},
			"updatedAt": record.UpdatedAt,
		}
		if record.DownloadURL != "" {
			payload["downloadUrl"] = record.DownloadURL
		}
		if record.Meta != nil {
			payload["meta"] = record.Meta
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}

func jobDownloadHandler(xfaService *xfa.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_INPUT",
				"error": "jobId is required",
			})
			return
		}

		result, file, err := xfaService.OpenResultFile(jobID)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":  "JOB_RESULT_NOT_FOUND",
					"error": "no result available for this job",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":  "INTERNAL_ERROR",
				"error": "failed to open job result",
			})
			return
		}
		defer file.Close()

		contentType := "application/pdf"
		encodedName := url.PathEscape(result.OutputFilename)
		c.Header("Content-Type", contentType)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", result.OutputFilename, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", result.JobID)
		c.DataFromReader(http.StatusOK, result.OutputSize, contentType, file, nil)
	}
}
