// Package xfa brokers analyze and fill requests between the HTTP surface and
// the external XFA form worker process.
package xfa

import (
	"fmt"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/form-forge/internal/config"
	"github.com/yourusername/form-forge/internal/logging"
)

const defaultCleanupMin = 10

// Service stages uploads, invokes the worker and interprets its results.
type Service struct {
	cfg *config.Config
	log *logrus.Logger
	now func() time.Time
}

// NewService creates a Service for the given configuration.
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg: cfg,
		log: logging.GetLogger(),
		now: time.Now,
	}
}

// stageInput validates the uploaded bytes and writes them into the
// workspace, byte for byte.
func (s *Service) stageInput(ws workspace, req *FormRequest) (JobFile, error) {
	if s.cfg.RequirePDF {
		if mt := mimetype.Detect(req.FileBytes); !mt.Is("application/pdf") {
			return JobFile{}, newError(CodeUnsupportedPDF,
				fmt.Sprintf("expected a PDF upload, got %s", mt.String()), nil)
		}
	}

	if err := os.WriteFile(ws.inputPath(), req.FileBytes, 0o600); err != nil {
		return JobFile{}, fmt.Errorf("failed to write staged input: %w", err)
	}

	stored := JobFile{
		StoredName:   inputFilename,
		OriginalName: req.FileName,
		Size:         int64(len(req.FileBytes)),
	}
	// Page count is advisory (async threshold, inspect); the worker is the
	// authority on document structure.
	if pages, err := pdfapi.PageCountFile(ws.inputPath()); err == nil {
		stored.Pages = pages
	}
	return stored, nil
}

func (s *Service) scheduleExpiry(ws workspace) {
	expireMinutes := s.cfg.JobExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = defaultCleanupMin
	}
	time.AfterFunc(time.Duration(expireMinutes)*time.Minute, func() {
		_ = removeDir(ws.dir)
	})
}
