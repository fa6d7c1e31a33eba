package xfa

import (
	"context"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// InspectResult describes an uploaded PDF without invoking the worker.
type InspectResult struct {
	Name  string `json:"name,omitempty"`
	Size  int64  `json:"size"`
	Mime  string `json:"mime"`
	Pages int    `json:"pages"`
}

// Inspect sniffs the upload and counts its pages. The staging directory is
// removed before Inspect returns.
func (s *Service) Inspect(ctx context.Context, req *FormRequest) (*InspectResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil || len(req.FileBytes) == 0 {
		return nil, newError(CodeMalformedRequest, "no file content to inspect", nil)
	}

	mt := mimetype.Detect(req.FileBytes)
	if !mt.Is("application/pdf") {
		return nil, newError(CodeUnsupportedPDF,
			fmt.Sprintf("expected a PDF upload, got %s", mt.String()), nil)
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = removeDir(ws.dir)
	}()

	if err := os.WriteFile(ws.inputPath(), req.FileBytes, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write staged input: %w", err)
	}

	pages, err := pdfapi.PageCountFile(ws.inputPath())
	if err != nil {
		return nil, newError(CodeUnsupportedPDF, "could not read PDF page structure", err)
	}

	return &InspectResult{
		Name:  req.FileName,
		Size:  int64(len(req.FileBytes)),
		Mime:  mt.String(),
		Pages: pages,
	}, nil
}
