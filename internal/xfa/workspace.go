package xfa

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Fixed file names inside a staging directory. The worker reads input and,
// for fill, writes output.
const (
	inputFilename  = "input"
	outputFilename = "output"
)

const workspaceSubdir = "form-forge"

// workspace is the per-request staging directory shared with the worker.
type workspace struct {
	jobID string
	dir   string
}

func (w workspace) inputPath() string  { return filepath.Join(w.dir, inputFilename) }
func (w workspace) outputPath() string { return filepath.Join(w.dir, outputFilename) }

func (w workspace) manifestPath() string {
	return filepath.Join(w.dir, manifestFilename)
}

func (s *Service) createWorkspace() (workspace, error) {
	ws := s.workspaceFor(uuid.NewString())
	if err := os.MkdirAll(ws.dir, 0o700); err != nil {
		return workspace{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return ws, nil
}

func (s *Service) workspaceFor(jobID string) workspace {
	base := s.cfg.WorkDir
	if base == "" {
		base = os.TempDir()
	}
	return workspace{
		jobID: jobID,
		dir:   filepath.Join(base, workspaceSubdir, jobID),
	}
}

// removeDir removes a staging directory recursively. Removal is best-effort
// on every exit path; callers ignore the error unless they have nothing
// better to report.
func removeDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
