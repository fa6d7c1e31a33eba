package xfa

import (
	"fmt"
	"os"
	"strings"
)

// OpenResultFile opens the produced document for a finished fill job and
// returns the Result metadata alongside the file handle.
func (s *Service) OpenResultFile(jobID string) (*Result, *os.File, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, nil, fmt.Errorf("jobID is required")
	}

	ws := s.workspaceFor(jobID)
	manifest, err := loadManifest(ws.dir)
	if err != nil {
		return nil, nil, err
	}
	if manifest.Action != ActionFill {
		return nil, nil, fmt.Errorf("no downloadable result for action: %s", manifest.Action)
	}

	name := defaultDownloadName
	if meta, metaErr := loadMeta(ws.dir); metaErr == nil && meta.DownloadName != "" {
		name = meta.DownloadName
	}

	file, err := os.Open(ws.outputPath())
	if err != nil {
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	result := &Result{
		JobID:          jobID,
		Action:         ActionFill,
		OutputPath:     ws.outputPath(),
		OutputFilename: name,
		OutputSize:     info.Size(),
		jobDir:         ws.dir,
	}

	return result, file, nil
}
