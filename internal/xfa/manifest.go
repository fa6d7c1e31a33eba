package xfa

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	manifestFilename = "manifest.json"
	metaFilename     = "meta.json"
)

// JobManifest holds everything needed to (re)run a staged job.
type JobManifest struct {
	JobID           string         `json:"jobId"`
	Action          ActionType     `json:"action"`
	Payload         map[string]any `json:"payload,omitempty"`
	ConfirmMismatch bool           `json:"confirmMismatch,omitempty"`
	File            JobFile        `json:"file"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// JobFile describes the staged input file.
type JobFile struct {
	StoredName   string `json:"storedName"`
	OriginalName string `json:"originalName,omitempty"`
	Size         int64  `json:"size"`
	Pages        int    `json:"pages,omitempty"`
}

// jobMeta is written next to the output once an action has run, so the
// download path can name the attachment without re-invoking the worker.
type jobMeta struct {
	Action          ActionType     `json:"action"`
	CreatedAt       string         `json:"createdAt"`
	Report          map[string]any `json:"report,omitempty"`
	DownloadName    string         `json:"downloadName,omitempty"`
	MismatchPending bool           `json:"mismatchPending,omitempty"`
}

func writeManifest(jobDir string, manifest *JobManifest) error {
	if manifest == nil {
		return fmt.Errorf("manifest is nil")
	}
	return writeJSON(filepath.Join(jobDir, manifestFilename), manifest)
}

func loadManifest(jobDir string) (*JobManifest, error) {
	data, err := os.ReadFile(filepath.Join(jobDir, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest JobManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

func loadMeta(jobDir string) (*jobMeta, error) {
	data, err := os.ReadFile(filepath.Join(jobDir, metaFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	var meta jobMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse meta: %w", err)
	}
	return &meta, nil
}

func writeJSON(path string, payload any) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
