package xfa

import (
	"context"
	"io"
	"testing"
)

func TestInspectRejectsNonPDF(t *testing.T) {
	svc := newTestService(t, `echo '{}'`)

	_, err := svc.Inspect(context.Background(), &FormRequest{FileBytes: []byte("plain text")})
	assertCode(t, err, CodeUnsupportedPDF)
	assertNoWorkspaces(t, svc)
}

func TestInspectRejectsBrokenPDF(t *testing.T) {
	svc := newTestService(t, `echo '{}'`)

	// Sniffs as PDF but has no readable page structure.
	_, err := svc.Inspect(context.Background(), &FormRequest{FileBytes: []byte("%PDF-1.7\ngarbage")})
	assertCode(t, err, CodeUnsupportedPDF)
	assertNoWorkspaces(t, svc)
}

func TestInspectRejectsEmptyUpload(t *testing.T) {
	svc := newTestService(t, `echo '{}'`)

	_, err := svc.Inspect(context.Background(), &FormRequest{})
	assertCode(t, err, CodeMalformedRequest)
}

func TestOpenResultFile(t *testing.T) {
	svc := newTestService(t, `cp "$3" "$7"
echo '{"downloadName": "Result.pdf"}'`)

	manifest, err := svc.PrepareFillJob(context.Background(), &FormRequest{FileBytes: []byte("document bytes")})
	if err != nil {
		t.Fatalf("PrepareFillJob returned error: %v", err)
	}
	runResult, err := svc.RunJob(context.Background(), manifest.JobID, nil)
	if err != nil {
		t.Fatalf("RunJob returned error: %v", err)
	}

	result, file, err := svc.OpenResultFile(manifest.JobID)
	if err != nil {
		t.Fatalf("OpenResultFile returned error: %v", err)
	}
	defer file.Close()

	if result.OutputFilename != "Result.pdf" {
		t.Fatalf("unexpected download name: %q", result.OutputFilename)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("failed to read download: %v", err)
	}
	if string(data) != "document bytes" {
		t.Fatalf("unexpected download content: %q", data)
	}
	if result.OutputSize != int64(len(data)) {
		t.Fatalf("unexpected size: %d", result.OutputSize)
	}
	file.Close()
	runResult.Cleanup()
}

func TestOpenResultFileRejectsAnalyzeJobs(t *testing.T) {
	svc := newTestService(t, `echo '{}'`)

	manifest, err := svc.PrepareAnalyzeJob(context.Background(), &FormRequest{FileBytes: []byte("data")})
	if err != nil {
		t.Fatalf("PrepareAnalyzeJob returned error: %v", err)
	}
	defer svc.DiscardJob(manifest.JobID)

	if _, _, err := svc.OpenResultFile(manifest.JobID); err == nil {
		t.Fatal("expected error for an analyze job")
	}
}

func TestOpenResultFileUnknownJob(t *testing.T) {
	svc := newTestService(t, `echo '{}'`)

	if _, _, err := svc.OpenResultFile("missing"); err == nil {
		t.Fatal("expected error for unknown job id")
	}
}
