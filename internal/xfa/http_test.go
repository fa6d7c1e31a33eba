package xfa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubService struct {
	manifest   *JobManifest
	result     *Result
	prepareErr error
	runErr     error
	discarded  []string
}

func (s *stubService) PrepareAnalyzeJob(ctx context.Context, req *FormRequest) (*JobManifest, error) {
	return s.prepare(ActionAnalyze, req)
}

func (s *stubService) PrepareFillJob(ctx context.Context, req *FormRequest) (*JobManifest, error) {
	return s.prepare(ActionFill, req)
}

func (s *stubService) prepare(action ActionType, req *FormRequest) (*JobManifest, error) {
	if s.prepareErr != nil {
		return nil, s.prepareErr
	}
	if s.manifest != nil {
		return s.manifest, nil
	}
	return &JobManifest{
		JobID:  "job-123",
		Action: action,
		File:   JobFile{StoredName: inputFilename, Size: int64(len(req.FileBytes))},
	}, nil
}

func (s *stubService) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if s.runErr != nil {
		return nil, s.runErr
	}
	return s.result, nil
}

func (s *stubService) DiscardJob(jobID string) error {
	s.discarded = append(s.discarded, jobID)
	return nil
}

type stubScheduler struct {
	scheduled []string
	err       error
}

func (s *stubScheduler) Schedule(ctx context.Context, action ActionType, jobID string) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, fmt.Sprintf("%s:%s", action, jobID))
	return nil
}

func buildUpload(t *testing.T, file []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if file != nil {
		fw, err := writer.CreateFormFile("file", "upload.pdf")
		if err != nil {
			t.Fatalf("failed to create file part: %v", err)
		}
		if _, err := io.Copy(fw, bytes.NewReader(file)); err != nil {
			t.Fatalf("failed to write file part: %v", err)
		}
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write %s part: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func performUpload(t *testing.T, handler gin.HandlerFunc, file []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST("/run", handler)

	body, contentType := buildUpload(t, file, fields)
	req := httptest.NewRequest(http.MethodPost, "/run", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	payload := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return payload
}

// resultDir creates a staging directory the way the service lays one out, so
// handler tests can verify cleanup.
func resultDir(t *testing.T, output []byte) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "job-123")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("failed to create staging dir: %v", err)
	}
	if output != nil {
		if err := os.WriteFile(filepath.Join(dir, outputFilename), output, 0o600); err != nil {
			t.Fatalf("failed to write output: %v", err)
		}
	}
	return dir
}

func assertDirRemoved(t *testing.T, dir string) {
	t.Helper()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed, stat err: %v", dir, err)
	}
}

func TestAnalyzeHandlerSuccess(t *testing.T) {
	dir := resultDir(t, nil)
	svc := &stubService{result: &Result{
		JobID:  "job-123",
		Action: ActionAnalyze,
		Report: map[string]any{"isXfa": true},
		jobDir: dir,
	}}

	rec := performUpload(t, AnalyzeHandler(svc, HandlerOptions{}), []byte("%PDF-data"), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["isXfa"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	assertDirRemoved(t, dir)
}

func TestAnalyzeHandlerMalformedBody(t *testing.T) {
	svc := &stubService{}
	router := gin.New()
	router.POST("/run", AnalyzeHandler(svc, HandlerOptions{}))

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != CodeMalformedRequest {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAnalyzeHandlerBodyLimit(t *testing.T) {
	svc := &stubService{}
	rec := performUpload(t, AnalyzeHandler(svc, HandlerOptions{MaxUploadBytes: 16}),
		bytes.Repeat([]byte("x"), 1024), nil)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["code"] != CodeLimitExceeded {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestFillHandlerStreamsDocument(t *testing.T) {
	pdfData := []byte("%PDF-1.7 filled document")
	dir := resultDir(t, pdfData)
	svc := &stubService{result: &Result{
		JobID:          "job-123",
		Action:         ActionFill,
		OutputPath:     filepath.Join(dir, outputFilename),
		OutputFilename: "Acme_Mantelbogen.pdf",
		OutputSize:     int64(len(pdfData)),
		jobDir:         dir,
	}}

	rec := performUpload(t, FillHandler(svc, HandlerOptions{}), []byte("%PDF-data"),
		map[string]string{"payload": `{"project":{"name":"Acme"}}`})

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Acme_Mantelbogen.pdf") {
		t.Fatalf("unexpected disposition: %q", cd)
	}
	if !bytes.Equal(rec.Body.Bytes(), pdfData) {
		t.Fatalf("unexpected body: %q", rec.Body.Bytes())
	}
	assertDirRemoved(t, dir)
}

func TestFillHandlerMismatchConflict(t *testing.T) {
	dir := resultDir(t, nil)
	svc := &stubService{result: &Result{
		JobID:           "job-123",
		Action:          ActionFill,
		Report:          map[string]any{"mismatch": true, "expected": "ZIM"},
		MismatchPending: true,
		jobDir:          dir,
	}}

	rec := performUpload(t, FillHandler(svc, HandlerOptions{}), []byte("%PDF-data"), nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["mismatch"] != true || body["expected"] != "ZIM" {
		t.Fatalf("unexpected body: %v", body)
	}
	assertDirRemoved(t, dir)
}

func TestFillHandlerWorkerFailure(t *testing.T) {
	svc := &stubService{runErr: newError(CodeWorkerFailed, "bad xfa", nil)}

	rec := performUpload(t, FillHandler(svc, HandlerOptions{}), []byte("%PDF-data"), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != CodeWorkerFailed || body["error"] != "bad xfa" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestFillHandlerProtocolError(t *testing.T) {
	svc := &stubService{runErr: newError(CodeWorkerProtocol, "worker output is not valid JSON: garbage", nil)}

	rec := performUpload(t, FillHandler(svc, HandlerOptions{}), []byte("%PDF-data"), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if errText, _ := body["error"].(string); !strings.Contains(errText, "garbage") {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestFillHandlerSchedulesLargeUpload(t *testing.T) {
	svc := &stubService{}
	scheduler := &stubScheduler{}
	opts := HandlerOptions{Scheduler: scheduler, AsyncThresholdBytes: 8}

	rec := performUpload(t, FillHandler(svc, opts), bytes.Repeat([]byte("x"), 64), nil)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["jobId"] != "job-123" {
		t.Fatalf("unexpected body: %v", body)
	}
	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != "fill:job-123" {
		t.Fatalf("unexpected schedule calls: %v", scheduler.scheduled)
	}
}

func TestFillHandlerSmallUploadStaysSync(t *testing.T) {
	pdfData := []byte("%PDF")
	dir := resultDir(t, pdfData)
	svc := &stubService{result: &Result{
		JobID:          "job-123",
		Action:         ActionFill,
		OutputPath:     filepath.Join(dir, outputFilename),
		OutputFilename: "Mantelbogen.pdf",
		OutputSize:     int64(len(pdfData)),
		jobDir:         dir,
	}}
	scheduler := &stubScheduler{}
	opts := HandlerOptions{Scheduler: scheduler, AsyncThresholdBytes: 1 << 20}

	rec := performUpload(t, FillHandler(svc, opts), []byte("tiny"), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if len(scheduler.scheduled) != 0 {
		t.Fatalf("small upload should not be scheduled: %v", scheduler.scheduled)
	}
}

func TestFillHandlerDiscardsJobOnScheduleFailure(t *testing.T) {
	svc := &stubService{}
	scheduler := &stubScheduler{err: fmt.Errorf("queue unavailable")}
	opts := HandlerOptions{Scheduler: scheduler, AsyncThresholdBytes: 8}

	rec := performUpload(t, FillHandler(svc, opts), bytes.Repeat([]byte("x"), 64), nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.discarded) != 1 || svc.discarded[0] != "job-123" {
		t.Fatalf("staged job was not discarded: %v", svc.discarded)
	}
}
