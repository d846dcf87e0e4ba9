package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/db"
	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCreateListAndStats(t *testing.T) {
	srv, store, cleanup := newTestServer(t, Options{})
	defer cleanup()
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/tasks", `{"title":"Buy milk","priority":"low","category":"shopping","due_date":"","tags":["home"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result model.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || result.ID == "" {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := store.CreateTask(context.Background(), model.TaskInput{Title: "Ship release", Priority: "high", Category: "work"}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/tasks?status=all&priority=all&category=all&search=", "")
	var tasks []model.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "Ship release" || tasks[1].Title != "Buy milk" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	if len(tasks[1].Tags) != 1 || tasks[1].Tags[0] != "home" {
		t.Fatalf("expected tags to round trip, got %v", tasks[1].Tags)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/tasks?category=shopping&search=MILK", "")
	tasks = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != result.ID {
		t.Fatalf("expected filtered task %s, got %+v", result.ID, tasks)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/stats", "")
	var stats model.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 2 || stats.CompletionRate != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCreateRejectsBlankTitle(t *testing.T) {
	srv, _, cleanup := newTestServer(t, Options{})
	defer cleanup()

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks", `{"title":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	srv, store, cleanup := newTestServer(t, Options{})
	defer cleanup()
	handler := srv.Handler()

	task, err := store.CreateTask(context.Background(), model.TaskInput{Title: "Draft"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	rec := doJSON(t, handler, http.MethodPut, "/api/tasks/"+task.ID, `{"title":"Final","priority":"high","category":"work","completed":true,"tags":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if updated.Title != "Final" || !updated.Completed || updated.Priority != "high" {
		t.Fatalf("unexpected update %+v", updated)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/tasks/missing", `{"title":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/tasks/"+task.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, err := store.GetTask(context.Background(), task.ID); err != db.ErrNotFound {
		t.Fatalf("expected task to be gone, got %v", err)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/tasks/"+task.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected repeated delete to succeed, got %d", rec.Code)
	}
}

func TestExportWritesCSV(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	srv, store, cleanup := newTestServer(t, Options{Now: func() time.Time { return fixed }})
	defer cleanup()

	due := model.NewTime(time.Date(2026, 3, 10, 17, 30, 0, 0, time.Local))
	if _, err := store.CreateTask(context.Background(), model.TaskInput{Title: "Pay rent", Description: "before, the 10th", DueDate: due}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=tasks_export_20260304.csv" {
		t.Fatalf("unexpected disposition %q", got)
	}

	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "Title,Description,Priority,Category,Due Date,Status,Created At" {
		t.Fatalf("unexpected header %v", records[0])
	}
	row := records[1]
	if row[0] != "Pay rent" || row[1] != "before, the 10th" || row[4] != "2026-03-10T17:30" || row[5] != "Pending" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestUploadAttachment(t *testing.T) {
	dir := t.TempDir()
	srv, store, cleanup := newTestServer(t, Options{AttachmentDir: dir})
	defer cleanup()
	handler := srv.Handler()

	task, err := store.CreateTask(context.Background(), model.TaskInput{Title: "Invoice"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "invoice.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("total: 42"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/attachment", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result model.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.FileURL != "/files/"+task.ID+"_invoice.txt" {
		t.Fatalf("unexpected file url %q", result.FileURL)
	}

	stored, err := os.ReadFile(filepath.Join(dir, task.ID+"_invoice.txt"))
	if err != nil || string(stored) != "total: 42" {
		t.Fatalf("expected stored attachment, got %q (%v)", stored, err)
	}

	rec = doJSON(t, handler, http.MethodGet, result.FileURL, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "total: 42" {
		t.Fatalf("expected attachment to be served, got %d %q", rec.Code, rec.Body.String())
	}

	updated, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if updated.FileURL != result.FileURL {
		t.Fatalf("expected task file url %q, got %q", result.FileURL, updated.FileURL)
	}
}

func TestMetricsCountRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	srv, _, cleanup := newTestServer(t, Options{Registry: registry})
	defer cleanup()
	handler := srv.Handler()

	doJSON(t, handler, http.MethodPost, "/api/tasks", `{"title":"One"}`)
	doJSON(t, handler, http.MethodPost, "/api/tasks", `{"title":""}`)
	doJSON(t, handler, http.MethodGet, "/api/stats", "")

	if got := testutil.ToFloat64(srv.metrics.mutations.WithLabelValues("create", "success")); got != 1 {
		t.Fatalf("expected 1 successful create, got %v", got)
	}
	if got := testutil.ToFloat64(srv.metrics.mutations.WithLabelValues("create", "error")); got != 1 {
		t.Fatalf("expected 1 failed create, got %v", got)
	}
	if got := testutil.ToFloat64(srv.metrics.requests.WithLabelValues("/api/stats", http.MethodGet, "200")); got != 1 {
		t.Fatalf("expected 1 stats request, got %v", got)
	}

	rec := doJSON(t, handler, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "taskdeck_http_requests_total") {
		t.Fatalf("expected metrics exposition")
	}
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newTestServer(t *testing.T, opts Options) (*Server, *db.Store, func()) {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := db.NewStore(conn)
	return NewServer(store, opts), store, func() {
		_ = conn.Close()
	}
}
