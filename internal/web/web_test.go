package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/db"
	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/Joseda-hg/taskdeck/internal/server"
)

func TestIndexShowsEmptyState(t *testing.T) {
	handler, _ := newTestFrontEnd(t, "")

	rec := get(handler, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `id="empty-state"`) {
		t.Fatalf("expected empty state")
	}
}

func TestCreateToggleAndDelete(t *testing.T) {
	handler, session := newTestFrontEnd(t, "")

	rec := postForm(handler, "/tasks", url.Values{
		"title":    {"  Buy milk  "},
		"priority": {"low"},
		"category": {"shopping"},
		"tags":     {"home, ,errands,"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d: %s", rec.Code, rec.Body.String())
	}

	tasks := session.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "Buy milk" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	if strings.Join(tasks[0].Tags, ",") != "home,errands" {
		t.Fatalf("unexpected tags %v", tasks[0].Tags)
	}

	body := get(handler, "/").Body.String()
	for _, want := range []string{"Buy milk", "Task created successfully!", "#errands", "Mark as complete"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in page", want)
		}
	}

	id := tasks[0].ID
	rec = postForm(handler, "/tasks/"+id+"/toggle", url.Values{"completed": {"true"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if task, _ := session.Task(id); !task.Completed {
		t.Fatalf("expected task completed")
	}

	rec = postForm(handler, "/tasks/"+id+"/delete", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if len(session.Tasks()) != 0 {
		t.Fatalf("expected task deleted")
	}
}

func TestBlankTitleRerendersForm(t *testing.T) {
	handler, session := newTestFrontEnd(t, "")

	rec := postForm(handler, "/tasks", url.Values{"title": {"   "}, "description": {"keep me"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Please enter a task title") || !strings.Contains(body, "keep me") {
		t.Fatalf("expected form with validation toast")
	}
	if len(session.Tasks()) != 0 {
		t.Fatalf("expected no task created")
	}
}

func TestEditFormIsPopulated(t *testing.T) {
	handler, session := newTestFrontEnd(t, "")

	postForm(handler, "/tasks", url.Values{"title": {"Report"}, "due_date": {"2026-09-01T10:00"}, "tags": {"a,b"}})
	id := session.Tasks()[0].ID

	body := get(handler, "/?edit="+id).Body.String()
	for _, want := range []string{"Edit Task", `value="2026-09-01T10:00"`, `value="a, b"`, `action="/tasks/` + id + `"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in edit form", want)
		}
	}

	rec := postForm(handler, "/tasks/"+id, url.Values{"title": {"Report v2"}, "priority": {"high"}, "category": {"work"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	task, _ := session.Task(id)
	if task.Title != "Report v2" || task.Priority != "high" || !task.DueDate.IsZero() {
		t.Fatalf("unexpected updated task %+v", task)
	}
}

func TestFilterFromQuery(t *testing.T) {
	handler, session := newTestFrontEnd(t, "")
	postForm(handler, "/tasks", url.Values{"title": {"Walk dog"}, "priority": {"low"}})
	postForm(handler, "/tasks", url.Values{"title": {"File taxes"}, "priority": {"high"}})

	body := get(handler, "/?status=all&priority=high&category=all&search=").Body.String()
	if !strings.Contains(body, "File taxes") || strings.Contains(body, "Walk dog") {
		t.Fatalf("expected only high priority task")
	}
	if session.Filter().Priority != "high" {
		t.Fatalf("expected filter kept in session")
	}
}

func TestUploadThroughForm(t *testing.T) {
	handler, session := newTestFrontEnd(t, t.TempDir())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("title", "Scan receipt")
	part, _ := writer.CreateFormFile("file", "receipt.txt")
	_, _ = part.Write([]byte("42.00"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/tasks", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d: %s", rec.Code, rec.Body.String())
	}
	task := session.Tasks()[0]
	if !strings.HasSuffix(task.FileURL, "_receipt.txt") {
		t.Fatalf("expected attachment, got %q", task.FileURL)
	}
}

func TestExportProxiesCSV(t *testing.T) {
	handler, _ := newTestFrontEnd(t, "")
	postForm(handler, "/tasks", url.Values{"title": {"Export me"}})

	rec := get(handler, "/export")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename=tasks_export_") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rec.Body.String(), "Export me") {
		t.Fatalf("expected task in export")
	}
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func postForm(handler http.Handler, target string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newTestFrontEnd(t *testing.T, attachmentDir string) (http.Handler, *client.Session) {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	backend := httptest.NewServer(server.NewServer(db.NewStore(conn), server.Options{AttachmentDir: attachmentDir}).Handler())
	t.Cleanup(backend.Close)

	notifier := client.NewNotifier()
	session := client.NewSession(client.NewGateway(backend.URL, client.Options{Notifier: notifier}), notifier)
	dispatcher := client.NewDispatcher(session)
	if err := dispatcher.Dispatch(context.Background(), client.SetFilter{Filter: model.DefaultFilter()}); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	return NewServer(dispatcher).Handler(), session
}
