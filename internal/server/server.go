package server

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/db"
	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxUploadBytes = 32 << 20

var exportHeader = []string{"Title", "Description", "Priority", "Category", "Due Date", "Status", "Created At"}

type Options struct {
	// AttachmentDir is where uploads are stored. Uploads are refused when empty.
	AttachmentDir string
	Registry      *prometheus.Registry
	Now           func() time.Time
}

// Server is the REST backend for tasks.
type Server struct {
	store       *db.Store
	attachments string
	registry    *prometheus.Registry
	metrics     *metrics
	now         func() time.Time
}

func NewServer(store *db.Store, opts Options) *Server {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		store:       store,
		attachments: opts.AttachmentDir,
		registry:    registry,
		metrics:     newMetrics(registry),
		now:         now,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", s.listTasks)
		r.Post("/tasks", s.createTask)
		r.Put("/tasks/{id}", s.updateTask)
		r.Delete("/tasks/{id}", s.deleteTask)
		r.Post("/tasks/{id}/attachment", s.uploadAttachment)
		r.Get("/stats", s.stats)
	})
	r.Get("/export", s.export)
	if s.attachments != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(s.attachments))))
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context(), model.FilterFromValues(r.URL.Query()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var input model.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode task: %w", err))
		return
	}

	task, err := s.store.CreateTask(r.Context(), input)
	s.metrics.mutation("create", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Logger.WithField("task", task.ID).Info("task created")
	writeJSON(w, model.Result{Success: true, ID: task.ID})
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var input model.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode task: %w", err))
		return
	}

	id := chi.URLParam(r, "id")
	_, err := s.store.UpdateTask(r.Context(), id, input)
	s.metrics.mutation("update", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, model.Result{Success: true})
}

// deleteTask succeeds for unknown ids so repeated deletes are harmless.
func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.DeleteTask(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		err = nil
	}
	s.metrics.mutation("delete", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, model.Result{Success: true})
}

func (s *Server) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	if s.attachments == "" {
		writeError(w, http.StatusServiceUnavailable, errors.New("attachments are disabled"))
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.store.GetTask(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	defer file.Close()

	name := attachmentName(id, header.Filename)
	if err := saveFile(filepath.Join(s.attachments, name), file); err != nil {
		s.metrics.mutation("attach", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	fileURL := "/files/" + url.PathEscape(name)
	err = s.store.SetFileURL(r.Context(), id, fileURL)
	s.metrics.mutation("attach", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Logger.WithField("task", id).Infof("attachment stored as %s", name)
	writeJSON(w, model.Result{Success: true, FileURL: fileURL})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ExportTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	filename := fmt.Sprintf("tasks_export_%s.csv", s.now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := writeCSV(w, tasks); err != nil {
		logging.Logger.Errorf("write export: %v", err)
	}
}

func writeCSV(w io.Writer, tasks []model.Task) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, task := range tasks {
		status := "Pending"
		if task.Completed {
			status = "Completed"
		}
		record := []string{
			task.Title,
			task.Description,
			task.Priority,
			task.Category,
			task.DueDate.String(),
			status,
			task.CreatedAt.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func attachmentName(id, filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return id + "_" + base
}

func saveFile(path string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create attachment dir: %w", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write attachment: %w", err)
	}
	return dst.Close()
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, db.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		logging.Logger.Errorf("request failed: %v", err)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
