package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/attach"
	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/form"
	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/Joseda-hg/taskdeck/internal/render"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxFormBytes = 32 << 20

// Server is the browser front end. It renders the shared session and turns
// form posts into dispatcher intents.
type Server struct {
	dispatcher *client.Dispatcher
	session    *client.Session
	now        func() time.Time
}

func NewServer(dispatcher *client.Dispatcher) *Server {
	return &Server{
		dispatcher: dispatcher,
		session:    dispatcher.Session(),
		now:        time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.indexHandler)
	r.Post("/tasks", s.saveHandler)
	r.Post("/tasks/{id}", s.saveHandler)
	r.Post("/tasks/{id}/delete", s.deleteHandler)
	r.Post("/tasks/{id}/toggle", s.toggleHandler)
	r.Get("/export", s.exportHandler)
	return r
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	filter := s.session.Filter()
	query := r.URL.Query()
	if hasFilter(query) {
		filter = model.FilterFromValues(query)
	}
	if err := s.dispatcher.Dispatch(r.Context(), client.SetFilter{Filter: filter}); err != nil {
		logging.Logger.Warnf("reload for page failed: %v", err)
	}

	var view *render.FormView
	switch {
	case query.Get("edit") != "":
		if task, ok := s.session.Task(query.Get("edit")); ok {
			controller := form.New(s.dispatcher, nil)
			controller.OpenEdit(task)
			view = formView(controller)
		}
	case query.Get("new") != "":
		controller := form.New(s.dispatcher, nil)
		controller.OpenNew()
		view = formView(controller)
	}

	s.renderBoard(w, http.StatusOK, view)
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	controller := form.New(s.dispatcher, s.session.Notifier())
	if id := chi.URLParam(r, "id"); id != "" {
		task, ok := s.session.Task(id)
		if !ok {
			task = model.Task{ID: id}
		}
		controller.OpenEdit(task)
	} else {
		controller.OpenNew()
	}
	for _, field := range form.Fields {
		controller.Set(field, r.FormValue(formNames[field]))
	}

	cleanup, err := stageUpload(r, &controller.Attachment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer cleanup()

	err = controller.Submit(r.Context())
	switch {
	case err == nil:
		s.redirectHome(w, r)
	case client.IsValidation(err):
		s.renderBoard(w, http.StatusUnprocessableEntity, formView(controller))
	default:
		// the gateway already reported the failure as a toast
		s.renderBoard(w, http.StatusBadGateway, formView(controller))
	}
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	intent := client.DeleteTask{ID: chi.URLParam(r, "id")}
	if err := s.dispatcher.Dispatch(r.Context(), intent); err != nil {
		logging.Logger.Warnf("delete %s failed: %v", intent.ID, err)
	}
	s.redirectHome(w, r)
}

func (s *Server) toggleHandler(w http.ResponseWriter, r *http.Request) {
	intent := client.SetCompleted{
		ID:        chi.URLParam(r, "id"),
		Completed: r.FormValue("completed") == "true",
	}
	if err := s.dispatcher.Dispatch(r.Context(), intent); err != nil {
		logging.Logger.Warnf("toggle %s failed: %v", intent.ID, err)
	}
	s.redirectHome(w, r)
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	filename, err := s.session.Export(r.Context(), &buf)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if filename == "" {
		filename = fmt.Sprintf("tasks_export_%s.csv", s.now().Format("20060102"))
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	_, _ = io.Copy(w, &buf)
}

func (s *Server) renderBoard(w http.ResponseWriter, status int, view *render.FormView) {
	now := s.now()
	board := render.Board{
		Stats:  render.Stats(s.session.Stats()),
		Filter: s.session.Filter(),
		Cards:  render.Cards(s.session.Tasks(), now),
		Form:   view,
	}
	for _, toast := range s.session.Notifier().Active() {
		board.Toasts = append(board.Toasts, render.ToastView{Kind: string(toast.Kind), Message: toast.Message})
	}

	var buf bytes.Buffer
	if err := render.HTML(&buf, board); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/?"+s.session.Filter().Values().Encode(), http.StatusSeeOther)
}

var formNames = map[form.Field]string{
	form.Title:       "title",
	form.Description: "description",
	form.Priority:    "priority",
	form.Category:    "category",
	form.DueDate:     "due_date",
	form.Tags:        "tags",
}

func formView(controller *form.Controller) *render.FormView {
	action := "/tasks"
	if id := controller.EditingID(); id != "" {
		action = "/tasks/" + id
	}
	return &render.FormView{
		Heading:     controller.Heading(),
		Action:      action,
		Title:       controller.Value(form.Title),
		Description: controller.Value(form.Description),
		Priority:    controller.Value(form.Priority),
		Category:    controller.Value(form.Category),
		DueDate:     controller.Value(form.DueDate),
		Tags:        controller.Value(form.Tags),
		Attachment:  controller.Attachment.Display(),
	}
}

func hasFilter(query url.Values) bool {
	for _, key := range []string{"status", "priority", "category", "search"} {
		if _, ok := query[key]; ok {
			return true
		}
	}
	return false
}

// stageUpload copies an uploaded file into a temporary directory so the
// gateway can send it on. The returned func removes the copy.
func stageUpload(r *http.Request, selector *attach.Selector) (func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return noop, nil
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return noop, nil
	}
	if err != nil {
		return noop, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()
	if header.Filename == "" {
		return noop, nil
	}

	dir, err := os.MkdirTemp("", "taskdeck-upload-")
	if err != nil {
		return noop, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return noop, err
	}
	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		cleanup()
		return noop, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return noop, err
	}
	if err := selector.Browse(path); err != nil {
		cleanup()
		return noop, err
	}
	return cleanup, nil
}

// Run serves the front end until ctx is cancelled.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
