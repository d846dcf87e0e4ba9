package client

import (
	"context"
	"io"
	"sync"

	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/model"
)

// API is the backend surface the session needs. Gateway implements it.
type API interface {
	ListTasks(ctx context.Context, filter model.Filter) ([]model.Task, error)
	CreateTask(ctx context.Context, input model.TaskInput) (model.Result, error)
	UpdateTask(ctx context.Context, id string, input model.TaskInput) (model.Result, error)
	DeleteTask(ctx context.Context, id string) (model.Result, error)
	Stats(ctx context.Context) (model.Stats, error)
	UploadAttachment(ctx context.Context, id, path string) (model.Result, error)
	Export(ctx context.Context, w io.Writer) (string, error)
}

// Session mirrors the server's task list for one run of the client. The
// cached list is replaced wholesale by every reload.
type Session struct {
	api      API
	notifier *Notifier

	mu       sync.Mutex
	tasks    []model.Task
	stats    model.Stats
	filter   model.Filter
	onChange func()
}

func NewSession(api API, notifier *Notifier) *Session {
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Session{
		api:      api,
		notifier: notifier,
		filter:   model.DefaultFilter(),
	}
}

func (s *Session) Notifier() *Notifier {
	return s.notifier
}

// OnChange registers a callback run after the cached state changes.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// List fetches the tasks matching filter, replaces the cache and then
// refreshes the stats.
func (s *Session) List(ctx context.Context, filter model.Filter) error {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()

	tasks, err := s.api.ListTasks(ctx, filter)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	logging.Logger.WithField("count", len(tasks)).Debug("task list reloaded")
	s.changed()

	return s.RefreshStats(ctx)
}

// Reload lists again with the current filter.
func (s *Session) Reload(ctx context.Context) error {
	return s.List(ctx, s.Filter())
}

func (s *Session) RefreshStats(ctx context.Context) error {
	stats, err := s.api.Stats(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	s.changed()
	return nil
}

// Create sends a new task. The returned result carries the server id.
func (s *Session) Create(ctx context.Context, input model.TaskInput) (model.Result, error) {
	result, err := s.api.CreateTask(ctx, input)
	if err != nil {
		return result, err
	}
	return result, s.acknowledged(ctx, result, "Task created successfully!")
}

func (s *Session) Update(ctx context.Context, id string, input model.TaskInput) (model.Result, error) {
	result, err := s.api.UpdateTask(ctx, id, input)
	if err != nil {
		return result, err
	}
	return result, s.acknowledged(ctx, result, "Task updated successfully!")
}

func (s *Session) Delete(ctx context.Context, id string) error {
	result, err := s.api.DeleteTask(ctx, id)
	if err != nil {
		return err
	}
	return s.acknowledged(ctx, result, "Task deleted successfully!")
}

// SetCompleted flips the cached record first and then sends the whole
// record. A failed request leaves the flip until the next reload.
func (s *Session) SetCompleted(ctx context.Context, id string, completed bool) error {
	s.mu.Lock()
	var (
		input model.TaskInput
		found bool
	)
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Completed = model.Bool(completed)
			input = s.tasks[i].Input()
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return &ValidationError{Field: "id", Message: "Task not found"}
	}
	s.changed()

	result, err := s.api.UpdateTask(ctx, id, input)
	if err != nil {
		return err
	}
	message := "Task marked as pending"
	if completed {
		message = "Task completed!"
	}
	return s.acknowledged(ctx, result, message)
}

// Attach uploads the file at path to an existing task.
func (s *Session) Attach(ctx context.Context, id, path string) error {
	result, err := s.api.UploadAttachment(ctx, id, path)
	if err != nil {
		return err
	}
	return s.acknowledged(ctx, result, "File attached successfully!")
}

// Export writes the CSV export to w.
func (s *Session) Export(ctx context.Context, w io.Writer) (string, error) {
	return s.api.Export(ctx, w)
}

func (s *Session) acknowledged(ctx context.Context, result model.Result, message string) error {
	if !result.Success {
		return ErrNotAcknowledged
	}
	s.notifier.Push(ToastSuccess, message)
	return followUp(s.Reload(ctx))
}

func (s *Session) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]model.Task, len(s.tasks))
	copy(tasks, s.tasks)
	return tasks
}

func (s *Session) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.ID == id {
			return task, true
		}
	}
	return model.Task{}, false
}

func (s *Session) Stats() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) Filter() model.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}
