package form

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Joseda-hg/taskdeck/internal/attach"
	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/model"
)

type Field int

const (
	Title Field = iota
	Description
	Priority
	Category
	DueDate
	Tags
)

// Fields lists the form fields in display order.
var Fields = []Field{Title, Description, Priority, Category, DueDate, Tags}

var labels = map[Field]string{
	Title:       "Title",
	Description: "Description",
	Priority:    "Priority",
	Category:    "Category",
	DueDate:     "Due (YYYY-MM-DDTHH:MM)",
	Tags:        "Tags (comma separated)",
}

func (f Field) Label() string {
	return labels[f]
}

const (
	HeadingNew  = "Add New Task"
	HeadingEdit = "Edit Task"
)

// Dispatcher receives the intents produced by a submit.
type Dispatcher interface {
	Dispatch(ctx context.Context, in client.Intent) error
}

// Controller is the task form state machine. With no editing id it creates,
// otherwise it updates that task.
type Controller struct {
	dispatch Dispatcher
	notifier *client.Notifier

	mu        sync.Mutex
	open      bool
	editingID string
	values    map[Field]string
	completed bool

	Attachment attach.Selector
}

func New(dispatch Dispatcher, notifier *client.Notifier) *Controller {
	c := &Controller{dispatch: dispatch, notifier: notifier}
	c.reset()
	return c
}

func (c *Controller) reset() {
	c.editingID = ""
	c.completed = false
	c.values = map[Field]string{
		Priority: model.PriorityMedium,
		Category: model.CategoryGeneral,
	}
	c.Attachment.Reset()
}

func (c *Controller) OpenNew() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.open = true
}

// OpenEdit fills the form from task.
func (c *Controller) OpenEdit(task model.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.editingID = task.ID
	c.completed = bool(task.Completed)
	c.values[Title] = task.Title
	c.values[Description] = task.Description
	c.values[Priority] = task.Priority
	c.values[Category] = task.Category
	c.values[DueDate] = FormatDue(task.DueDate)
	c.values[Tags] = strings.Join(task.Tags, ", ")
	c.open = true
}

func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.open = false
}

func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Controller) EditingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID
}

func (c *Controller) Heading() string {
	if c.EditingID() != "" {
		return HeadingEdit
	}
	return HeadingNew
}

func (c *Controller) Set(field Field, value string) {
	c.mu.Lock()
	c.values[field] = value
	c.mu.Unlock()
}

func (c *Controller) Value(field Field) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[field]
}

// Submission validates the form and builds the intent it would dispatch.
func (c *Controller) Submission() (client.Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := strings.TrimSpace(c.values[Title])
	if title == "" {
		return nil, &client.ValidationError{Field: "title", Message: "Please enter a task title"}
	}
	due, err := ParseDue(c.values[DueDate])
	if err != nil {
		return nil, &client.ValidationError{Field: "due_date", Message: err.Error()}
	}

	input := model.TaskInput{
		Title:       title,
		Description: strings.TrimSpace(c.values[Description]),
		Priority:    c.values[Priority],
		Category:    c.values[Category],
		DueDate:     due,
		Tags:        ParseTags(c.values[Tags]),
		Completed:   c.completed,
	}
	attachment := c.Attachment.Path()

	if c.editingID != "" {
		return client.UpdateTask{ID: c.editingID, Input: input, Attachment: attachment}, nil
	}
	return client.CreateTask{Input: input, Attachment: attachment}, nil
}

// Submit dispatches the form. Validation failures are reported as an error
// toast and nothing is sent. The form closes once the server has accepted the
// task, even when the reload or upload after it fails.
func (c *Controller) Submit(ctx context.Context) error {
	intent, err := c.Submission()
	if err != nil {
		if c.notifier != nil {
			c.notifier.Push(client.ToastError, err.Error())
		}
		return err
	}
	if err := c.dispatch.Dispatch(ctx, intent); err != nil {
		if !client.Committed(err) {
			return err
		}
		logging.Logger.Warnf("task saved but follow-up failed: %v", err)
	}
	c.Close()
	return nil
}

// ParseTags splits a comma separated list, dropping blank entries.
func ParseTags(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

// FormatDue renders a due date the way the due field expects it.
func FormatDue(due model.Time) string {
	if due.IsZero() {
		return ""
	}
	return due.Time.Local().Format(model.LayoutMinute)
}

func ParseDue(value string) (model.Time, error) {
	due, err := model.ParseTime(value)
	if err != nil {
		return model.Time{}, fmt.Errorf("invalid due date, use YYYY-MM-DDTHH:MM")
	}
	return due, nil
}
