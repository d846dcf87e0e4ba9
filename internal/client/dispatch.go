package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/model"
)

// Intent is a user action produced by a front end.
type Intent interface {
	intent()
}

// CreateTask creates a task and, when Attachment is set, uploads that file
// to the new task.
type CreateTask struct {
	Input      model.TaskInput
	Attachment string
}

type UpdateTask struct {
	ID         string
	Input      model.TaskInput
	Attachment string
}

type DeleteTask struct {
	ID string
}

type SetCompleted struct {
	ID        string
	Completed bool
}

// AttachFile uploads a file to an existing task.
type AttachFile struct {
	ID   string
	Path string
}

type SetFilter struct {
	Filter model.Filter
}

type Reload struct{}

func (CreateTask) intent()   {}
func (UpdateTask) intent()   {}
func (DeleteTask) intent()   {}
func (SetCompleted) intent() {}
func (AttachFile) intent()   {}
func (SetFilter) intent()    {}
func (Reload) intent()       {}

// Dispatcher applies intents to a session one at a time.
type Dispatcher struct {
	session *Session
	mu      sync.Mutex
}

func NewDispatcher(session *Session) *Dispatcher {
	return &Dispatcher{session: session}
}

func (d *Dispatcher) Session() *Session {
	return d.session
}

func (d *Dispatcher) Dispatch(ctx context.Context, in Intent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	logging.Logger.WithField("intent", fmt.Sprintf("%T", in)).Debug("dispatch")

	switch in := in.(type) {
	case CreateTask:
		result, err := d.session.Create(ctx, in.Input)
		if !Committed(err) {
			return err
		}
		if in.Attachment != "" && result.ID != "" {
			if attachErr := d.session.Attach(ctx, result.ID, in.Attachment); attachErr != nil {
				return followUp(attachErr)
			}
		}
		return err
	case UpdateTask:
		_, err := d.session.Update(ctx, in.ID, in.Input)
		if !Committed(err) {
			return err
		}
		if in.Attachment != "" {
			if attachErr := d.session.Attach(ctx, in.ID, in.Attachment); attachErr != nil {
				return followUp(attachErr)
			}
		}
		return err
	case DeleteTask:
		return d.session.Delete(ctx, in.ID)
	case SetCompleted:
		return d.session.SetCompleted(ctx, in.ID, in.Completed)
	case AttachFile:
		return d.session.Attach(ctx, in.ID, in.Path)
	case SetFilter:
		return d.session.List(ctx, in.Filter)
	case Reload:
		return d.session.Reload(ctx)
	default:
		return fmt.Errorf("unknown intent %T", in)
	}
}
