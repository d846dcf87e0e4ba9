package tui

import (
	"fmt"
	"strings"

	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/form"
	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/Joseda-hg/taskdeck/internal/render"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

type formEditor struct {
	ui *UI
}

func (u *UI) newTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.form.OpenNew()
	u.formIndex = 0
	return nil
}

func (u *UI) editTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	card := u.selectedCard()
	if card == nil {
		return nil
	}
	task, ok := u.session.Task(card.ID)
	if !ok {
		return nil
	}
	u.form.OpenEdit(task)
	u.formIndex = 0
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(14, max(10, maxY/2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	view.Title = u.form.Heading()
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	if !u.attachActive {
		_, _ = gui.SetCurrentView(viewForm)
	}
	return nil
}

// submitForm validates on the loop and sends the request in the background.
// The form stays open with its values when the server rejects the task, and
// ignores Enter until the pending request finishes.
func (u *UI) submitForm(gui *gocui.Gui, _ *gocui.View) error {
	if !u.form.IsOpen() || u.submitting {
		return nil
	}
	intent, err := u.form.Submission()
	if err != nil {
		u.session.Notifier().Push(client.ToastError, err.Error())
		return nil
	}
	u.status = ""
	u.submitting = true
	u.dispatch(intent, func(err error) {
		u.submitting = false
		if client.Committed(err) {
			u.closeModal(u.gui, viewForm)
		}
	})
	return nil
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.closeModal(gui, viewForm)
	return nil
}

func (u *UI) nextFormField(gui *gocui.Gui, view *gocui.View) error {
	if u.formIndex < len(form.Fields)-1 {
		u.formIndex++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(gui *gocui.Gui, view *gocui.View) error {
	if u.formIndex > 0 {
		u.formIndex--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if view == nil || !u.form.IsOpen() {
		return
	}
	view.Clear()
	for index, field := range form.Fields {
		prefix := "  "
		if index == u.formIndex {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, fieldLabel(field), render.Plain(u.form.Value(field)))
	}
	for _, line := range u.form.Attachment.Display() {
		fmt.Fprintf(view, "  %s\n", line)
	}

	current := form.Fields[u.formIndex]
	label := fieldLabel(current) + ": "
	cursorX := len([]rune(label)) + len([]rune(u.form.Value(current))) + 2
	view.SetCursor(cursorX, u.formIndex)
}

func fieldLabel(field form.Field) string {
	switch field {
	case form.Priority, form.Category:
		return field.Label() + " (space/←→)"
	default:
		return field.Label()
	}
}

// fieldOptions returns the fixed choices for select-like fields.
func fieldOptions(field form.Field) []string {
	switch field {
	case form.Priority:
		return model.Priorities
	case form.Category:
		return model.Categories
	default:
		return nil
	}
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || !ui.form.IsOpen() || view == nil {
		return false
	}
	field := form.Fields[ui.formIndex]
	value := ui.form.Value(field)

	if options := fieldOptions(field); options != nil {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			ui.form.Set(field, cycleOption(options, value, 1))
		case gocui.KeyArrowLeft:
			ui.form.Set(field, cycleOption(options, value, -1))
		}
		ui.renderForm(view)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(value)
		if len(runes) > 0 {
			value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		value += " "
	case gocui.KeyCtrlU:
		value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		value += string(ch)
	}

	ui.form.Set(field, value)
	ui.renderForm(view)
	return true
}

func cycleOption(order []string, current string, delta int) string {
	value := strings.TrimSpace(strings.ToLower(current))
	index := 0
	for i, option := range order {
		if option == value {
			index = i
			break
		}
	}
	index = (index + delta + len(order)) % len(order)
	return order[index]
}
