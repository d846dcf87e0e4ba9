package tui

import (
	"fmt"
	"strings"

	"github.com/Joseda-hg/taskdeck/internal/client"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

// searchEditor edits the prompt like the default editor and pushes every
// change to the debounced search.
type searchEditor struct {
	ui *UI
}

func (e *searchEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	handled := gocui.DefaultEditor.Edit(view, key, ch, mod)
	if handled && e.ui != nil {
		e.ui.filters.SetSearch(e.ui.ctx, strings.TrimSpace(view.Buffer()))
	}
	return handled
}

func (u *UI) showSearch(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	x0, y0, x1, y1 := overlayRect(maxX, maxY, max(30, maxX/2), 2)

	view, err := gui.SetView(viewSearch, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Search title or description"
		view.Clear()
		fmt.Fprint(view, u.filters.Filter().Search)
		view.SetCursor(len([]rune(u.filters.Filter().Search)), 0)
	}
	view.Editable = true
	view.Editor = &searchEditor{ui: u}
	_, _ = gui.SetCurrentView(viewSearch)
	return nil
}

func (u *UI) showConfirm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	x0, y0, x1, y1 := overlayRect(maxX, maxY, max(40, maxX/3), 3)

	view, err := gui.SetView(viewConfirm, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.Title = "Delete"
	view.Wrap = true
	view.FrameColor = gocui.ColorRed
	view.Clear()
	title := u.confirmID
	if task, ok := u.session.Task(u.confirmID); ok {
		title = task.Title
	}
	fmt.Fprintf(view, "Are you sure you want to delete this task?\n%s  (y/n)", title)
	_, _ = gui.SetCurrentView(viewConfirm)
	return nil
}

func (u *UI) showAttach(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	x0, y0, x1, y1 := overlayRect(maxX, maxY, max(50, maxX/2), 2)

	view, err := gui.SetView(viewAttach, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Attach file (type or drop a path)"
		view.Clear()
	}
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetViewOnTop(viewAttach)
	_, _ = gui.SetCurrentView(viewAttach)
	return nil
}

// showToasts stacks the active notifications in the bottom right corner.
func (u *UI) showToasts(gui *gocui.Gui) error {
	toasts := u.session.Notifier().Active()
	if len(toasts) == 0 {
		_ = gui.DeleteView(viewToasts)
		return nil
	}

	maxX, maxY := gui.Size()
	width := min(max(30, maxX/3), maxX-1)
	height := len(toasts) + 1
	x0 := max(maxX-width-1, 0)
	y1 := max(maxY-4, height)
	y0 := max(y1-height, 0)

	view, err := gui.SetView(viewToasts, x0, y0, x0+width, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.Title = "Notifications"
	view.Wrap = true
	view.FrameColor = gocui.ColorGreen
	for _, toast := range toasts {
		if toast.Kind == client.ToastError {
			view.FrameColor = gocui.ColorRed
		}
	}
	view.Clear()
	for _, toast := range toasts {
		fmt.Fprintln(view, toastLine(toast))
	}
	_, _ = gui.SetViewOnTop(viewToasts)
	return nil
}

func (u *UI) showLoading(gui *gocui.Gui) error {
	if !u.loading {
		_ = gui.DeleteView(viewLoading)
		return nil
	}

	maxX, _ := gui.Size()
	const label = " Loading... "
	x0 := max(maxX-len(label)-3, 0)
	view, err := gui.SetView(viewLoading, x0, 0, maxX-1, 2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.FrameColor = gocui.ColorYellow
	view.Clear()
	fmt.Fprint(view, label)
	_, _ = gui.SetViewOnTop(viewLoading)
	return nil
}
