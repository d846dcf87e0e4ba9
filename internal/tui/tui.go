package tui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/attach"
	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/filter"
	"github.com/Joseda-hg/taskdeck/internal/form"
	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/render"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

const (
	viewHeader  = "header"
	viewFooter  = "footer"
	viewTasks   = "tasks"
	viewDetail  = "detail"
	viewToasts  = "toasts"
	viewLoading = "loading"
	viewSearch  = "search"
	viewForm    = "form"
	viewConfirm = "confirm"
	viewAttach  = "attach"
)

type Options struct {
	// Loading is the gateway's indicator, shown while a request is in flight.
	Loading *client.Indicator
	// ExportDir receives CSV exports. Defaults to the working directory.
	ExportDir string
}

type UI struct {
	ctx        context.Context
	dispatcher *client.Dispatcher
	session    *client.Session
	filters    *filter.Controller
	form       *form.Controller
	gui        *gocui.Gui
	now        func() time.Time
	exportDir  string

	cards    []render.Card
	selected int
	focus    string

	formIndex    int
	formEditor   *formEditor
	submitting   bool
	searchActive bool
	attachActive bool
	confirmID    string
	loading      bool
	status       string
}

func newUI(ctx context.Context, dispatcher *client.Dispatcher, exportDir string) *UI {
	u := &UI{
		ctx:        ctx,
		dispatcher: dispatcher,
		session:    dispatcher.Session(),
		now:        time.Now,
		exportDir:  exportDir,
		focus:      viewTasks,
	}
	u.filters = filter.NewController(loopDispatcher{ui: u}, u.session.Filter())
	u.form = form.New(dispatcher, u.session.Notifier())
	u.formEditor = &formEditor{ui: u}
	return u
}

func Run(ctx context.Context, dispatcher *client.Dispatcher, opts Options) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(ctx, dispatcher, opts.ExportDir)
	ui.gui = gui
	gui.Mouse = true

	ui.filters.OnLoop(func(f func()) {
		gui.Update(func(*gocui.Gui) error {
			f()
			return nil
		})
	})
	defer ui.filters.Stop()
	ui.session.OnChange(func() {
		gui.Update(func(*gocui.Gui) error {
			ui.refresh()
			return nil
		})
	})
	ui.session.Notifier().OnChange(func() {
		gui.Update(func(*gocui.Gui) error { return nil })
	})
	if opts.Loading != nil {
		opts.Loading.OnChange(func(active bool) {
			gui.Update(func(*gocui.Gui) error {
				ui.loading = active
				return nil
			})
		})
	}

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	ui.dispatch(client.Reload{}, nil)

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}

	return nil
}

// loopDispatcher hands filter reloads to the UI's background runner so the
// main loop never blocks on the network.
type loopDispatcher struct {
	ui *UI
}

func (d loopDispatcher) Dispatch(_ context.Context, in client.Intent) error {
	d.ui.dispatch(in, nil)
	return nil
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyCtrlN, gocui.ModNone, u.newTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'q', gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'r', gocui.ModNone, u.reload); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'e', gocui.ModNone, u.editTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'd', gocui.ModNone, u.deleteTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, gocui.KeySpace, gocui.ModNone, u.toggleCompleted); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'x', gocui.ModNone, u.toggleCompleted); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, '/', gocui.ModNone, u.startSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 's', gocui.ModNone, u.cycleStatus); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'p', gocui.ModNone, u.cyclePriority); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'c', gocui.ModNone, u.cycleCategory); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'a', gocui.ModNone, u.startAttach); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'E', gocui.ModNone, u.exportTasks); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'j', gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'k', gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, gocui.KeyEnter, gocui.ModNone, u.editTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEnter, gocui.ModNone, u.closeSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEsc, gocui.ModNone, u.closeSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyCtrlO, gocui.ModNone, u.startAttach); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, 'y', gocui.ModNone, u.confirmDelete); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, 'n', gocui.ModNone, u.cancelConfirm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, gocui.KeyEsc, gocui.ModNone, u.cancelConfirm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewAttach, gocui.KeyEnter, gocui.ModNone, u.submitAttach); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewAttach, gocui.KeyEsc, gocui.ModNone, u.cancelAttach); err != nil {
		return err
	}
	if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewTasks, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onListClick(gui, opts)
	}}); err != nil {
		return err
	}
	for _, name := range []string{viewTasks, viewDetail} {
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.scrollUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.scrollDown); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := max(maxY-1, 3)
	footerY0 := max(footerY1-2, 3)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 3
	bodyBottom := footerY0 - 1
	if bodyBottom <= bodyTop {
		return nil
	}

	listWidth := computeListWidth(maxX)
	tasksView, err := gui.SetView(viewTasks, 0, bodyTop, listWidth-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		tasksView.TitleColor = gocui.ColorCyan
	}
	tasksView.Title = fmt.Sprintf("Tasks (%d)", len(u.cards))
	applyViewStyle(tasksView, !u.inputActive(), true)
	u.renderTaskList(tasksView, !u.inputActive())

	detailView, err := gui.SetView(viewDetail, listWidth, bodyTop, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailView.Title = "Details"
		detailView.Wrap = true
	}
	applyViewStyle(detailView, false, false)
	u.renderDetail(detailView)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if err := u.showToasts(gui); err != nil {
		return err
	}
	if err := u.showLoading(gui); err != nil {
		return err
	}

	if u.searchActive {
		if err := u.showSearch(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewSearch)
	}

	if u.form.IsOpen() {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.confirmID != "" {
		if err := u.showConfirm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewConfirm)
	}

	if u.attachActive {
		if err := u.showAttach(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewAttach)
	}

	if !u.inputActive() {
		_, _ = gui.SetCurrentView(u.focus)
	}

	gui.Cursor = u.searchActive || u.form.IsOpen() || u.attachActive

	return nil
}

func computeListWidth(width int) int {
	safeWidth := max(width, 40)
	listWidth := safeWidth * 3 / 5
	if listWidth < 30 {
		listWidth = 30
	}
	if listWidth > safeWidth-20 {
		listWidth = safeWidth / 2
	}
	return listWidth
}

// refresh rebuilds the cards from the session cache.
func (u *UI) refresh() {
	u.cards = render.Cards(u.session.Tasks(), u.now())
	if u.selected >= len(u.cards) {
		u.selected = max(len(u.cards)-1, 0)
	}
}

// background runs work off the main loop and applies done back on it. Without
// a gui (tests) everything runs inline.
func (u *UI) background(work func() error, done func(error)) {
	finish := func(err error) {
		if err != nil && !client.IsNetwork(err) {
			// network failures were already reported as a toast
			u.status = err.Error()
			logging.Logger.Warnf("tui action failed: %v", err)
		}
		u.refresh()
		if done != nil {
			done(err)
		}
	}

	if u.gui == nil {
		finish(work())
		return
	}
	go func() {
		err := work()
		u.gui.Update(func(*gocui.Gui) error {
			finish(err)
			return nil
		})
	}()
}

func (u *UI) dispatch(in client.Intent, done func(error)) {
	u.background(func() error {
		return u.dispatcher.Dispatch(u.ctx, in)
	}, done)
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	stats := render.Stats(u.session.Stats())
	fmt.Fprintf(view, "Total: %s | Completed: %s | Pending: %s | Overdue: %s | Done: %s\n",
		stats.Total, stats.Completed, stats.Pending, stats.Overdue, stats.CompletionRate)

	current := u.filters.Filter()
	search := strings.TrimSpace(current.Search)
	if search == "" {
		search = "type / to search"
	}
	fmt.Fprintf(view, "Search: %s | Status: %s | Priority: %s | Category: %s",
		search, render.Label(current.Status), render.Label(current.Priority), render.Label(current.Category))
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	if u.form.IsOpen() {
		fmt.Fprintln(view, "tab/arrows field | space/left/right cycle option | ctrl+o attach | enter save | esc cancel")
	} else {
		fmt.Fprintln(view, "ctrl+n new | e edit | d delete | space/x toggle | / search | s/p/c filters | a attach | E export | r reload | q quit")
	}
	if u.status != "" {
		fmt.Fprint(view, render.Plain(u.status))
	}
}

func (u *UI) renderTaskList(view *gocui.View, focused bool) {
	view.Clear()
	if len(u.cards) == 0 {
		fmt.Fprint(view, emptyListText)
		return
	}
	for i, card := range u.cards {
		fmt.Fprintln(view, taskLine(card, i == u.selected, focused))
	}
	if focused {
		view.SetCursor(0, min(u.selected, len(u.cards)-1))
	}
}

func (u *UI) renderDetail(view *gocui.View) {
	view.Clear()
	card := u.selectedCard()
	if card == nil {
		fmt.Fprint(view, "No task selected")
		return
	}
	fmt.Fprint(view, strings.Join(render.Details(*card), "\n"))
}

func (u *UI) selectedCard() *render.Card {
	if u.selected >= 0 && u.selected < len(u.cards) {
		return &u.cards[u.selected]
	}
	return nil
}

func (u *UI) onListClick(gui *gocui.Gui, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewTasks)
	if err != nil {
		return nil
	}

	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	row := max(opts.Y-y0-1+oy, 0)
	u.selected = max(min(row, len(u.cards)-1), 0)
	return nil
}

func (u *UI) scrollUp(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollUp(1)
	return nil
}

func (u *UI) scrollDown(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollDown(1)
	return nil
}

func (u *UI) moveDown(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.selected < len(u.cards)-1 {
		u.selected++
	}
	return nil
}

func (u *UI) moveUp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.selected > 0 {
		u.selected--
	}
	return nil
}

func (u *UI) reload(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	u.dispatch(client.Reload{}, nil)
	return nil
}

func (u *UI) toggleCompleted(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	card := u.selectedCard()
	if card == nil {
		return nil
	}
	u.status = ""
	u.dispatch(client.SetCompleted{ID: card.ID, Completed: !card.Completed}, nil)
	return nil
}

func (u *UI) deleteTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	card := u.selectedCard()
	if card == nil {
		return nil
	}
	u.confirmID = card.ID
	return nil
}

func (u *UI) confirmDelete(gui *gocui.Gui, _ *gocui.View) error {
	if u.confirmID == "" {
		return nil
	}
	id := u.confirmID
	u.closeModal(gui, viewConfirm)
	u.dispatch(client.DeleteTask{ID: id}, nil)
	return nil
}

func (u *UI) cancelConfirm(gui *gocui.Gui, _ *gocui.View) error {
	u.closeModal(gui, viewConfirm)
	return nil
}

func (u *UI) cycleStatus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	next := filter.Next(filter.StatusOptions, u.filters.Filter().Status)
	return u.filters.SetStatus(u.ctx, next)
}

func (u *UI) cyclePriority(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	next := filter.Next(filter.PriorityOptions, u.filters.Filter().Priority)
	return u.filters.SetPriority(u.ctx, next)
}

func (u *UI) cycleCategory(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	next := filter.Next(filter.CategoryOptions, u.filters.Filter().Category)
	return u.filters.SetCategory(u.ctx, next)
}

func (u *UI) exportTasks(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	notifier := u.session.Notifier()
	u.background(func() error {
		var buf bytes.Buffer
		name, err := u.session.Export(u.ctx, &buf)
		if err != nil {
			return err
		}
		if name == "" {
			name = fmt.Sprintf("tasks_export_%s.csv", u.now().Format("20060102"))
		}
		path := filepath.Join(u.exportDir, filepath.Base(name))
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		notifier.Push(client.ToastSuccess, "Exported to "+path)
		return nil
	}, nil)
	return nil
}

func (u *UI) startAttach(gui *gocui.Gui, _ *gocui.View) error {
	if u.searchActive || u.attachActive || u.confirmID != "" {
		return nil
	}
	if !u.form.IsOpen() && u.selectedCard() == nil {
		return nil
	}
	u.attachActive = true
	return nil
}

// submitAttach takes a typed or dropped path. With the form open the file
// rides along with the next save, otherwise it goes to the selected task.
func (u *UI) submitAttach(gui *gocui.Gui, view *gocui.View) error {
	value := ""
	if view != nil {
		value = view.Buffer()
	}
	return u.attachPath(gui, value)
}

func (u *UI) attachPath(gui *gocui.Gui, value string) error {
	path := cleanPath(value)
	u.closeModal(gui, viewAttach)
	if path == "" {
		return nil
	}

	notifier := u.session.Notifier()
	if u.form.IsOpen() {
		if err := u.form.Attachment.Drop([]string{path}); err != nil {
			notifier.Push(client.ToastError, err.Error())
		}
		return nil
	}

	card := u.selectedCard()
	if card == nil {
		return nil
	}
	var selector attach.Selector
	if err := selector.Browse(path); err != nil {
		notifier.Push(client.ToastError, err.Error())
		return nil
	}
	u.dispatch(client.AttachFile{ID: card.ID, Path: selector.Path()}, nil)
	return nil
}

func (u *UI) cancelAttach(gui *gocui.Gui, _ *gocui.View) error {
	u.closeModal(gui, viewAttach)
	return nil
}

func (u *UI) startSearch(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.searchActive = true
	return nil
}

// closeSearch hides the prompt. Any pending debounced reload still fires.
func (u *UI) closeSearch(gui *gocui.Gui, _ *gocui.View) error {
	u.closeModal(gui, viewSearch)
	return nil
}

func (u *UI) closeModal(gui *gocui.Gui, name string) {
	switch name {
	case viewSearch:
		u.searchActive = false
	case viewConfirm:
		u.confirmID = ""
	case viewAttach:
		u.attachActive = false
	case viewForm:
		u.form.Close()
		u.formIndex = 0
	}
	if gui == nil {
		return
	}
	_ = gui.DeleteView(name)
	if u.form.IsOpen() {
		_, _ = gui.SetCurrentView(viewForm)
		return
	}
	_, _ = gui.SetCurrentView(u.focus)
}

func (u *UI) inputActive() bool {
	return u.searchActive || u.form.IsOpen() || u.attachActive || u.confirmID != ""
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
	}
}

func cleanPath(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"'`)
	if strings.HasPrefix(value, "file://") {
		value = strings.TrimPrefix(value, "file://")
	}
	return value
}
