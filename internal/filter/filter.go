package filter

import (
	"context"
	"sync"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/model"
)

// SearchDelay is the quiet period before a search edit reloads.
const SearchDelay = 300 * time.Millisecond

type Timer interface {
	Stop() bool
}

// Debouncer runs only the last of a burst of calls, once the burst has been
// quiet for the delay.
type Debouncer struct {
	delay time.Duration
	after func(time.Duration, func()) Timer

	mu         sync.Mutex
	timer      Timer
	generation int
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay: delay,
		after: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	current := d.generation
	d.timer = d.after(d.delay, func() {
		d.mu.Lock()
		stale := current != d.generation
		if !stale {
			d.timer = nil
		}
		d.mu.Unlock()
		if !stale {
			fn()
		}
	})
}

// Stop drops any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
}

// Dispatcher receives SetFilter intents.
type Dispatcher interface {
	Dispatch(ctx context.Context, in client.Intent) error
}

// Controller owns the four filter inputs. Select changes reload at once,
// search edits go through the debouncer.
type Controller struct {
	dispatch Dispatcher
	search   *Debouncer
	// run hands the debounced reload to the front end's event loop.
	run func(func())

	mu     sync.Mutex
	filter model.Filter
}

func NewController(dispatch Dispatcher, initial model.Filter) *Controller {
	return &Controller{
		dispatch: dispatch,
		search:   NewDebouncer(SearchDelay),
		run:      func(f func()) { f() },
		filter:   initial,
	}
}

// OnLoop sets how debounced reloads get back onto the UI loop.
func (c *Controller) OnLoop(run func(func())) {
	c.run = run
}

func (c *Controller) Filter() model.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Controller) SetStatus(ctx context.Context, status string) error {
	return c.apply(ctx, func(f *model.Filter) { f.Status = status })
}

func (c *Controller) SetPriority(ctx context.Context, priority string) error {
	return c.apply(ctx, func(f *model.Filter) { f.Priority = priority })
}

func (c *Controller) SetCategory(ctx context.Context, category string) error {
	return c.apply(ctx, func(f *model.Filter) { f.Category = category })
}

// SetSearch records the search text and schedules a reload. The reload uses
// whatever the filter holds when it fires.
func (c *Controller) SetSearch(ctx context.Context, search string) {
	c.mu.Lock()
	c.filter.Search = search
	c.mu.Unlock()

	c.search.Trigger(func() {
		c.run(func() {
			if err := c.reload(ctx); err != nil {
				logging.Logger.Warnf("search reload failed: %v", err)
			}
		})
	})
}

func (c *Controller) Stop() {
	c.search.Stop()
}

func (c *Controller) apply(ctx context.Context, change func(*model.Filter)) error {
	c.mu.Lock()
	change(&c.filter)
	c.mu.Unlock()
	return c.reload(ctx)
}

func (c *Controller) reload(ctx context.Context) error {
	return c.dispatch.Dispatch(ctx, client.SetFilter{Filter: c.Filter()})
}

// Next returns the option after current, wrapping around. Unknown values
// restart at the first option.
func Next(options []string, current string) string {
	if len(options) == 0 {
		return current
	}
	for i, option := range options {
		if option == current {
			return options[(i+1)%len(options)]
		}
	}
	return options[0]
}

// StatusOptions and friends are the select choices, "all" first.
var (
	StatusOptions   = []string{model.FilterAll, model.StatusPending, model.StatusCompleted}
	PriorityOptions = append([]string{model.FilterAll}, model.Priorities...)
	CategoryOptions = append([]string{model.FilterAll}, model.Categories...)
)
