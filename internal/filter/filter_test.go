package filter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/model"
)

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	wasActive := !f.stopped
	f.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) after(_ time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

// fire runs every timer that was not stopped, like the runtime would after
// the delay elapses.
func (c *fakeClock) fire() {
	c.mu.Lock()
	timers := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, timer := range timers {
		if !timer.stopped {
			timer.stopped = true
			timer.fn()
		}
	}
}

type recorder struct {
	filters []model.Filter
}

func (r *recorder) Dispatch(ctx context.Context, in client.Intent) error {
	if set, ok := in.(client.SetFilter); ok {
		r.filters = append(r.filters, set.Filter)
	}
	return nil
}

func TestSearchBurstReloadsOnce(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{}
	controller := NewController(rec, model.DefaultFilter())
	controller.search.after = clock.after

	for _, text := range []string{"m", "mi", "mil", "milk", "milk "} {
		controller.SetSearch(context.Background(), text)
	}
	if len(rec.filters) != 0 {
		t.Fatalf("expected no reload before the delay, got %d", len(rec.filters))
	}

	clock.fire()
	if len(rec.filters) != 1 {
		t.Fatalf("expected exactly one reload, got %d", len(rec.filters))
	}
	if rec.filters[0].Search != "milk " {
		t.Fatalf("expected last search value, got %q", rec.filters[0].Search)
	}
}

func TestStaleTimerDoesNotFire(t *testing.T) {
	clock := &fakeClock{}
	debouncer := NewDebouncer(time.Second)
	debouncer.after = clock.after

	calls := 0
	debouncer.Trigger(func() { calls++ })
	first := clock.timers[0]
	debouncer.Trigger(func() { calls += 10 })

	// A timer whose Stop lost the race still runs its callback.
	first.fn()
	if calls != 0 {
		t.Fatalf("expected stale callback to be ignored, got %d", calls)
	}
	clock.fire()
	if calls != 10 {
		t.Fatalf("expected only the last callback, got %d", calls)
	}
}

func TestSelectChangesReloadImmediately(t *testing.T) {
	rec := &recorder{}
	controller := NewController(rec, model.DefaultFilter())
	ctx := context.Background()

	if err := controller.SetStatus(ctx, model.StatusPending); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := controller.SetPriority(ctx, model.PriorityHigh); err != nil {
		t.Fatalf("priority: %v", err)
	}
	if err := controller.SetCategory(ctx, "work"); err != nil {
		t.Fatalf("category: %v", err)
	}

	if len(rec.filters) != 3 {
		t.Fatalf("expected three reloads, got %d", len(rec.filters))
	}
	want := model.Filter{Status: model.StatusPending, Priority: model.PriorityHigh, Category: "work"}
	if rec.filters[2] != want {
		t.Fatalf("expected full filter set %+v, got %+v", want, rec.filters[2])
	}
}

func TestDebouncedReloadUsesFilterAtFireTime(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{}
	controller := NewController(rec, model.DefaultFilter())
	controller.search.after = clock.after

	controller.SetSearch(context.Background(), "rent")
	if err := controller.SetStatus(context.Background(), model.StatusCompleted); err != nil {
		t.Fatalf("status: %v", err)
	}
	clock.fire()

	last := rec.filters[len(rec.filters)-1]
	if last.Search != "rent" || last.Status != model.StatusCompleted {
		t.Fatalf("unexpected filter %+v", last)
	}
}

func TestStopCancelsPendingSearch(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{}
	controller := NewController(rec, model.DefaultFilter())
	controller.search.after = clock.after

	controller.SetSearch(context.Background(), "x")
	controller.Stop()
	clock.fire()
	if len(rec.filters) != 0 {
		t.Fatalf("expected no reload after stop")
	}
}

func TestNext(t *testing.T) {
	if got := Next(StatusOptions, model.FilterAll); got != model.StatusPending {
		t.Fatalf("expected pending, got %q", got)
	}
	if got := Next(StatusOptions, model.StatusCompleted); got != model.FilterAll {
		t.Fatalf("expected wrap to all, got %q", got)
	}
	if got := Next(CategoryOptions, "unknown"); got != model.FilterAll {
		t.Fatalf("expected reset to all, got %q", got)
	}
}
