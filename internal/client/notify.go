package client

import (
	"sync"
	"time"
)

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastWarning ToastKind = "warning"
	ToastInfo    ToastKind = "info"
)

// ToastTTL is how long a notification stays visible.
const ToastTTL = 3 * time.Second

type Toast struct {
	ID      int
	Kind    ToastKind
	Message string
}

// Notifier keeps the transient notifications. Each toast removes itself
// after the TTL unless dismissed earlier.
type Notifier struct {
	mu       sync.Mutex
	toasts   []Toast
	nextID   int
	ttl      time.Duration
	schedule func(time.Duration, func())
	onChange func()
}

func NewNotifier() *Notifier {
	return &Notifier{
		ttl: ToastTTL,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// OnChange registers a callback run after the toast list changes. It may be
// called from a timer goroutine.
func (n *Notifier) OnChange(fn func()) {
	n.mu.Lock()
	n.onChange = fn
	n.mu.Unlock()
}

func (n *Notifier) Push(kind ToastKind, message string) Toast {
	n.mu.Lock()
	n.nextID++
	toast := Toast{ID: n.nextID, Kind: kind, Message: message}
	n.toasts = append(n.toasts, toast)
	onChange := n.onChange
	n.mu.Unlock()

	n.schedule(n.ttl, func() { n.Dismiss(toast.ID) })
	if onChange != nil {
		onChange()
	}
	return toast
}

func (n *Notifier) Dismiss(id int) {
	n.mu.Lock()
	removed := false
	for i, toast := range n.toasts {
		if toast.ID == id {
			n.toasts = append(n.toasts[:i], n.toasts[i+1:]...)
			removed = true
			break
		}
	}
	onChange := n.onChange
	n.mu.Unlock()

	if removed && onChange != nil {
		onChange()
	}
}

func (n *Notifier) Active() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]Toast, len(n.toasts))
	copy(result, n.toasts)
	return result
}

// Indicator is the global loading flag. Show is idempotent and Hide is
// unconditional, so overlapping calls never leave it stuck on.
type Indicator struct {
	mu       sync.Mutex
	active   bool
	onChange func(bool)
}

func (i *Indicator) OnChange(fn func(bool)) {
	i.mu.Lock()
	i.onChange = fn
	i.mu.Unlock()
}

func (i *Indicator) Show() {
	i.mu.Lock()
	if i.active {
		i.mu.Unlock()
		return
	}
	i.active = true
	onChange := i.onChange
	i.mu.Unlock()

	if onChange != nil {
		onChange(true)
	}
}

func (i *Indicator) Hide() {
	i.mu.Lock()
	i.active = false
	onChange := i.onChange
	i.mu.Unlock()

	if onChange != nil {
		onChange(false)
	}
}

func (i *Indicator) Active() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.active
}
