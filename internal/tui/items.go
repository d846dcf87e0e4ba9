package tui

import (
	"fmt"

	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/render"
)

const emptyListText = "No tasks found. ctrl+n to create one."

func taskLine(card render.Card, selected bool, focused bool) string {
	prefix := "  "
	switch {
	case selected && !focused:
		prefix = "> "
	case card.Overdue && !card.Completed:
		prefix = "! "
	}
	return prefix + render.Summary(card)
}

func toastLine(toast client.Toast) string {
	marker := "i"
	switch toast.Kind {
	case client.ToastSuccess:
		marker = "✓"
	case client.ToastError:
		marker = "✗"
	case client.ToastWarning:
		marker = "!"
	}
	return fmt.Sprintf("%s %s", marker, render.Plain(toast.Message))
}

func overlayRect(maxX, maxY, width, height int) (int, int, int, int) {
	x0 := max((maxX-width)/2, 0)
	y0 := max((maxY-height)/2, 0)
	return x0, y0, x0 + width, y0 + height
}
