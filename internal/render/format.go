package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Joseda-hg/taskdeck/internal/model"
)

// LocaleDateLayout is used once a date is more than a week away.
const LocaleDateLayout = "1/2/2006"

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// RelativeDate labels date against now in whole days, rounding the
// difference up.
func RelativeDate(date, now time.Time) string {
	diffDays := int(math.Ceil(date.Sub(now).Hours() / 24))

	switch {
	case diffDays == 0:
		return "Today"
	case diffDays == 1:
		return "Tomorrow"
	case diffDays == -1:
		return "Yesterday"
	case diffDays > 0 && diffDays <= 7:
		return fmt.Sprintf("In %d days", diffDays)
	case diffDays < 0 && diffDays >= -7:
		return fmt.Sprintf("%d days ago", -diffDays)
	}
	return date.In(time.Local).Format(LocaleDateLayout)
}

// FileSize formats a byte count with base-1024 units and at most two
// decimals.
func FileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[unit]
}

func IsOverdue(task model.Task, now time.Time) bool {
	return !task.DueDate.IsZero() && task.DueDate.Before(now) && !bool(task.Completed)
}

// Label capitalises the first letter of a priority or category.
func Label(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Plain strips control characters so user text cannot inject terminal
// escape sequences or break a line-oriented view.
func Plain(value string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
