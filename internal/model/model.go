package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	CategoryGeneral = "general"

	FilterAll       = "all"
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

var (
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
	Categories = []string{CategoryGeneral, "work", "personal", "shopping", "health"}
)

type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	DueDate     Time   `json:"due_date"`
	Tags        Tags   `json:"tags"`
	Completed   Bool   `json:"completed"`
	FileURL     string `json:"file_url"`
	CreatedAt   Time   `json:"created_at"`
}

// TaskInput holds the editable fields sent on create and update.
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	DueDate     Time     `json:"due_date"`
	Tags        []string `json:"tags"`
	Completed   bool     `json:"completed"`
}

func (t Task) Input() TaskInput {
	tags := make([]string, len(t.Tags))
	copy(tags, t.Tags)
	return TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Category:    t.Category,
		DueDate:     t.DueDate,
		Tags:        tags,
		Completed:   bool(t.Completed),
	}
}

type Stats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	Overdue        int     `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}

type Filter struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Category string `json:"category"`
	Search   string `json:"search"`
}

func DefaultFilter() Filter {
	return Filter{Status: FilterAll, Priority: FilterAll, Category: FilterAll}
}

// Values encodes the filter as the query string of GET /api/tasks. Empty
// selections are sent as "all".
func (f Filter) Values() url.Values {
	values := url.Values{}
	values.Set("status", orAll(f.Status))
	values.Set("priority", orAll(f.Priority))
	values.Set("category", orAll(f.Category))
	values.Set("search", f.Search)
	return values
}

func FilterFromValues(values url.Values) Filter {
	return Filter{
		Status:   orAll(strings.TrimSpace(values.Get("status"))),
		Priority: orAll(strings.TrimSpace(values.Get("priority"))),
		Category: orAll(strings.TrimSpace(values.Get("category"))),
		Search:   values.Get("search"),
	}
}

func orAll(value string) string {
	if value == "" {
		return FilterAll
	}
	return value
}

// Result is the acknowledgement body returned by mutating endpoints.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	FileURL string `json:"file_url,omitempty"`
}

// Tags decodes from a JSON array or from a JSON-encoded array string, the
// latter being how the backend stores them.
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := ParseTags(raw)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse tags: %w", err)
	}
	*t = list
	return nil
}

func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// ParseTags reads the stored representation of a tag list.
func ParseTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("parse tags: %w", err)
	}
	return list, nil
}

// Bool accepts true/false as well as the 0/1 integers SQLite hands back.
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null", `""`:
		*b = false
	default:
		return fmt.Errorf("invalid bool %s", data)
	}
	return nil
}

const (
	// LayoutMinute is the layout of a datetime-local input value.
	LayoutMinute = "2006-01-02T15:04"
	LayoutSecond = "2006-01-02T15:04:05"
	LayoutDate   = "2006-01-02"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	LayoutSecond,
	LayoutMinute,
	"2006-01-02 15:04:05",
	LayoutDate,
}

// Time is a wall-clock timestamp without zone on the wire. The zero value
// encodes as an empty string, meaning "unset".
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{Time: t}
}

func ParseTime(value string) (Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Time{}, nil
	}
	for _, layout := range timeLayouts {
		var (
			parsed time.Time
			err    error
		)
		if layout == time.RFC3339Nano {
			parsed, err = time.Parse(layout, value)
		} else {
			parsed, err = time.ParseInLocation(layout, value, time.Local)
		}
		if err == nil {
			return Time{Time: parsed}, nil
		}
	}
	return Time{}, fmt.Errorf("invalid timestamp %q", value)
}

func (t Time) String() string {
	if t.IsZero() {
		return ""
	}
	local := t.Time.In(time.Local)
	if local.Nanosecond() != 0 {
		return local.Format("2006-01-02T15:04:05.000000")
	}
	if local.Second() != 0 {
		return local.Format(LayoutSecond)
	}
	return local.Format(LayoutMinute)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	parsed, err := ParseTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Time) Equal(other Time) bool {
	return t.Time.Equal(other.Time)
}
