package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a task id matches no row.
var ErrNotFound = errors.New("task not found")

var ErrTitleRequired = errors.New("title is required")

const createdLayout = "2006-01-02T15:04:05.000000"

const taskColumns = "id, title, description, priority, category, due_date, completed, created_at, file_url, tags"

const orderByPriority = ` ORDER BY
	CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END,
	created_at DESC, rowid DESC`

type Store struct {
	DB  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now}
}

func (s *Store) CreateTask(ctx context.Context, input model.TaskInput) (model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Task{}, ErrTitleRequired
	}

	tags, err := encodeTags(input.Tags)
	if err != nil {
		return model.Task{}, err
	}

	id := uuid.NewString()
	_, err = s.DB.ExecContext(ctx,
		"INSERT INTO tasks (id, title, description, priority, category, due_date, completed, created_at, file_url, tags) VALUES (?, ?, ?, ?, ?, ?, 0, ?, '', ?)",
		id,
		title,
		input.Description,
		normalizePriority(input.Priority),
		normalizeCategory(input.Category),
		input.DueDate.String(),
		s.now().Format(createdLayout),
		tags,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}

	return s.GetTask(ctx, id)
}

func (s *Store) UpdateTask(ctx context.Context, taskID string, input model.TaskInput) (model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Task{}, ErrTitleRequired
	}

	tags, err := encodeTags(input.Tags)
	if err != nil {
		return model.Task{}, err
	}

	completed := 0
	if input.Completed {
		completed = 1
	}

	result, err := s.DB.ExecContext(ctx,
		"UPDATE tasks SET title = ?, description = ?, priority = ?, category = ?, due_date = ?, completed = ?, tags = ? WHERE id = ?",
		title,
		input.Description,
		normalizePriority(input.Priority),
		normalizeCategory(input.Category),
		input.DueDate.String(),
		completed,
		tags,
		taskID,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := expectRow(result); err != nil {
		return model.Task{}, err
	}

	return s.GetTask(ctx, taskID)
}

func (s *Store) SetFileURL(ctx context.Context, taskID, fileURL string) error {
	result, err := s.DB.ExecContext(ctx, "UPDATE tasks SET file_url = ? WHERE id = ?", fileURL, taskID)
	if err != nil {
		return fmt.Errorf("set file url: %w", err)
	}
	return expectRow(result)
}

func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	result, err := s.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectRow(result)
}

func (s *Store) GetTask(ctx context.Context, taskID string) (model.Task, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	return task, err
}

func (s *Store) ListTasks(ctx context.Context, filter model.Filter) ([]model.Task, error) {
	var (
		where  []string
		params []any
	)

	switch strings.TrimSpace(filter.Status) {
	case model.StatusCompleted:
		where = append(where, "completed = 1")
	case model.StatusPending:
		where = append(where, "completed = 0")
	}

	if priority := strings.TrimSpace(filter.Priority); priority != "" && priority != model.FilterAll {
		where = append(where, "priority = ?")
		params = append(params, priority)
	}

	if category := strings.TrimSpace(filter.Category); category != "" && category != model.FilterAll {
		where = append(where, "category = ?")
		params = append(params, category)
	}

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		params = append(params, pattern, pattern)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderByPriority

	return s.queryTasks(ctx, query, params...)
}

// ExportTasks returns every task, newest first.
func (s *Store) ExportTasks(ctx context.Context) ([]model.Task, error) {
	return s.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC, rowid DESC")
}

func (s *Store) Stats(ctx context.Context) (model.Stats, error) {
	tasks, err := s.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks")
	if err != nil {
		return model.Stats{}, err
	}

	today := s.now().Format(model.LayoutDate)
	stats := model.Stats{Total: len(tasks)}
	for _, task := range tasks {
		if task.Completed {
			stats.Completed++
			continue
		}
		if !task.DueDate.IsZero() && task.DueDate.Time.In(time.Local).Format(model.LayoutDate) < today {
			stats.Overdue++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	if stats.Total > 0 {
		rate := float64(stats.Completed) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*10) / 10
	}
	return stats, nil
}

func (s *Store) queryTasks(ctx context.Context, query string, params ...any) ([]model.Task, error) {
	rows, err := s.DB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	result := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (model.Task, error) {
	var (
		task      model.Task
		dueDate   string
		createdAt string
		tags      string
		completed int64
	)
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &task.Category, &dueDate, &completed, &createdAt, &task.FileURL, &tags); err != nil {
		return model.Task{}, err
	}

	var err error
	if task.DueDate, err = model.ParseTime(dueDate); err != nil {
		return model.Task{}, fmt.Errorf("task %s due_date: %w", task.ID, err)
	}
	if task.CreatedAt, err = model.ParseTime(createdAt); err != nil {
		return model.Task{}, fmt.Errorf("task %s created_at: %w", task.ID, err)
	}
	parsedTags, err := model.ParseTags(tags)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %s tags: %w", task.ID, err)
	}
	task.Tags = parsedTags
	task.Completed = completed != 0
	return task, nil
}

func expectRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	payload, err := json.Marshal(normalizeTags(tags))
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(payload), nil
}

func normalizePriority(priority string) string {
	value := strings.TrimSpace(strings.ToLower(priority))
	for _, known := range model.Priorities {
		if value == known {
			return value
		}
	}
	return model.PriorityMedium
}

func normalizeCategory(category string) string {
	value := strings.TrimSpace(strings.ToLower(category))
	if value == "" {
		return model.CategoryGeneral
	}
	return value
}

// normalizeTags keeps tags in the order and case they were sent, dropping
// blank entries only.
func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
