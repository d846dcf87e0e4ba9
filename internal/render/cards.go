package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/dustin/go-humanize"
)

type Card struct {
	ID            string
	Title         string
	Description   string
	Priority      string
	PriorityLabel string
	CategoryLabel string
	HasDue        bool
	DueLabel      string
	Overdue       bool
	Tags          []string
	FileURL       string
	Completed     bool
	CreatedLabel  string
}

type StatsView struct {
	Total          string
	Completed      string
	Pending        string
	Overdue        string
	CompletionRate string
}

func NewCard(task model.Task, now time.Time) Card {
	card := Card{
		ID:            task.ID,
		Title:         task.Title,
		Description:   task.Description,
		Priority:      task.Priority,
		PriorityLabel: Label(task.Priority),
		CategoryLabel: Label(task.Category),
		Overdue:       IsOverdue(task, now),
		FileURL:       task.FileURL,
		Completed:     bool(task.Completed),
	}
	if !task.DueDate.IsZero() {
		card.HasDue = true
		card.DueLabel = RelativeDate(task.DueDate.Time, now)
	}
	if !task.CreatedAt.IsZero() {
		card.CreatedLabel = RelativeDate(task.CreatedAt.Time, now)
	}
	for _, tag := range task.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			card.Tags = append(card.Tags, trimmed)
		}
	}
	return card
}

// Cards returns nil for an empty list so callers can show the empty state.
func Cards(tasks []model.Task, now time.Time) []Card {
	if len(tasks) == 0 {
		return nil
	}
	cards := make([]Card, 0, len(tasks))
	for _, task := range tasks {
		cards = append(cards, NewCard(task, now))
	}
	return cards
}

func Stats(stats model.Stats) StatsView {
	return StatsView{
		Total:          humanize.Comma(int64(stats.Total)),
		Completed:      humanize.Comma(int64(stats.Completed)),
		Pending:        humanize.Comma(int64(stats.Pending)),
		Overdue:        humanize.Comma(int64(stats.Overdue)),
		CompletionRate: strconv.FormatFloat(stats.CompletionRate, 'f', -1, 64) + "%",
	}
}

// Summary is the one-line terminal form of a card.
func Summary(card Card) string {
	check := "[ ]"
	if card.Completed {
		check = "[x]"
	}
	parts := []string{fmt.Sprintf("%s %s", check, Plain(card.Title)), card.PriorityLabel, Plain(card.CategoryLabel)}
	if card.HasDue {
		due := card.DueLabel
		if card.Overdue {
			due += " (overdue)"
		}
		parts = append(parts, due)
	}
	if len(card.Tags) > 0 {
		parts = append(parts, hashTags(card.Tags))
	}
	if card.FileURL != "" {
		parts = append(parts, "+file")
	}
	return strings.Join(parts, " | ")
}

// Details is the multi-line terminal form of a card.
func Details(card Card) []string {
	status := "Mark as complete"
	if card.Completed {
		status = "Completed"
	}
	due := "none"
	if card.HasDue {
		due = card.DueLabel
		if card.Overdue {
			due += " (overdue)"
		}
	}
	tags := "none"
	if len(card.Tags) > 0 {
		tags = hashTags(card.Tags)
	}

	lines := []string{
		Plain(card.Title),
		fmt.Sprintf("Priority: %s", card.PriorityLabel),
		fmt.Sprintf("Category: %s", Plain(card.CategoryLabel)),
		fmt.Sprintf("Due: %s", due),
		fmt.Sprintf("Tags: %s", tags),
	}
	if card.FileURL != "" {
		lines = append(lines, fmt.Sprintf("Attachment: %s", Plain(card.FileURL)))
	}
	lines = append(lines,
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Created: %s", card.CreatedLabel),
	)
	if card.Description != "" {
		lines = append(lines, "", Plain(card.Description))
	}
	return lines
}

func hashTags(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		parts = append(parts, "#"+Plain(tag))
	}
	return strings.Join(parts, " ")
}
