package render

import (
	"embed"
	"html/template"
	"io"

	"github.com/Joseda-hg/taskdeck/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var boardTemplate = template.Must(template.New("board.tmpl").Funcs(template.FuncMap{
	"label": Label,
}).ParseFS(templateFS, "templates/board.tmpl"))

type Board struct {
	Stats      StatsView
	Filter     model.Filter
	Cards      []Card
	Priorities []string
	Categories []string
	Form       *FormView
	Toasts     []ToastView
}

type FormView struct {
	Heading     string
	Action      string
	Title       string
	Description string
	Priority    string
	Category    string
	DueDate     string
	Tags        string
	Attachment  []string
}

type ToastView struct {
	Kind    string
	Message string
}

// HTML writes the full board page. Every user supplied value goes through
// html/template's contextual escaping.
func HTML(w io.Writer, board Board) error {
	if board.Priorities == nil {
		board.Priorities = model.Priorities
	}
	if board.Categories == nil {
		board.Categories = model.Categories
	}
	return boardTemplate.Execute(w, board)
}
