package attach

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Joseda-hg/taskdeck/internal/render"
)

// File is the one attachment a form can carry.
type File struct {
	Path string
	Name string
	Size int64
}

// Selector tracks drag state and the selected file for a task form.
type Selector struct {
	mu       sync.Mutex
	dragOver bool
	selected *File
}

func (s *Selector) DragOver() {
	s.mu.Lock()
	s.dragOver = true
	s.mu.Unlock()
}

func (s *Selector) DragLeave() {
	s.mu.Lock()
	s.dragOver = false
	s.mu.Unlock()
}

func (s *Selector) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragOver
}

// Drop keeps the first dropped path. An empty drop only clears the drag flag.
func (s *Selector) Drop(paths []string) error {
	s.DragLeave()
	if len(paths) == 0 {
		return nil
	}
	return s.Browse(paths[0])
}

// Browse selects the file at path, replacing any previous selection.
func (s *Selector) Browse(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("select attachment: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("select attachment: %s is a directory", path)
	}

	s.mu.Lock()
	s.selected = &File{Path: path, Name: filepath.Base(path), Size: info.Size()}
	s.mu.Unlock()
	return nil
}

func (s *Selector) Selected() (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return File{}, false
	}
	return *s.selected, true
}

// Path returns the selected file path or "".
func (s *Selector) Path() string {
	file, _ := s.Selected()
	return file.Path
}

// Display returns the lines shown in the upload area, or nil when empty.
func (s *Selector) Display() []string {
	file, ok := s.Selected()
	if !ok {
		return nil
	}
	return []string{
		"Selected: " + file.Name,
		"Size: " + render.FileSize(file.Size),
	}
}

func (s *Selector) Reset() {
	s.mu.Lock()
	s.selected = nil
	s.dragOver = false
	s.mu.Unlock()
}
