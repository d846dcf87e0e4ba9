package attach

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDropKeepsFirstFile(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "report.pdf", 1536)
	second := writeFile(t, dir, "photo.png", 10)

	var selector Selector
	selector.DragOver()
	if !selector.Dragging() {
		t.Fatalf("expected drag-over state")
	}

	if err := selector.Drop([]string{first, second}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if selector.Dragging() {
		t.Fatalf("expected drop to clear drag-over state")
	}

	display := selector.Display()
	if strings.Join(display, "|") != "Selected: report.pdf|Size: 1.5 KB" {
		t.Fatalf("unexpected display %v", display)
	}
	if selector.Path() != first {
		t.Fatalf("expected %s, got %s", first, selector.Path())
	}
}

func TestBrowseReplacesSelection(t *testing.T) {
	dir := t.TempDir()
	var selector Selector

	if err := selector.Browse(writeFile(t, dir, "a.txt", 0)); err != nil {
		t.Fatalf("browse: %v", err)
	}
	if err := selector.Browse(writeFile(t, dir, "b.txt", 1048576)); err != nil {
		t.Fatalf("browse: %v", err)
	}
	file, ok := selector.Selected()
	if !ok || file.Name != "b.txt" {
		t.Fatalf("expected b.txt selected, got %+v", file)
	}
	if selector.Display()[1] != "Size: 1 MB" {
		t.Fatalf("unexpected size line %q", selector.Display()[1])
	}
}

func TestBrowseRejectsMissingAndDirectories(t *testing.T) {
	dir := t.TempDir()
	var selector Selector

	if err := selector.Browse(filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if err := selector.Browse(dir); err == nil {
		t.Fatalf("expected error for directory")
	}
	if _, ok := selector.Selected(); ok {
		t.Fatalf("expected no selection")
	}
}

func TestResetClearsState(t *testing.T) {
	var selector Selector
	if err := selector.Browse(writeFile(t, t.TempDir(), "x.bin", 3)); err != nil {
		t.Fatalf("browse: %v", err)
	}
	selector.DragOver()
	selector.Reset()

	if selector.Display() != nil || selector.Dragging() || selector.Path() != "" {
		t.Fatalf("expected empty selector after reset")
	}
	if err := selector.Drop(nil); err != nil {
		t.Fatalf("empty drop: %v", err)
	}
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
