package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Joseda-hg/taskdeck/internal/config"
)

func TestNewBackendOwnsConnection(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "data", "taskdeck.db")
	cfg.AttachmentDir = filepath.Join(dir, "uploads")

	backend, conn, err := newBackend(cfg)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	rec := httptest.NewRecorder()
	backend.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if info, err := os.Stat(cfg.AttachmentDir); err != nil || !info.IsDir() {
		t.Fatalf("expected attachment dir created: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := conn.Ping(); err == nil {
		t.Fatalf("expected closed connection to refuse ping")
	}
}
