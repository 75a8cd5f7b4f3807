package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: gemini
  max_tokens: 8192
  temperature: 0.3
  gemini:
    model: gemini-2.0-flash
embedding:
  provider: ollama
  model: all-minilm
  dimensions: 384
qdrant:
  host: qdrant.internal
  port: 6334
  collection: my-docs
storage:
  db_path: /var/lib/docqa/chunks.db
ingestion:
  chunk_size: 3
  workers: 4
ocr:
  endpoint: http://localhost:8501/ocr
server:
  host: 0.0.0.0
  port: 9090
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"GEMINI_MODEL_NAME",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"DOCQA_DB_PATH", "CHUNK_SIZE", "INGEST_WORKERS", "OCR_ENDPOINT",
		"DOCQA_HOST", "DOCQA_PORT",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":       "gemini",
		"MODEL_MAX_TOKENS":     "8192",
		"GEMINI_MODEL_NAME":    "gemini-2.0-flash",
		"EMBEDDING_PROVIDER":   "ollama",
		"EMBEDDING_MODEL":      "all-minilm",
		"EMBEDDING_DIMENSIONS": "384",
		"QDRANT_HOST":          "qdrant.internal",
		"QDRANT_PORT":          "6334",
		"QDRANT_COLLECTION":    "my-docs",
		"DOCQA_DB_PATH":        "/var/lib/docqa/chunks.db",
		"CHUNK_SIZE":           "3",
		"INGEST_WORKERS":       "4",
		"OCR_ENDPOINT":         "http://localhost:8501/ocr",
		"DOCQA_HOST":           "0.0.0.0",
		"DOCQA_PORT":           "9090",
		"LOG_LEVEL":            "debug",
		"LOG_FORMAT":           "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "gemini")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "gemini" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "gemini", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
