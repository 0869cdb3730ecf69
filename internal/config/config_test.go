package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
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
  provider: azure
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: openai
  model: text-embedding-3-small
  dimensions: 1536
qdrant:
  url: https://qdrant.internal:6334
  collection: textbook_content
app:
  max_context_length: 2000
  response_timeout: 15
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"QDRANT_URL", "QDRANT_COLLECTION",
		"MAX_CONTEXT_LENGTH", "RESPONSE_TIMEOUT",
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
		"MODEL_PROVIDER":           "azure",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"EMBEDDING_PROVIDER":       "openai",
		"EMBEDDING_MODEL":          "text-embedding-3-small",
		"EMBEDDING_DIMENSIONS":     "1536",
		"QDRANT_URL":               "https://qdrant.internal:6334",
		"QDRANT_COLLECTION":        "textbook_content",
		"MAX_CONTEXT_LENGTH":       "2000",
		"RESPONSE_TIMEOUT":         "15",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
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

	// Set env var BEFORE loading; it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "openai")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "openai" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "openai", got)
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

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("QDRANT_COLLECTION=from_dotenv\nOPENAI_MODEL=gpt-4o-mini\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QDRANT_COLLECTION", "")
	os.Unsetenv("QDRANT_COLLECTION")
	t.Setenv("OPENAI_MODEL", "already-set")

	if err := LoadDotEnv(slog.Default(), envPath); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if got := os.Getenv("QDRANT_COLLECTION"); got != "from_dotenv" {
		t.Errorf("QDRANT_COLLECTION = %q, want from_dotenv", got)
	}
	if got := os.Getenv("OPENAI_MODEL"); got != "already-set" {
		t.Errorf("OPENAI_MODEL = %q, existing env must win", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	t.Parallel()

	if err := LoadDotEnv(slog.Default(), filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should not be an error, got %v", err)
	}
}

func TestAppFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantDebug   bool
		wantMax     int
		wantTimeout time.Duration
	}{
		{
			name:        "defaults",
			env:         map[string]string{"DEBUG": "", "MAX_CONTEXT_LENGTH": "", "RESPONSE_TIMEOUT": ""},
			wantMax:     4000,
			wantTimeout: 30 * time.Second,
		},
		{
			name:        "explicit",
			env:         map[string]string{"DEBUG": "true", "MAX_CONTEXT_LENGTH": "1200", "RESPONSE_TIMEOUT": "5"},
			wantDebug:   true,
			wantMax:     1200,
			wantTimeout: 5 * time.Second,
		},
		{
			name:        "malformed falls back",
			env:         map[string]string{"DEBUG": "nope", "MAX_CONTEXT_LENGTH": "lots", "RESPONSE_TIMEOUT": "abc"},
			wantMax:     4000,
			wantTimeout: 30 * time.Second,
		},
		{
			name:        "zero context length falls back",
			env:         map[string]string{"MAX_CONTEXT_LENGTH": "0", "RESPONSE_TIMEOUT": "-5"},
			wantMax:     4000,
			wantTimeout: 30 * time.Second,
		},
		{
			name:        "negative context length disables trimming",
			env:         map[string]string{"MAX_CONTEXT_LENGTH": "-1"},
			wantMax:     -1,
			wantTimeout: 30 * time.Second,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			got := AppFromEnv()
			if got.Debug != tc.wantDebug {
				t.Errorf("Debug = %v, want %v", got.Debug, tc.wantDebug)
			}
			if got.MaxContextLength != tc.wantMax {
				t.Errorf("MaxContextLength = %d, want %d", got.MaxContextLength, tc.wantMax)
			}
			if got.ResponseTimeout != tc.wantTimeout {
				t.Errorf("ResponseTimeout = %v, want %v", got.ResponseTimeout, tc.wantTimeout)
			}
		})
	}
}

func TestDatabaseURL_PostgresAlias(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_URL", "postgres://u:p@db:5432/chat")

	if got := DatabaseURL(); got != "postgres://u:p@db:5432/chat" {
		t.Errorf("DatabaseURL() = %q", got)
	}

	t.Setenv("DATABASE_URL", "/tmp/sessions.db")
	if got := DatabaseURL(); got != "/tmp/sessions.db" {
		t.Errorf("DATABASE_URL must win over POSTGRES_URL, got %q", got)
	}
}
