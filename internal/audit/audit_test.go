package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("DATABASE_URL", "postgres://u:hunter2@db/chat"); got != "set" {
		t.Errorf("DSN must be redacted, got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("QDRANT_URL", "http://localhost:6334"); got != "http://localhost:6334" {
		t.Errorf("expected URL passthrough, got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.tbrag/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.tbrag/config.yaml" {
			t.Errorf("expected '~/.tbrag/config.yaml', got %q", got)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-live-secret")
	t.Setenv("QDRANT_URL", "http://qdrant:6334")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(log, "serve", "")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("audit line is not JSON: %v", err)
	}
	if rec["OPENAI_API_KEY"] != "set" {
		t.Errorf("OPENAI_API_KEY = %v, want set", rec["OPENAI_API_KEY"])
	}
	if rec["QDRANT_URL"] != "http://qdrant:6334" {
		t.Errorf("QDRANT_URL = %v", rec["QDRANT_URL"])
	}
	if rec["command"] != "serve" || rec["config_file"] != "none" {
		t.Errorf("unexpected command/config attrs: %v", rec)
	}
	if bytes.Contains(buf.Bytes(), []byte("sk-live-secret")) {
		t.Error("secret value leaked into audit log")
	}
}
