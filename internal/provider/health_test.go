package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewHealthCheck_OpenAICompatible(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth = r.URL.Path, r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(srv.Close)

	hc := NewHealthCheck(&Config{
		Backend: BackendOpenAI,
		OpenAI:  ProviderOpenAI{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"},
	})
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if gotPath != "/v1/models" || gotAuth != "Bearer sk-test" {
		t.Errorf("request path=%q auth=%q", gotPath, gotAuth)
	}
}

func TestNewHealthCheck_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	hc := NewHealthCheck(&Config{
		Backend:     BackendAzure,
		AzureOpenAI: ProviderAzureOpenAI{Endpoint: srv.URL, APIKey: "k", APIVersion: "2024-10-21"},
	})
	err := hc.HealthCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if strings.Contains(err.Error(), "api-version") {
		t.Errorf("error leaks query string: %v", err)
	}
}

func TestNewHealthCheck_Ollama(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)

	hc := NewHealthCheck(&Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: srv.URL}})
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestNewHealthCheck_ArkHasNone(t *testing.T) {
	t.Parallel()

	if hc := NewHealthCheck(&Config{Backend: BackendArk}); hc != nil {
		t.Errorf("expected nil health check for ark, got %T", hc)
	}
}
