package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HealthCheckConfig is implemented by backends that expose a cheap
// reachability endpoint, so readiness probes do not spend tokens.
type HealthCheckConfig interface {
	HealthCheck(ctx context.Context) error
}

// httpHealthCheck issues a GET against a model-listing endpoint.
type httpHealthCheck struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// HealthCheck returns nil when the endpoint answers with a 2xx status.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", redactQuery(h.url), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: unexpected status %d", redactQuery(h.url), resp.StatusCode)
	}
	return nil
}

// NewHealthCheck returns a token-free probe for the configured backend, or
// nil when the backend has no suitable endpoint (Ark).
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 10 * time.Second}

	switch cfg.Backend {
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &httpHealthCheck{
			url:     strings.TrimRight(base, "/") + "/models",
			headers: map[string]string{"Authorization": "Bearer " + cfg.OpenAI.APIKey},
			client:  client,
		}
	case BackendAzure:
		return &httpHealthCheck{
			url:     strings.TrimRight(cfg.AzureOpenAI.Endpoint, "/") + "/openai/models?api-version=" + cfg.AzureOpenAI.APIVersion,
			headers: map[string]string{"api-key": cfg.AzureOpenAI.APIKey},
			client:  client,
		}
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			client: client,
		}
	case BackendGemini:
		return &httpHealthCheck{
			url:     "https://generativelanguage.googleapis.com/v1beta/models",
			headers: map[string]string{"x-goog-api-key": cfg.Gemini.APIKey},
			client:  client,
		}
	default:
		return nil
	}
}

// redactQuery drops the query string so keys passed as parameters never
// reach logs or readiness responses.
func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i != -1 {
		return u[:i]
	}
	return u
}
