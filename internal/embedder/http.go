package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a non-2xx response body is quoted in errors.
const maxErrorBody = 512

// postJSON sends body as JSON to url and decodes a 2xx response into out.
// For non-2xx responses the raw body is returned so callers can extract the
// provider's error message.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, raw, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil, nil
}

// errorMessage extracts a provider error message from a non-2xx body.
// OpenAI nests it under error.message; Ollama uses a top-level error string.
func errorMessage(status int, raw []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &nested) == nil && nested.Error.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", status, nested.Error.Message)
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &flat) == nil && flat.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", status, flat.Error)
	}
	if len(raw) > 0 {
		return fmt.Sprintf("HTTP %d: %s", status, bytes.TrimSpace(raw))
	}
	return fmt.Sprintf("HTTP %d", status)
}
