// Package provider selects and constructs the chat model backend at runtime.
// Supported backends: OpenAI, Azure OpenAI, Ollama, Google Gemini and
// Volcengine Ark, all through eino's model abstraction.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOpenAI selects the OpenAI API (or any OpenAI-compatible endpoint).
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
)

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key (OPENAI_API_KEY).
	APIKey string
	// Model is the chat model name (OPENAI_MODEL).
	Model string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers (OPENAI_BASE_URL).
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI key (AZURE_OPENAI_API_KEY).
	APIKey string
	// Endpoint is the resource endpoint (AZURE_OPENAI_ENDPOINT).
	Endpoint string
	// Deployment is the deployment name (AZURE_OPENAI_DEPLOYMENT).
	Deployment string
	// APIVersion is the REST API version (AZURE_OPENAI_API_VERSION).
	APIVersion string
}

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama base URL (OLLAMA_HOST).
	Host string
	// Model is the local model name (OLLAMA_MODEL).
	Model string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the Google AI Studio key (GOOGLE_API_KEY).
	APIKey string
	// Model is the Gemini model name (GEMINI_MODEL).
	Model string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey is the Ark API key (ARK_API_KEY).
	APIKey string
	// Model is the Ark endpoint/model ID (ARK_MODEL).
	Model string
	// BaseURL overrides the Ark API base URL (ARK_BASE_URL).
	BaseURL string
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// OpenAI holds settings for BackendOpenAI.
	OpenAI ProviderOpenAI
	// AzureOpenAI holds settings for BackendAzure.
	AzureOpenAI ProviderAzureOpenAI
	// Ollama holds settings for BackendOllama.
	Ollama ProviderOllama
	// Gemini holds settings for BackendGemini.
	Gemini ProviderGemini
	// Ark holds settings for BackendArk.
	Ark ProviderArk
}

// Validate checks that the fields required by the selected backend are set.
// Error messages name the env var to set.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: openai requires OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: openai requires OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendOllama:
		if c.Ollama.Host == "" {
			return fmt.Errorf("provider: ollama requires OLLAMA_HOST")
		}
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: ollama requires OLLAMA_MODEL")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: gemini requires GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: gemini requires GEMINI_MODEL")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return fmt.Errorf("provider: ark requires ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ark requires ARK_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: openai, azure, ollama, gemini, ark", c.Backend)
	}
	return nil
}

// ModelName returns the model or deployment name for the selected backend.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendOllama:
		return c.Ollama.Model
	case BackendGemini:
		return c.Gemini.Model
	case BackendArk:
		return c.Ark.Model
	default:
		return ""
	}
}

// SupportsSampling reports whether the selected model accepts temperature
// and max-token options. OpenAI reasoning models (o-series, codex) reject them.
func (c *Config) SupportsSampling() bool {
	switch c.Backend {
	case BackendOpenAI, BackendAzure:
		return !isReasoningModel(c.ModelName())
	default:
		return true
	}
}

// isReasoningModel reports whether name is an OpenAI reasoning-class model.
// Matching is by prefix and case-insensitive.
func isReasoningModel(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
