// Package answer turns a question plus retrieved document context into a
// natural-language answer using an LLM. The backend is selected at startup;
// supported backends: Google Gemini, Ollama, OpenAI, Azure OpenAI, AWS Bedrock.
package answer

import (
	"fmt"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
)

// Config holds all answering-model configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name or deployment ID (e.g. "gemini-2.0-flash", "llama3").
	Model string

	// BaseURL overrides the default API endpoint (required for Ollama and Azure).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	// For Bedrock this field is unused; AWS credentials are resolved via the SDK chain.
	APIKey string

	// AzureDeployment is the Azure OpenAI deployment name (Azure only).
	AzureDeployment string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Validate checks that the config carries everything the selected backend
// needs, so misconfiguration fails at startup rather than on the first request.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("answer: model name is required")
	}
	switch c.Backend {
	case BackendGemini, BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("answer: API key is required for %s backend", c.Backend)
		}
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("answer: API key is required for azure backend")
		}
		if c.BaseURL == "" {
			return fmt.Errorf("answer: endpoint is required for azure backend")
		}
		if c.AzureDeployment == "" {
			return fmt.Errorf("answer: deployment name is required for azure backend")
		}
	case BackendOllama, BackendBedrock:
		// Ollama needs no credentials; Bedrock resolves AWS credentials via the SDK chain.
	default:
		return fmt.Errorf("answer: unknown backend %q — valid values: gemini, ollama, openai, azure, bedrock", c.Backend)
	}
	return nil
}
