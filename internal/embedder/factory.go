package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/docqa/docqa-go/internal/rag"
)

// Default embedding models per backend. The reference deployment embeds with
// an all-MiniLM-class sentence model (384 dimensions), which Ollama serves as
// "all-minilm".
const (
	defaultOllamaModel = "all-minilm"
	defaultOpenAIModel = "text-embedding-3-small"
)

// Dimensions returns the embedding vector size the deployment is configured
// for. EMBEDDING_DIMENSIONS overrides; otherwise the reference 384 is used.
// The chunk store and any Qdrant collection must be created with this value.
func Dimensions() int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	return rag.DefaultDimensions
}

// NewFromEnv constructs a rag.Embedder from environment variables. The
// embedder is built exactly once at process startup and injected into the
// ingestion and retrieval pipelines — callers never construct their own.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER — ollama (default), openai, or azure
//  2. EMBEDDING_MODEL — overrides the default model for the resolved backend
//  3. EMBEDDING_API_KEY — overrides the backend's native API key env var
//  4. EMBEDDING_ENDPOINT — overrides the backend's default endpoint
//  5. EMBEDDING_DIMENSIONS — overrides the default vector size (384)
func NewFromEnv() (rag.Embedder, error) {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	switch backend {
	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := getEnv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: Dimensions(),
		}), nil

	case "azure":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint + "/openai",
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: Dimensions(),
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, azure", backend)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
