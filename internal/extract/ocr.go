package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// OCRClient calls an external OCR sidecar over HTTP. The sidecar accepts a
// PDF document, rasterizes its pages, runs text recognition, and returns the
// combined text. Configured via OCR_ENDPOINT; when unset, OCR is disabled and
// scanned PDFs fall back to placeholder text.
type OCRClient struct {
	// endpoint is the sidecar URL (e.g. "http://localhost:8501/ocr").
	endpoint string

	// client is the shared HTTP client. OCR on large documents is slow, so
	// the timeout is generous.
	client *http.Client
}

// NewOCRClientFromEnv returns an OCRClient when OCR_ENDPOINT is set, nil
// otherwise. A nil client disables the OCR fallback.
func NewOCRClientFromEnv() *OCRClient {
	endpoint := os.Getenv("OCR_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	return NewOCRClient(endpoint)
}

// NewOCRClient constructs an OCRClient for the given sidecar endpoint.
func NewOCRClient(endpoint string) *OCRClient {
	return &OCRClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// ocrResponse is the JSON body returned by the sidecar.
type ocrResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Recognize sends the raw PDF to the sidecar and returns the recognized text.
func (c *OCRClient) Recognize(ctx context.Context, content []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("extract: ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extract: ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("extract: ocr decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return "", fmt.Errorf("extract: ocr: %s", msg)
	}

	return result.Text, nil
}
