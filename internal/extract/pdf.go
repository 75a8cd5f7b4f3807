package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docqa/docqa-go/internal/logging"
)

// pdfText extracts the text layer of a PDF page by page. When the document
// carries no text layer at all (a scanned PDF) and an OCR client is
// configured, the raw PDF is sent to the OCR sidecar, which rasterizes the
// pages and recognizes them. Any failure degrades to a placeholder.
func (e *Extractor) pdfText(ctx context.Context, content []byte) string {
	log := logging.FromContext(ctx)

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		log.Warn("pdf parse failed", "error", err)
		return PlaceholderUnreadable
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn("pdf page extraction failed", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			sb.WriteString("\n")
		}
	}

	if out := strings.TrimSpace(sb.String()); out != "" {
		return out
	}

	// No text layer: likely a scanned document.
	if e.ocr != nil {
		text, err := e.ocr.Recognize(ctx, content)
		if err != nil {
			log.Warn("ocr fallback failed", "error", err)
			return PlaceholderNoText
		}
		if out := strings.TrimSpace(text); out != "" {
			return out
		}
	}
	return PlaceholderNoText
}
