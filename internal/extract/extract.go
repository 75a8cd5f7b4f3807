// Package extract converts uploaded files into plain text for ingestion.
// Plain text files pass through unchanged; PDFs go through a per-page text
// extractor with an optional OCR fallback for pages that carry no text layer
// (scanned documents). Extraction failures degrade to placeholder text rather
// than failing the upload: a document with a placeholder simply retrieves
// poorly, which the answering layer surfaces as "not in the document".
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Placeholder texts stored when extraction cannot produce content. They are
// real document text as far as the pipeline is concerned.
const (
	// PlaceholderUnreadable is stored when a file cannot be parsed at all.
	PlaceholderUnreadable = "[unreadable document]"

	// PlaceholderNoText is stored when a PDF parses but yields no text and
	// OCR is not available or also produced nothing.
	PlaceholderNoText = "[no extractable text]"
)

// ErrUnsupportedType reports a file extension the extractor does not handle.
var ErrUnsupportedType = fmt.Errorf("extract: unsupported file type")

// Extractor converts uploaded files to plain text.
type Extractor struct {
	// ocr is the optional OCR client for textless PDF pages. Nil disables OCR.
	ocr *OCRClient
}

// New constructs an Extractor. ocr may be nil to disable the OCR fallback.
func New(ocr *OCRClient) *Extractor {
	return &Extractor{ocr: ocr}
}

// Supported reports whether the extractor handles files with this name's
// extension. Matching is case-insensitive.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".pdf":
		return true
	default:
		return false
	}
}

// Text extracts plain text from the given file content, dispatching on the
// filename's extension. Unsupported extensions return ErrUnsupportedType;
// supported files never fail — extraction problems produce placeholder text.
func (e *Extractor) Text(ctx context.Context, filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return string(content), nil
	case ".pdf":
		return e.pdfText(ctx, content), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(filename))
	}
}
