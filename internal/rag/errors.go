package rag

import "errors"

// ErrDocumentNotFound is returned when an operation references a document id
// with no matching document record. Retrieval paths deliberately do NOT
// surface this — an unknown document retrieves as empty context — but chunk
// insertion enforces referential existence and fails with it.
var ErrDocumentNotFound = errors.New("rag: document not found")

// ErrDimensionMismatch is returned when a vector's length disagrees with the
// dimensionality the store was configured with. Never retried.
var ErrDimensionMismatch = errors.New("rag: embedding dimension mismatch")

// ErrInvalidLimit is returned when a nearest-neighbor query asks for fewer
// than one result.
var ErrInvalidLimit = errors.New("rag: result limit must be >= 1")
