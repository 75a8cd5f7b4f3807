package textsplit

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultChunkSize is the number of sentences per chunk when the caller does
// not specify one. Two sentences is small enough for precise retrieval while
// keeping enough context for the embedding to be meaningful.
const DefaultChunkSize = 2

// ErrInvalidChunkSize is returned when a chunk size below 1 is requested.
var ErrInvalidChunkSize = errors.New("textsplit: chunk size must be >= 1")

// BuildChunks groups consecutive sentences into non-overlapping windows of
// chunkSize sentences, each window joined with a single space, in original
// order. The final chunk holds the remainder when len(sentences) is not an
// exact multiple of chunkSize. An empty sentence slice yields an empty chunk
// slice. chunkSize below 1 fails with ErrInvalidChunkSize.
func BuildChunks(sentences []string, chunkSize int) ([]string, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	chunks := make([]string, 0, (len(sentences)+chunkSize-1)/chunkSize)
	for start := 0; start < len(sentences); start += chunkSize {
		end := start + chunkSize
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, strings.Join(sentences[start:end], " "))
	}

	return chunks, nil
}
