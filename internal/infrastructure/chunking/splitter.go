// Package chunking cuts document text into overlapping token windows sized for
// the embedding model.
package chunking

import (
	"context"
	"log/slog"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

const (
	DefaultChunkSize = 512
	DefaultOverlap   = 20
)

// Splitter tokenizes with the same tokenizer the embedding step uses, so the
// windows it cuts re-tokenize to exactly the spans that get embedded.
type Splitter struct {
	tokenizer ports.Tokenizer
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

func NewSplitter(tokenizer ports.Tokenizer, chunkSize, overlap int, logger *slog.Logger) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		tokenizer: tokenizer,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger,
	}
}

// Split produces token windows of at most chunkSize tokens where consecutive
// windows share the configured overlap. Empty input and total tokenization
// failure both yield an empty result, never an error: callers treat empty
// output as "nothing indexable". A window whose decode fails is dropped and
// logged; the remaining windows survive.
func (s *Splitter) Split(ctx context.Context, text, sourceID string) ([]domain.Chunk, error) {
	if text == "" {
		return nil, nil
	}

	tokens, err := s.tokenizer.Tokenize(ctx, text)
	if err != nil {
		s.logger.Warn("chunking_tokenize_failed", "source_id", sourceID, "error", err)
		return nil, nil
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	chunkSize := s.chunkSize
	if max := s.tokenizer.MaxSequenceLength(); max > 0 && chunkSize > max {
		s.logger.Warn("chunk_size_clamped", "requested", chunkSize, "max_sequence_length", max)
		chunkSize = max
	}
	overlap := s.overlap
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	step := chunkSize - overlap

	out := make([]domain.Chunk, 0, len(tokens)/step+1)
	seq := 0
	for start := 0; start < len(tokens); start += step {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		span, err := s.tokenizer.Decode(ctx, tokens[start:end])
		if err != nil {
			s.logger.Warn("chunk_decode_failed", "source_id", sourceID, "start", start, "end", end, "error", err)
		} else {
			out = append(out, domain.Chunk{
				Text:          span,
				SourceID:      sourceID,
				SequenceIndex: seq,
			})
			seq++
		}

		// The final window ends exactly at the token stream's end; starting
		// another window would duplicate the tail.
		if end == len(tokens) {
			break
		}
	}
	return out, nil
}
