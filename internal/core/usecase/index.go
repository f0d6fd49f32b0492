package usecase

import (
	"context"
	"fmt"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

// IndexUseCase turns raw text into searchable chunks: split, batch-embed,
// single batched upsert. At-least-once; callers own deduplication.
type IndexUseCase struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	vectorDB ports.VectorStore
}

func NewIndexUseCase(chunker ports.Chunker, embedder ports.Embedder, vectorDB ports.VectorStore) *IndexUseCase {
	return &IndexUseCase{
		chunker:  chunker,
		embedder: embedder,
		vectorDB: vectorDB,
	}
}

func (uc *IndexUseCase) Index(ctx context.Context, content, sourceID, collection string) (int, error) {
	chunks, err := uc.chunker.Split(ctx, content, sourceID)
	if err != nil {
		return 0, domain.WrapError(domain.ErrIndexing, "chunk content", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, domain.WrapError(domain.ErrIndexing, "embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return 0, domain.WrapError(domain.ErrIndexing, "embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}

	if err := uc.vectorDB.Upsert(ctx, collection, chunks, vectors); err != nil {
		return 0, domain.WrapError(domain.ErrIndexing, "upsert chunks", err)
	}
	return len(chunks), nil
}
