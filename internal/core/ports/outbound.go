package ports

import (
	"context"
	"io"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

// Tokenizer matches the embedding model's tokenization exactly; chunk windows
// are cut and decoded through it so chunk boundaries and embeddings agree.
type Tokenizer interface {
	Tokenize(ctx context.Context, text string) ([]uint32, error)
	Decode(ctx context.Context, tokenIDs []uint32) (string, error)
	MaxSequenceLength() int
}

// Embedder builds vectors for chunk batches and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores (query, passage) pairs with a cross-encoder in one batch.
// Scores come back in input order.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Chunker splits raw text into token-bounded overlapping chunks.
type Chunker interface {
	Split(ctx context.Context, text, sourceID string) ([]domain.Chunk, error)
}

// VectorStore persists embedded chunks and serves hybrid search over them.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error
	HybridSearch(ctx context.Context, collection, query string, queryVector []float32, topK int, alpha float64) ([]domain.RetrievalCandidate, error)
}

// TokenStreamer drives one blocking token-by-token generation. The callback is
// invoked per token from the producing goroutine; returning false stops reads.
type TokenStreamer interface {
	GenerateStream(ctx context.Context, prompt string, yield func(token string) bool) error
}

// Generator produces a complete response in one call (naming, analysis).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClientRegistry owns the role-keyed model client handles.
type ClientRegistry interface {
	Get(role string) (ModelClient, error)
	Roles() []string
}

// ModelClient is the borrowed handle for one configured role.
type ModelClient interface {
	TokenStreamer
	Generator
	Model() string
}

// DocumentRepository persists document pipeline state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

// ProfileStore reads and writes per-user medical context.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Upsert(ctx context.Context, profile *domain.Profile) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document indexing events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// ProspectusFetcher resolves drug names to prospectus texts via the external
// lookup service.
type ProspectusFetcher interface {
	Fetch(ctx context.Context, drugNames []string) (map[string]string, error)
}
