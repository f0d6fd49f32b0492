package ports

import (
	"context"
	"io"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/streaming"
)

// ChatService is the inbound contract for streamed RAG answers and naming.
type ChatService interface {
	Answer(ctx context.Context, userID string, messages []domain.Message, collection string) (*streaming.Stream, error)
	Name(ctx context.Context, info domain.ChatInfo, messages []domain.Message) (string, error)
}

// IndexService indexes raw text content into a collection.
type IndexService interface {
	Index(ctx context.Context, content, sourceID, collection string) (int, error)
}

// SearchService runs hybrid retrieval plus reranking.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievalCandidate, error)
	SearchReranked(ctx context.Context, req domain.SearchRequest) ([]domain.RerankedResult, error)
}

// AnalyzeService runs the drug interaction analysis. userID is optional; when
// present the user's allergy profile joins the analysis.
type AnalyzeService interface {
	AnalyzeInteractions(ctx context.Context, userID string, drugNames []string) (string, error)
}

// DocumentIngestor accepts uploads for asynchronous indexing.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, collection string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor handles the asynchronous indexing side.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
