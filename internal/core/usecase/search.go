package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

const (
	DefaultTopK        = 5
	DefaultHybridAlpha = 0.5
)

// SearchUseCase runs hybrid retrieval and, for the reranked path, hands the
// candidate set to the cross-encoder stage.
type SearchUseCase struct {
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	rerank    *RerankUseCase
	threshold float64
}

func NewSearchUseCase(embedder ports.Embedder, vectorDB ports.VectorStore, rerank *RerankUseCase, threshold float64) *SearchUseCase {
	return &SearchUseCase{
		embedder:  embedder,
		vectorDB:  vectorDB,
		rerank:    rerank,
		threshold: threshold,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievalCandidate, error) {
	req, err := normalizeSearchRequest(req)
	if err != nil {
		return nil, err
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	candidates, err := uc.vectorDB.HybridSearch(ctx, req.Collection, req.Query, queryVector, req.TopK, req.Alpha)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "hybrid search", err)
	}
	return candidates, nil
}

func (uc *SearchUseCase) SearchReranked(ctx context.Context, req domain.SearchRequest) ([]domain.RerankedResult, error) {
	candidates, err := uc.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return uc.rerank.Rerank(ctx, req.Query, candidates, uc.threshold)
}

func normalizeSearchRequest(req domain.SearchRequest) (domain.SearchRequest, error) {
	if strings.TrimSpace(req.Query) == "" {
		return req, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("empty query"))
	}
	if req.Collection == "" {
		return req, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("empty collection"))
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.Alpha < 0 || req.Alpha > 1 {
		return req, domain.WrapError(domain.ErrInvalidInput, "search",
			fmt.Errorf("alpha %v outside [0,1]", req.Alpha))
	}
	return req, nil
}
