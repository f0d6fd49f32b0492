package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

// DefaultRerankThreshold keeps everything by default; cross-encoder scores for
// plausible passages sit well above it.
const DefaultRerankThreshold = -1.0

// RerankUseCase rescoring: one batched cross-encoder call over all
// (query, context) pairs, then threshold filter and descending sort.
type RerankUseCase struct {
	reranker ports.Reranker
}

func NewRerankUseCase(reranker ports.Reranker) *RerankUseCase {
	return &RerankUseCase{reranker: reranker}
}

func (uc *RerankUseCase) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.RetrievalCandidate,
	threshold float64,
) ([]domain.RerankedResult, error) {
	if len(candidates) == 0 {
		return []domain.RerankedResult{}, nil
	}

	passages := make([]string, len(candidates))
	for i, candidate := range candidates {
		passages[i] = candidate.Context
	}

	scores, err := uc.reranker.Score(ctx, query, passages)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRerank, "score candidates", err)
	}
	if len(scores) != len(candidates) {
		return nil, domain.WrapError(domain.ErrRerank, "score candidates",
			fmt.Errorf("scores/candidates mismatch: %d/%d", len(scores), len(candidates)))
	}

	results := make([]domain.RerankedResult, 0, len(candidates))
	for i, candidate := range candidates {
		if scores[i] < threshold {
			continue
		}
		results = append(results, domain.RerankedResult{
			Context: candidate.Context,
			Score:   scores[i],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
