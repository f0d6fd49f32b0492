package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

func TestSearchAppliesTopKDefault(t *testing.T) {
	store := &fakeVectorStore{}
	uc := NewSearchUseCase(&fakeEmbedder{}, store, NewRerankUseCase(&fakeReranker{}), DefaultRerankThreshold)

	_, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:      "dosage",
		Collection: "medical_docs",
		Alpha:      0.5,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if store.gotTopK != DefaultTopK {
		t.Fatalf("expected default topK %d, got %d", DefaultTopK, store.gotTopK)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	uc := NewSearchUseCase(&fakeEmbedder{}, &fakeVectorStore{}, NewRerankUseCase(&fakeReranker{}), DefaultRerankThreshold)

	_, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:      "   ",
		Collection: "medical_docs",
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchRejectsAlphaOutsideUnitInterval(t *testing.T) {
	uc := NewSearchUseCase(&fakeEmbedder{}, &fakeVectorStore{}, NewRerankUseCase(&fakeReranker{}), DefaultRerankThreshold)

	_, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:      "dosage",
		Collection: "medical_docs",
		Alpha:      1.5,
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchWrapsStoreFailureAsRetrieval(t *testing.T) {
	uc := NewSearchUseCase(
		&fakeEmbedder{},
		&fakeVectorStore{searchErr: errors.New("connection refused")},
		NewRerankUseCase(&fakeReranker{}),
		DefaultRerankThreshold,
	)

	_, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:      "dosage",
		Collection: "medical_docs",
		Alpha:      0.5,
	})
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	uc := NewSearchUseCase(&fakeEmbedder{}, &fakeVectorStore{}, NewRerankUseCase(&fakeReranker{}), DefaultRerankThreshold)

	got, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:      "dosage",
		Collection: "empty_collection",
		Alpha:      0.5,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestSearchRerankedOrdersByCrossEncoderScore(t *testing.T) {
	reranker := &fakeReranker{scores: []float64{0.1, 0.9}}
	uc := NewSearchUseCase(
		&fakeEmbedder{},
		&fakeVectorStore{candidates: []domain.RetrievalCandidate{
			{ID: "a", Context: "first passage", Score: 0.8},
			{ID: "b", Context: "second passage", Score: 0.7},
		}},
		NewRerankUseCase(reranker),
		DefaultRerankThreshold,
	)

	got, err := uc.SearchReranked(context.Background(), domain.SearchRequest{
		Query:      "dosage",
		Collection: "medical_docs",
		Alpha:      0.5,
	})
	if err != nil {
		t.Fatalf("SearchReranked() error = %v", err)
	}
	if len(got) != 2 || got[0].Context != "second passage" || got[0].Score != 0.9 {
		t.Fatalf("expected cross-encoder order, got %v", got)
	}
	if len(reranker.gotPassages) != 2 {
		t.Fatalf("expected one batched scoring call over both passages, got %v", reranker.gotPassages)
	}
}
