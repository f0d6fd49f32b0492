package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

// ProcessUseCase is the worker side of ingestion: extract, index, record.
// Status walks uploaded → processing → ready, or failed with the cause.
type ProcessUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	indexer   ports.IndexService
}

func NewProcessUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	indexer ports.IndexService,
) *ProcessUseCase {
	return &ProcessUseCase{
		repo:      repo,
		extractor: extractor,
		indexer:   indexer,
	}
}

func (uc *ProcessUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, err := uc.pipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SetChunkCount(ctx, documentID, chunkCount); err != nil {
		return fmt.Errorf("record chunk count: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessUseCase) pipeline(ctx context.Context, documentID string) (int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunkCount, err := uc.indexer.Index(ctx, text, doc.ID, doc.Collection)
	if err != nil {
		return 0, err
	}
	return chunkCount, nil
}
