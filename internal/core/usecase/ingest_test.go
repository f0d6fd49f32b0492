package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

func TestUploadStoresMetadataAndPublishes(t *testing.T) {
	repo := &fakeDocumentRepo{}
	storage := &fakeObjectStorage{}
	queue := &fakeQueue{}
	uc := NewIngestUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "lab report.pdf", "application/pdf", "medical_docs", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if doc.Status != domain.StatusUploaded || doc.Collection != "medical_docs" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected metadata row, got %d", len(repo.created))
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected publish of %s, got %v", doc.ID, queue.published)
	}
	if len(storage.saved) != 1 {
		t.Fatalf("expected stored object, got %d", len(storage.saved))
	}
	for key := range storage.saved {
		if !strings.HasSuffix(key, "_lab_report.pdf") {
			t.Fatalf("expected sanitized storage key, got %q", key)
		}
	}
}

func TestUploadRejectsEmptyCollection(t *testing.T) {
	uc := NewIngestUseCase(&fakeDocumentRepo{}, &fakeObjectStorage{}, &fakeQueue{})

	_, err := uc.Upload(context.Background(), "a.txt", "text/plain", "", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSanitizeFilenameStripsPathAndSpecials(t *testing.T) {
	got := sanitizeFilename("../../etc/pass wd?.txt")
	if got != "pass_wd_.txt" {
		t.Fatalf("sanitizeFilename() = %q", got)
	}
	if sanitizeFilename("") != "document.bin" {
		t.Fatalf("expected fallback name for empty input")
	}
}
