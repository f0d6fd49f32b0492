package plaintext

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

type fakeStorage struct {
	content string
}

func (f *fakeStorage) Save(_ context.Context, _ string, _ io.Reader) error {
	return nil
}

func (f *fakeStorage) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func TestExtractNormalizesText(t *testing.T) {
	ext := NewExtractor(&fakeStorage{content: "  Prospectus \n\n\n  dosage  section  "})
	got, err := ext.Extract(context.Background(), &domain.Document{
		StoragePath: "/data/doc",
		Filename:    "p.txt",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Prospectus\n\ndosage section" {
		t.Fatalf("Extract() = %q", got)
	}
}

func TestExtractRejectsBinaryPayload(t *testing.T) {
	ext := NewExtractor(&fakeStorage{content: string([]byte{0xff, 0xfe, 0x01})})
	_, err := ext.Extract(context.Background(), &domain.Document{
		StoragePath: "/data/doc",
		Filename:    "p.bin",
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
