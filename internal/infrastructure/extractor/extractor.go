// Package extractor routes stored documents to a format-specific text
// extractor by MIME type.
package extractor

import (
	"context"
	"fmt"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

type Dispatcher struct {
	byMime map[string]ports.TextExtractor
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{byMime: make(map[string]ports.TextExtractor)}
}

func (d *Dispatcher) Register(mimeType string, ext ports.TextExtractor) {
	d.byMime[mimeType] = ext
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	ext, ok := d.byMime[doc.MimeType]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text",
			fmt.Errorf("unsupported mime type %q for %s", doc.MimeType, doc.Filename))
	}
	return ext.Extract(ctx, doc)
}
