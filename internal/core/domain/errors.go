package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRetrieval      = errors.New("retrieval failed")
	ErrIndexing       = errors.New("indexing failed")
	ErrRerank         = errors.New("rerank failed")
	ErrClientNotFound = errors.New("model client not found")
	ErrPrompt         = errors.New("malformed prompt input")
	ErrStreamFailure  = errors.New("generation stream failed")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
