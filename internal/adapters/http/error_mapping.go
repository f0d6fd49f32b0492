package httpadapter

import (
	"net/http"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrPrompt):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrClientNotFound):
		// A missing role is a deployment bug, not a caller mistake.
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
