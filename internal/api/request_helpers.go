package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/docmine-api/internal/domain"
)

// getPathUUID extracts and parses a UUID path parameter. A missing or
// malformed value wraps domain.ErrInvalidID, which the error table maps to
// 404 since no task can have that ID.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrInvalidID)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// downloadName names a download after the uploaded file's stem.
func downloadName(filename, ext string) string {
	return domain.FileStem(filename) + "_result" + ext
}
