package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/docmine-api/internal/analysis"
	"github.com/phrazzld/docmine-api/internal/api/shared"
	"github.com/phrazzld/docmine-api/internal/domain"
	"github.com/phrazzld/docmine-api/internal/redact"
	"github.com/phrazzld/docmine-api/internal/service"
	"github.com/phrazzld/docmine-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes. It is the
// single table from error kind to status; handlers never pick codes for
// service errors themselves.
func MapErrorToStatusCode(err error) int {
	var failed *service.TaskFailedError

	switch {
	case err == nil:
		return http.StatusInternalServerError

	// Not found, including a malformed task ID
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrResultNotFound),
		errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, domain.ErrInvalidID):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, service.ErrNotReady),
		errors.As(err, &failed):
		return http.StatusBadRequest

	case errors.Is(err, shared.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge

	// Analysis failures, storage faults and partial cleanup
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err. Only text the
// service composed itself is passed through, and always after redaction.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var (
		validationErr *domain.ValidationError
		analysisErr   *analysis.Error
		failed        *service.TaskFailedError
	)

	switch {
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrResultNotFound):
		return "Result file not found"

	case errors.As(err, &validationErr):
		return redact.String(fmt.Sprintf("Invalid %s: %s", validationErr.Field, validationErr.Message))

	case errors.Is(err, domain.ErrEmptyPayload):
		return "Uploaded file is empty"

	case errors.Is(err, domain.ErrUnsupportedType):
		return "Unsupported file type"

	case errors.Is(err, domain.ErrValidation):
		return "Validation error"

	case errors.Is(err, service.ErrNotReady):
		return "Task has not completed yet"

	case errors.As(err, &failed):
		return redact.String("Task failed: " + failed.Message)

	case errors.Is(err, shared.ErrUploadTooLarge):
		return "Uploaded file is too large"

	case errors.As(err, &analysisErr):
		return redact.String("Document analysis failed: " + analysisErr.Detail)

	case errors.Is(err, service.ErrCleanupIncomplete):
		return "Task removed but some artifacts could not be deleted"

	case errors.Is(err, service.ErrStorage):
		return "Storage error"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted detail. defaultMsg replaces the generic message for errors
// the table does not recognize.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if message == "An unexpected error occurred" && defaultMsg != "" {
		message = defaultMsg
	}

	var opts []shared.ResponseOption
	if status == http.StatusRequestEntityTooLarge {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError turns struct-tag validation failures into a short
// message naming the first offending field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
