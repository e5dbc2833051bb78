package shared

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/docmine-api/internal/domain"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before parts spill to temporary files.
const multipartMemory = 8 << 20

// ErrUploadTooLarge is returned when the request body exceeds the upload limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// Global validator instance for reuse
var validate = validator.New()

// Upload is one file received in a multipart request.
type Upload struct {
	Filename string
	Data     []byte
}

// ReadUpload reads the multipart file field of r, rejecting bodies larger
// than maxBytes. A missing field is a validation error.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, tooLarge.Limit)
		}
		if strings.Contains(err.Error(), "request body too large") {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, maxBytes)
		}
		return nil, domain.NewValidationError(field, "must be sent as multipart/form-data", domain.ErrValidation)
	}

	f, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, domain.NewValidationError(field, "is required", domain.ErrValidation)
		}
		return nil, domain.NewValidationError(field, "could not be read", domain.ErrValidation)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &Upload{Filename: header.Filename, Data: data}, nil
}

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v interface{}) error {
	// Check if the object implements the Validate interface
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}

	// Otherwise, use the struct validator
	return validate.Struct(v)
}
