package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyDocument is returned when there are no bytes to send.
	ErrEmptyDocument = errors.New("document cannot be empty")

	// ErrInvalidResponse is returned when the model response is missing or malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model refuses the document on safety grounds.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned when retries are exhausted for temporary errors.
	ErrTransientFailure = errors.New("transient error during OCR")
)
