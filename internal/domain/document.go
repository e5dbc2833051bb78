package domain

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// ParseStrategy selects which analyzer mode processes a document.
type ParseStrategy string

// Supported parse strategies
const (
	// StrategyAuto classifies the document first and then picks text or OCR mode.
	StrategyAuto ParseStrategy = "auto"
	// StrategyText reads the embedded text layer.
	StrategyText ParseStrategy = "txt"
	// StrategyOCR renders pages and recognizes text optically.
	StrategyOCR ParseStrategy = "ocr"
)

// ParseParseStrategy converts user input into a ParseStrategy.
// Empty input selects StrategyAuto.
func ParseParseStrategy(s string) (ParseStrategy, error) {
	switch ParseStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyText:
		return StrategyText, nil
	case StrategyOCR:
		return StrategyOCR, nil
	default:
		return "", NewValidationError("strategy", fmt.Sprintf("must be one of auto, txt, ocr (got %q)", s),
			ErrInvalidStrategy)
	}
}

// ExecutionMode decides whether a submission is processed inline or in the background.
type ExecutionMode string

// Execution modes
const (
	ModeSync  ExecutionMode = "sync"
	ModeAsync ExecutionMode = "async"
)

// SupportedExtension is the only document type the analyzer pipeline accepts.
const SupportedExtension = ".pdf"

var pdfMagic = []byte("%PDF")

// pdfHeaderWindow is how far into the file the header may start. Readers
// tolerate leading junk before it, so uploads do too.
const pdfHeaderWindow = 1024

// ValidateUpload rejects uploads that must never become tasks: empty
// payloads and anything that is not a PDF by both extension and content.
// An empty filename is accepted since a name is synthesized later.
func ValidateUpload(filename string, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}

	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if ext != SupportedExtension {
			return NewValidationError("file", fmt.Sprintf("extension %q is not supported, expected %s",
				ext, SupportedExtension), ErrUnsupportedType)
		}
	}

	head := data
	if len(head) > pdfHeaderWindow {
		head = head[:pdfHeaderWindow]
	}
	if !bytes.Contains(head, pdfMagic) {
		return NewValidationError("file", "content is not a PDF document", ErrUnsupportedType)
	}

	return nil
}

// FileStem returns the filename without directory and extension, used to
// name downloads after the original upload.
func FileStem(filename string) string {
	base := filepath.Base(filename)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	if base == "." || base == string(filepath.Separator) {
		return "document"
	}
	return base
}
