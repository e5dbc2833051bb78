package analysis

import (
	"context"
	"errors"
)

// TextEngine classifies documents and renders them from their text layer.
type TextEngine interface {
	Classify(ctx context.Context, data []byte) (Mode, error)
	AnalyzeText(ctx context.Context, data []byte, images ImageWriter) (*Output, error)
}

// OCREngine renders documents by optical recognition.
type OCREngine interface {
	AnalyzeOCR(ctx context.Context, data []byte, images ImageWriter) (*Output, error)
}

// Composite joins a text engine with an optional OCR engine into one
// Analyzer. Without an OCR engine, OCR requests fail with ErrModeUnavailable.
type Composite struct {
	text TextEngine
	ocr  OCREngine
}

var _ Analyzer = (*Composite)(nil)

// NewComposite creates a Composite. ocr may be nil.
func NewComposite(text TextEngine, ocr OCREngine) (*Composite, error) {
	if text == nil {
		return nil, errors.New("text engine cannot be nil")
	}
	return &Composite{text: text, ocr: ocr}, nil
}

// Classify delegates to the text engine.
func (c *Composite) Classify(ctx context.Context, data []byte) (Mode, error) {
	return c.text.Classify(ctx, data)
}

// AnalyzeText delegates to the text engine.
func (c *Composite) AnalyzeText(ctx context.Context, data []byte, images ImageWriter) (*Output, error) {
	return c.text.AnalyzeText(ctx, data, images)
}

// AnalyzeOCR delegates to the OCR engine when one is configured.
func (c *Composite) AnalyzeOCR(ctx context.Context, data []byte, images ImageWriter) (*Output, error) {
	if c.ocr == nil {
		return nil, ErrModeUnavailable
	}
	return c.ocr.AnalyzeOCR(ctx, data, images)
}
