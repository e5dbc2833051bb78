package analysis

import (
	"context"
)

// Mode is the analyzer pipeline that actually processed a document.
type Mode string

// Analyzer modes
const (
	ModeText Mode = "txt"
	ModeOCR  Mode = "ocr"
)

// ImageWriter receives side artifacts (extracted figures, page renders)
// produced during analysis. WriteImage returns the reference the rendered
// document should use to link the image.
type ImageWriter interface {
	WriteImage(ctx context.Context, name string, data []byte) (string, error)
}

// ImageWriterFunc adapts a function to ImageWriter.
type ImageWriterFunc func(ctx context.Context, name string, data []byte) (string, error)

// WriteImage calls f.
func (f ImageWriterFunc) WriteImage(ctx context.Context, name string, data []byte) (string, error) {
	return f(ctx, name, data)
}

// DiscardImages is an ImageWriter that drops every image.
var DiscardImages ImageWriter = ImageWriterFunc(func(ctx context.Context, name string, data []byte) (string, error) {
	return name, nil
})

// Output is what an analyzer engine renders for one document.
type Output struct {
	// Markdown is the rendered primary document.
	Markdown string
	// Pages is the number of pages analyzed, when known.
	Pages int
	// Images lists the references of side artifacts written.
	Images []string
}

// Analyzer is the external document-analysis engine.
// Implementations may return any error type; the Adapter normalizes them.
type Analyzer interface {
	// Classify decides whether a document should be read from its text
	// layer or recognized optically.
	Classify(ctx context.Context, data []byte) (Mode, error)

	// AnalyzeText renders a document from its embedded text layer.
	AnalyzeText(ctx context.Context, data []byte, images ImageWriter) (*Output, error)

	// AnalyzeOCR renders a document by optical recognition.
	AnalyzeOCR(ctx context.Context, data []byte, images ImageWriter) (*Output, error)
}

// Result is the Adapter's view of a finished analysis.
type Result struct {
	Content string
	Mode    Mode
	Pages   int
	Images  []string
}
