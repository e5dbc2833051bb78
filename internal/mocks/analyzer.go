package mocks

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/docmine-api/internal/analysis"
)

// MockAnalyzer implements analysis.Analyzer for testing.
//
// Without overrides it classifies every document as text and renders the
// bytes following the PDF header line as the markdown body, so tests can
// check that a task's result came from its own upload.
type MockAnalyzer struct {
	ClassifyFn    func(ctx context.Context, data []byte) (analysis.Mode, error)
	AnalyzeTextFn func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error)
	AnalyzeOCRFn  func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error)

	mu            sync.Mutex
	classifyCalls int
	textCalls     int
	ocrCalls      int
}

var _ analysis.Analyzer = (*MockAnalyzer)(nil)

// Classify implements analysis.Analyzer.
func (m *MockAnalyzer) Classify(ctx context.Context, data []byte) (analysis.Mode, error) {
	m.mu.Lock()
	m.classifyCalls++
	m.mu.Unlock()

	if m.ClassifyFn != nil {
		return m.ClassifyFn(ctx, data)
	}
	return analysis.ModeText, nil
}

// AnalyzeText implements analysis.Analyzer.
func (m *MockAnalyzer) AnalyzeText(
	ctx context.Context,
	data []byte,
	images analysis.ImageWriter,
) (*analysis.Output, error) {
	m.mu.Lock()
	m.textCalls++
	m.mu.Unlock()

	if m.AnalyzeTextFn != nil {
		return m.AnalyzeTextFn(ctx, data, images)
	}
	return EchoOutput(data), nil
}

// AnalyzeOCR implements analysis.Analyzer.
func (m *MockAnalyzer) AnalyzeOCR(
	ctx context.Context,
	data []byte,
	images analysis.ImageWriter,
) (*analysis.Output, error) {
	m.mu.Lock()
	m.ocrCalls++
	m.mu.Unlock()

	if m.AnalyzeOCRFn != nil {
		return m.AnalyzeOCRFn(ctx, data, images)
	}
	return EchoOutput(data), nil
}

// Calls returns how many times each method has been called.
func (m *MockAnalyzer) Calls() (classify, text, ocr int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classifyCalls, m.textCalls, m.ocrCalls
}

// EchoOutput renders everything after the first line of data as markdown.
func EchoOutput(data []byte) *analysis.Output {
	body := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		body = data[i+1:]
	}
	return &analysis.Output{
		Markdown: fmt.Sprintf("# Document\n\n%s\n", bytes.TrimSpace(body)),
		Pages:    1,
	}
}

// FakePDF builds a payload that passes upload validation and whose echoed
// result contains text.
func FakePDF(text string) []byte {
	return []byte("%PDF-1.7\n" + text)
}
