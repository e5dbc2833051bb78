package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/phrazzld/docmine-api/internal/analysis"
)

// DefaultMinTextChars is the average number of characters per page below
// which a document is considered scanned.
const DefaultMinTextChars = 50

var (
	// ErrMalformedPDF is returned when the document cannot be parsed.
	ErrMalformedPDF = errors.New("malformed PDF document")

	// ErrNoPages is returned for a document without pages.
	ErrNoPages = errors.New("PDF document has no pages")

	// ErrNoTextLayer is returned when text mode finds no extractable text.
	ErrNoTextLayer = errors.New("PDF document has no text layer")
)

// Analyzer implements analysis.TextEngine using the PDF's embedded text.
type Analyzer struct {
	minTextChars int
	logger       *slog.Logger
}

var _ analysis.TextEngine = (*Analyzer)(nil)

// NewAnalyzer creates an Analyzer. A negative minTextChars falls back to
// DefaultMinTextChars.
func NewAnalyzer(minTextChars int, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if minTextChars < 0 {
		minTextChars = DefaultMinTextChars
	}
	return &Analyzer{
		minTextChars: minTextChars,
		logger:       logger.With("component", "pdftext"),
	}, nil
}

// Classify chooses OCR mode when the average extractable text per page is
// below the configured threshold.
func (a *Analyzer) Classify(ctx context.Context, data []byte) (analysis.Mode, error) {
	pages, err := extractPages(ctx, data, false)
	if err != nil {
		return "", err
	}

	chars := 0
	for _, p := range pages {
		chars += countVisible(p.text)
	}
	avg := chars / len(pages)

	mode := analysis.ModeText
	if avg < a.minTextChars {
		mode = analysis.ModeOCR
	}

	a.logger.DebugContext(ctx, "classified document",
		"pages", len(pages),
		"avg_chars_per_page", avg,
		"threshold", a.minTextChars,
		"mode", mode)
	return mode, nil
}

// AnalyzeText renders each page's text under a "## Page N" heading.
// Decodable embedded images are written through images and linked below
// the text of the page they appear on.
func (a *Analyzer) AnalyzeText(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
	if images == nil {
		images = analysis.DiscardImages
	}

	pages, err := extractPages(ctx, data, true)
	if err != nil {
		return nil, err
	}

	var refs []string
	skipped := 0
	for i := range pages {
		skipped += pages[i].skipped
		for _, fig := range pages[i].figures {
			ref, err := images.WriteImage(ctx, fig.name, fig.png)
			if err != nil {
				return nil, fmt.Errorf("failed to save image %s: %w", fig.name, err)
			}
			pages[i].refs = append(pages[i].refs, ref)
			refs = append(refs, ref)
		}
	}
	if skipped > 0 {
		a.logger.DebugContext(ctx, "skipped undecodable images", "count", skipped)
	}

	markdown := render(pages)
	if markdown == "" {
		return nil, ErrNoTextLayer
	}
	return &analysis.Output{Markdown: markdown, Pages: len(pages), Images: refs}, nil
}

// pageContent is what one page contributes to the rendered document.
type pageContent struct {
	text    string
	figures []figure
	skipped int
	// refs are the stored references of figures, filled by AnalyzeText.
	refs []string
}

// extractPages returns the text of every page in order, plus its decoded
// figures when withFigures is set.
func extractPages(ctx context.Context, data []byte, withFigures bool) (pages []pageContent, err error) {
	if len(data) == 0 {
		return nil, analysis.ErrEmptyDocument
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPDF, err)
	}

	n := r.NumPage()
	if n == 0 {
		return nil, ErrNoPages
	}

	pages = make([]pageContent, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, pageContent{})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrMalformedPDF, i, err)
		}
		pc := pageContent{text: text}
		if withFigures {
			pc.figures, pc.skipped = extractFigures(p, i)
		}
		pages = append(pages, pc)
	}
	return pages, nil
}

// render joins non-empty pages into markdown.
func render(pages []pageContent) string {
	var sb strings.Builder
	for i, p := range pages {
		body := normalize(p.text)
		for j, ref := range p.refs {
			if body != "" {
				body += "\n\n"
			}
			body += fmt.Sprintf("![Figure %d.%d](%s)", i+1, j+1, ref)
		}
		if body == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## Page %d\n\n%s", i+1, body)
	}
	if sb.Len() == 0 {
		return ""
	}
	sb.WriteString("\n")
	return sb.String()
}

// normalize trims trailing whitespace per line and collapses runs of blank
// lines into a single paragraph break.
func normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func countVisible(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
