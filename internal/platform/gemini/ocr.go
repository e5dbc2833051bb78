package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/docmine-api/internal/analysis"
	"github.com/phrazzld/docmine-api/internal/config"
	"google.golang.org/genai"
)

const pdfMIMEType = "application/pdf"

const defaultPrompt = `Transcribe the attached PDF document into GitHub-flavored Markdown.
Preserve headings, paragraphs, lists and tables. Start each page with a
"## Page N" heading. Describe figures in one italic line. Output only the
Markdown, without code fences or commentary.{{if .Hint}}

{{.Hint}}{{end}}`

// promptData is passed to the prompt template.
type promptData struct {
	Hint string
}

// contentGenerator is the slice of the genai client the OCR engine uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// OCR implements analysis.OCREngine by asking a Gemini model to transcribe
// the document.
type OCR struct {
	logger    *slog.Logger
	config    config.AnalyzerConfig
	prompt    string
	generator contentGenerator
	model     string
	timeout   time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ analysis.OCREngine = (*OCR)(nil)

// NewOCR creates an OCR engine with a live Gemini client.
func NewOCR(ctx context.Context, logger *slog.Logger, cfg config.AnalyzerConfig) (*OCR, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", analysis.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", analysis.ErrInvalidConfig, err)
	}

	return newOCR(logger, cfg, client.Models)
}

func newOCR(logger *slog.Logger, cfg config.AnalyzerConfig, generator contentGenerator) (*OCR, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: content generator cannot be nil", analysis.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", analysis.ErrInvalidConfig)
	}

	prompt, err := loadPrompt(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	return &OCR{
		logger:    logger.With("component", "gemini_ocr", "model", cfg.ModelName),
		config:    cfg,
		prompt:    prompt,
		generator: generator,
		model:     cfg.ModelName,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		sleep:     sleepContext,
	}, nil
}

// loadPrompt renders the prompt template, reading it from path when set.
func loadPrompt(path string) (string, error) {
	text := defaultPrompt
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: failed to read prompt template from %s: %v",
				analysis.ErrInvalidConfig, path, err)
		}
		text = string(content)
	}

	tmpl, err := template.New("ocr").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse prompt template: %v", analysis.ErrInvalidConfig, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptData{}); err != nil {
		return "", fmt.Errorf("%w: failed to execute prompt template: %v", analysis.ErrInvalidConfig, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// AnalyzeOCR sends the document to the model and returns its transcription.
// The images writer is unused: the model returns text only.
func (o *OCR) AnalyzeOCR(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: o.prompt},
			{InlineData: &genai.Blob{Data: data, MIMEType: pdfMIMEType}},
		},
	}}

	text, err := o.callWithRetry(ctx, contents)
	if err != nil {
		return nil, err
	}

	markdown := stripFences(text)
	return &analysis.Output{
		Markdown: markdown,
		Pages:    strings.Count(markdown, "## Page "),
	}, nil
}

// callWithRetry calls the model, retrying transient failures with
// exponential backoff: delay = base * 2^attempt * (0.5 + rand(0, 0.5)).
func (o *OCR) callWithRetry(ctx context.Context, contents []*genai.Content) (string, error) {
	maxRetries := o.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := o.config.RetryDelaySeconds
	if baseDelay < 1 {
		baseDelay = 1
	}

	// Workers call this concurrently and rand.Rand is not goroutine-safe.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		o.logger.DebugContext(ctx, "calling Gemini",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		resp, err := o.generator.GenerateContent(ctx, o.model, contents, nil)
		if err == nil {
			text, parseErr := responseText(resp)
			if parseErr != nil {
				o.logger.WarnContext(ctx, "permanent Gemini error, not retrying", "error", parseErr)
				return "", parseErr
			}
			return text, nil
		}

		o.logger.WarnContext(ctx, "Gemini call failed", "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				ErrTransientFailure, maxRetries, err)
		}

		backoff := float64(baseDelay) * math.Pow(2, float64(attempt))
		jitter := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoff * jitter * float64(time.Second))

		if err := o.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}
	}
}

// responseText extracts the concatenated text of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	switch {
	case resp == nil:
		return "", fmt.Errorf("%w: nil response", ErrInvalidResponse)
	case len(resp.Candidates) == 0:
		return "", fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", ErrContentBlocked
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w: response contains no text", ErrInvalidResponse)
	}
	return sb.String(), nil
}

// stripFences removes a ```markdown fence the model sometimes wraps around
// its whole answer.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		return ""
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
