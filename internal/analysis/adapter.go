package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/docmine-api/internal/domain"
)

// Adapter runs the external Analyzer for a requested parse strategy.
// Every error it returns is an *Error matching ErrAnalysisFailure.
type Adapter struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// NewAdapter creates an Adapter around the given analyzer.
func NewAdapter(analyzer Analyzer, logger *slog.Logger) (*Adapter, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Adapter{
		analyzer: analyzer,
		logger:   logger.With("component", "analysis_adapter"),
	}, nil
}

// Analyze renders data using strategy. For StrategyAuto the document is
// classified first and then dispatched to text or OCR mode.
func (a *Adapter) Analyze(
	ctx context.Context,
	data []byte,
	strategy domain.ParseStrategy,
	images ImageWriter,
) (*Result, error) {
	if len(data) == 0 {
		return nil, newError("input", ErrEmptyDocument)
	}
	if images == nil {
		images = DiscardImages
	}

	mode, err := a.resolveMode(ctx, data, strategy)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var out *Output
	err = guard(func() error {
		var callErr error
		switch mode {
		case ModeOCR:
			out, callErr = a.analyzer.AnalyzeOCR(ctx, data, images)
		default:
			out, callErr = a.analyzer.AnalyzeText(ctx, data, images)
		}
		return callErr
	})
	if err != nil {
		a.logger.WarnContext(ctx, "analyzer failed",
			"mode", mode,
			"strategy", strategy,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, newError(string(mode), err)
	}
	if out == nil || strings.TrimSpace(out.Markdown) == "" {
		return nil, newError(string(mode), ErrEmptyResult)
	}

	a.logger.DebugContext(ctx, "analysis finished",
		"mode", mode,
		"strategy", strategy,
		"pages", out.Pages,
		"images", len(out.Images),
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{
		Content: out.Markdown,
		Mode:    mode,
		Pages:   out.Pages,
		Images:  out.Images,
	}, nil
}

func (a *Adapter) resolveMode(ctx context.Context, data []byte, strategy domain.ParseStrategy) (Mode, error) {
	switch strategy {
	case domain.StrategyText:
		return ModeText, nil
	case domain.StrategyOCR:
		return ModeOCR, nil
	case domain.StrategyAuto, "":
	default:
		return "", newError("input", fmt.Errorf("unknown parse strategy %q", strategy))
	}

	var mode Mode
	err := guard(func() error {
		var classifyErr error
		mode, classifyErr = a.analyzer.Classify(ctx, data)
		return classifyErr
	})
	if err != nil {
		return "", newError("classify", err)
	}

	switch mode {
	case ModeText, ModeOCR:
	default:
		return "", newError("classify", fmt.Errorf("analyzer returned unknown mode %q", mode))
	}

	a.logger.DebugContext(ctx, "document classified", "mode", mode)
	return mode, nil
}

// guard runs fn and converts a panic inside the collaborator into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return fn()
}
