package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/docmine-api/internal/analysis"
	"github.com/phrazzld/docmine-api/internal/domain"
	"github.com/phrazzld/docmine-api/internal/mocks"
	"github.com/phrazzld/docmine-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, analyzer analysis.Analyzer) *analysis.Adapter {
	t.Helper()
	_, log := logger.NewBufferLogger()
	a, err := analysis.NewAdapter(analyzer, log)
	require.NoError(t, err)
	return a
}

func TestNewAdapter_Validation(t *testing.T) {
	_, log := logger.NewBufferLogger()

	_, err := analysis.NewAdapter(nil, log)
	assert.Error(t, err)

	_, err = analysis.NewAdapter(&mocks.MockAnalyzer{}, nil)
	assert.Error(t, err)
}

func TestAdapter_StrategyDispatch(t *testing.T) {
	tests := []struct {
		name         string
		strategy     domain.ParseStrategy
		classifyMode analysis.Mode
		wantMode     analysis.Mode
		wantClassify int
		wantText     int
		wantOCR      int
	}{
		{"txt_forces_text", domain.StrategyText, analysis.ModeOCR, analysis.ModeText, 0, 1, 0},
		{"ocr_forces_ocr", domain.StrategyOCR, analysis.ModeText, analysis.ModeOCR, 0, 0, 1},
		{"auto_classified_text", domain.StrategyAuto, analysis.ModeText, analysis.ModeText, 1, 1, 0},
		{"auto_classified_ocr", domain.StrategyAuto, analysis.ModeOCR, analysis.ModeOCR, 1, 0, 1},
		{"empty_means_auto", "", analysis.ModeOCR, analysis.ModeOCR, 1, 0, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &mocks.MockAnalyzer{
				ClassifyFn: func(ctx context.Context, data []byte) (analysis.Mode, error) {
					return tc.classifyMode, nil
				},
			}

			res, err := newAdapter(t, m).Analyze(context.Background(), mocks.FakePDF("body text"), tc.strategy, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.wantMode, res.Mode)
			assert.Contains(t, res.Content, "body text")

			classify, text, ocr := m.Calls()
			assert.Equal(t, tc.wantClassify, classify)
			assert.Equal(t, tc.wantText, text)
			assert.Equal(t, tc.wantOCR, ocr)
		})
	}
}

type engineError struct{ code int }

func (e *engineError) Error() string { return "engine exploded" }

func TestAdapter_WrapsCollaboratorErrors(t *testing.T) {
	cause := &engineError{code: 7}

	tests := []struct {
		name     string
		strategy domain.ParseStrategy
		mock     *mocks.MockAnalyzer
		stage    string
	}{
		{
			name:     "text_error",
			strategy: domain.StrategyText,
			mock: &mocks.MockAnalyzer{
				AnalyzeTextFn: func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
					return nil, cause
				},
			},
			stage: "txt",
		},
		{
			name:     "ocr_error",
			strategy: domain.StrategyOCR,
			mock: &mocks.MockAnalyzer{
				AnalyzeOCRFn: func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
					return nil, cause
				},
			},
			stage: "ocr",
		},
		{
			name:     "classify_error",
			strategy: domain.StrategyAuto,
			mock: &mocks.MockAnalyzer{
				ClassifyFn: func(ctx context.Context, data []byte) (analysis.Mode, error) {
					return "", cause
				},
			},
			stage: "classify",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newAdapter(t, tc.mock).Analyze(context.Background(), mocks.FakePDF("x"), tc.strategy, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, analysis.ErrAnalysisFailure))

			var aerr *analysis.Error
			require.True(t, errors.As(err, &aerr))
			assert.Equal(t, tc.stage, aerr.Stage)
			assert.Equal(t, "engine exploded", aerr.Detail)
			assert.Contains(t, err.Error(), "engine exploded")

			var leaked *engineError
			assert.False(t, errors.As(err, &leaked), "collaborator error type must not escape the adapter")
			assert.Nil(t, aerr.Kind)
		})
	}
}

func TestAdapter_RecoversPanics(t *testing.T) {
	m := &mocks.MockAnalyzer{
		AnalyzeTextFn: func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
			panic("index out of range")
		},
	}

	_, err := newAdapter(t, m).Analyze(context.Background(), mocks.FakePDF("x"), domain.StrategyText, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, analysis.ErrAnalysisFailure))
	assert.Contains(t, err.Error(), "index out of range")
}

func TestAdapter_EmptyResultIsFailure(t *testing.T) {
	for _, out := range []*analysis.Output{nil, {Markdown: "   \n"}} {
		m := &mocks.MockAnalyzer{
			AnalyzeTextFn: func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
				return out, nil
			},
		}

		_, err := newAdapter(t, m).Analyze(context.Background(), mocks.FakePDF("x"), domain.StrategyText, nil)
		var aerr *analysis.Error
		require.True(t, errors.As(err, &aerr))
		assert.Equal(t, analysis.ErrEmptyResult, aerr.Kind)
		assert.True(t, errors.Is(err, analysis.ErrEmptyResult))
		assert.True(t, errors.Is(err, analysis.ErrAnalysisFailure))
	}
}

func TestAdapter_InvalidInputs(t *testing.T) {
	a := newAdapter(t, &mocks.MockAnalyzer{})

	_, err := a.Analyze(context.Background(), nil, domain.StrategyText, nil)
	assert.True(t, errors.Is(err, analysis.ErrEmptyDocument))
	assert.True(t, errors.Is(err, analysis.ErrAnalysisFailure))

	_, err = a.Analyze(context.Background(), mocks.FakePDF("x"), domain.ParseStrategy("layout"), nil)
	assert.True(t, errors.Is(err, analysis.ErrAnalysisFailure))

	unknown := &mocks.MockAnalyzer{
		ClassifyFn: func(ctx context.Context, data []byte) (analysis.Mode, error) { return "hybrid", nil },
	}
	_, err = newAdapter(t, unknown).Analyze(context.Background(), mocks.FakePDF("x"), domain.StrategyAuto, nil)
	assert.True(t, errors.Is(err, analysis.ErrAnalysisFailure))
}

func TestAdapter_PassesImageWriter(t *testing.T) {
	var written []string
	images := analysis.ImageWriterFunc(func(ctx context.Context, name string, data []byte) (string, error) {
		written = append(written, name)
		return "images/" + name, nil
	})

	m := &mocks.MockAnalyzer{
		AnalyzeTextFn: func(ctx context.Context, data []byte, w analysis.ImageWriter) (*analysis.Output, error) {
			ref, err := w.WriteImage(ctx, "fig-1.png", []byte{1})
			if err != nil {
				return nil, err
			}
			return &analysis.Output{Markdown: "![](" + ref + ")", Images: []string{ref}}, nil
		},
	}

	res, err := newAdapter(t, m).Analyze(context.Background(), mocks.FakePDF("x"), domain.StrategyText, images)
	require.NoError(t, err)
	assert.Equal(t, []string{"fig-1.png"}, written)
	assert.Equal(t, []string{"images/fig-1.png"}, res.Images)
	assert.Equal(t, "![](images/fig-1.png)", res.Content)
}

func TestComposite(t *testing.T) {
	text := &mocks.MockAnalyzer{}

	_, err := analysis.NewComposite(nil, nil)
	assert.Error(t, err)

	c, err := analysis.NewComposite(text, nil)
	require.NoError(t, err)

	_, err = c.AnalyzeOCR(context.Background(), mocks.FakePDF("x"), nil)
	assert.True(t, errors.Is(err, analysis.ErrModeUnavailable))

	out, err := c.AnalyzeText(context.Background(), mocks.FakePDF("hello"), nil)
	require.NoError(t, err)
	assert.Contains(t, out.Markdown, "hello")

	ocr := &mocks.MockAnalyzer{}
	c, err = analysis.NewComposite(text, ocr)
	require.NoError(t, err)
	_, err = c.AnalyzeOCR(context.Background(), mocks.FakePDF("x"), nil)
	require.NoError(t, err)
	_, _, ocrCalls := ocr.Calls()
	assert.Equal(t, 1, ocrCalls)
}
