package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/phrazzld/docmine-api/internal/analysis"
	"github.com/phrazzld/docmine-api/internal/domain"
	"github.com/phrazzld/docmine-api/internal/mocks"
	"github.com/phrazzld/docmine-api/internal/platform/filestore"
	"github.com/phrazzld/docmine-api/internal/platform/logger"
	"github.com/phrazzld/docmine-api/internal/platform/memory"
	"github.com/phrazzld/docmine-api/internal/service"
	"github.com/phrazzld/docmine-api/internal/store"
	"github.com/phrazzld/docmine-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type fixture struct {
	svc       *service.DocumentService
	registry  *memory.TaskRegistry
	artifacts *filestore.ArtifactStore
	analyzer  *mocks.MockAnalyzer
	runner    *task.TaskRunner
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	runner    task.TaskRunnerConfig
	noStart   bool
	artifacts store.ArtifactStore
}

func withRunner(workers, queue int) fixtureOption {
	return func(c *fixtureConfig) { c.runner = task.TaskRunnerConfig{WorkerCount: workers, QueueSize: queue} }
}

func withoutWorkers() fixtureOption {
	return func(c *fixtureConfig) { c.noStart = true }
}

func withArtifactStore(s store.ArtifactStore) fixtureOption {
	return func(c *fixtureConfig) { c.artifacts = s }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{runner: task.TaskRunnerConfig{WorkerCount: 4, QueueSize: 100}}
	for _, opt := range opts {
		opt(&cfg)
	}

	_, log := logger.NewBufferLogger()

	fs, err := filestore.NewArtifactStore(t.TempDir(), log)
	require.NoError(t, err)

	var artifacts store.ArtifactStore = fs
	if cfg.artifacts != nil {
		artifacts = cfg.artifacts
	}

	analyzer := &mocks.MockAnalyzer{}
	adapter, err := analysis.NewAdapter(analyzer, log)
	require.NoError(t, err)

	registry := memory.NewTaskRegistry()
	runner := task.NewTaskRunner(cfg.runner, log)

	svc, err := service.NewDocumentService(registry, artifacts, adapter, runner, log)
	require.NoError(t, err)

	if !cfg.noStart {
		require.NoError(t, runner.Start())
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = runner.Stop(ctx)
	})

	return &fixture{svc: svc, registry: registry, artifacts: fs, analyzer: analyzer, runner: runner}
}

func (f *fixture) waitTerminal(t *testing.T, id uuid.UUID) *domain.Task {
	t.Helper()
	var last *domain.Task
	require.Eventually(t, func() bool {
		got, err := f.svc.GetTask(context.Background(), id)
		if err != nil {
			return false
		}
		last = got
		return got.Status.IsTerminal()
	}, waitFor, 5*time.Millisecond)
	return last
}

func assertInvariants(t *testing.T, tk *domain.Task) {
	t.Helper()
	assert.Equal(t, tk.Status == domain.TaskStatusCompleted, tk.ResultRef != "", "result_ref iff completed")
	assert.Equal(t, tk.Status == domain.TaskStatusFailed, tk.ErrorMessage != "", "error_message iff failed")
	assert.NoError(t, tk.Validate())
}

func TestNewDocumentService_Validation(t *testing.T) {
	_, log := logger.NewBufferLogger()
	registry := memory.NewTaskRegistry()
	fs, err := filestore.NewArtifactStore(t.TempDir(), log)
	require.NoError(t, err)
	adapter, err := analysis.NewAdapter(&mocks.MockAnalyzer{}, log)
	require.NoError(t, err)
	runner := task.NewTaskRunner(task.DefaultTaskRunnerConfig(), log)

	tests := []struct {
		name      string
		registry  store.TaskRegistry
		artifacts store.ArtifactStore
		analyzer  service.Analyzer
		runner    service.TaskRunner
	}{
		{"nil_registry", nil, fs, adapter, runner},
		{"nil_artifacts", registry, nil, adapter, runner},
		{"nil_analyzer", registry, fs, nil, runner},
		{"nil_runner", registry, fs, adapter, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := service.NewDocumentService(tc.registry, tc.artifacts, tc.analyzer, tc.runner, log)
			assert.Nil(t, svc)
			var serr *service.DocumentServiceError
			assert.ErrorAs(t, err, &serr)
		})
	}

	svc, err := service.NewDocumentService(registry, fs, adapter, runner, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestSubmit_SyncTextDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Submit(ctx, "report.pdf", mocks.FakePDF("Quarterly revenue grew"), domain.StrategyText, domain.ModeSync)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.NotNil(t, got.CompletedAt)
	assert.Contains(t, got.ResultContent, "Quarterly revenue grew")
	assertInvariants(t, got)

	res, err := f.svc.FetchResult(ctx, got.ID)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "Quarterly revenue grew")

	onDisk, err := os.ReadFile(filepath.Join(f.artifacts.BundleDir(got.ID), filestore.ResultFileName))
	require.NoError(t, err)
	assert.Equal(t, res.Content, string(onDisk))

	upload, err := os.ReadFile(filepath.Join(f.artifacts.BundleDir(got.ID), "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, mocks.FakePDF("Quarterly revenue grew"), upload)
	assert.DirExists(t, filepath.Join(f.artifacts.BundleDir(got.ID), filestore.ImagesDirName))

	_, text, ocr := f.analyzer.Calls()
	assert.Equal(t, 1, text)
	assert.Equal(t, 0, ocr)
}

func TestSubmit_SynthesizesMissingFilename(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Submit(context.Background(), "", mocks.FakePDF("x"), "", domain.ModeSync)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("document_%s.pdf", got.ID), got.Filename)
	assert.Equal(t, domain.StrategyAuto, got.Strategy)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
}

func TestSubmit_ValidationCreatesNothing(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		mode     domain.ExecutionMode
		want     error
	}{
		{"empty_payload", "a.pdf", nil, domain.ModeSync, domain.ErrEmptyPayload},
		{"empty_payload_async", "a.pdf", []byte{}, domain.ModeAsync, domain.ErrEmptyPayload},
		{"image_extension", "photo.png", []byte("\x89PNG\r\n"), domain.ModeSync, domain.ErrUnsupportedType},
		{"pdf_name_not_pdf_content", "fake.pdf", []byte("hello"), domain.ModeAsync, domain.ErrUnsupportedType},
		{"unknown_mode", "a.pdf", mocks.FakePDF("x"), domain.ExecutionMode("later"), domain.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			got, err := f.svc.Submit(ctx, tc.filename, tc.data, domain.StrategyAuto, tc.mode)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, domain.ErrValidation)

			tasks, err := f.svc.ListTasks(ctx)
			require.NoError(t, err)
			assert.Empty(t, tasks)

			bundles, err := f.artifacts.ListBundles(ctx)
			require.NoError(t, err)
			assert.Empty(t, bundles)
		})
	}
}

func TestSubmit_SyncAnalyzerFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.analyzer.AnalyzeTextFn = func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
		return nil, errors.New("layout model crashed")
	}

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("x"), domain.StrategyText, domain.ModeSync)
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrAnalysisFailure)

	require.NotNil(t, got)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "layout model crashed")
	assertInvariants(t, got)

	_, err = f.svc.FetchResult(ctx, got.ID)
	var failed *service.TaskFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, got.ErrorMessage, failed.Message)

	_, err = f.svc.FetchArchive(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrNotReady)

	// No automatic retry.
	_, text, _ := f.analyzer.Calls()
	assert.Equal(t, 1, text)
}

func TestSubmit_AutoStrategyDispatchesOnClassification(t *testing.T) {
	f := newFixture(t)
	f.analyzer.ClassifyFn = func(ctx context.Context, data []byte) (analysis.Mode, error) {
		return analysis.ModeOCR, nil
	}

	got, err := f.svc.Submit(context.Background(), "scan.pdf", mocks.FakePDF("scanned page"), domain.StrategyAuto, domain.ModeSync)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)

	classify, text, ocr := f.analyzer.Calls()
	assert.Equal(t, 1, classify)
	assert.Equal(t, 0, text)
	assert.Equal(t, 1, ocr)
}

func TestSubmit_ImagesLandInBundle(t *testing.T) {
	f := newFixture(t)
	f.analyzer.AnalyzeTextFn = func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
		ref, err := images.WriteImage(ctx, "figure-1.png", []byte("png-bytes"))
		if err != nil {
			return nil, err
		}
		return &analysis.Output{Markdown: "![figure](" + ref + ")", Images: []string{ref}}, nil
	}

	got, err := f.svc.Submit(context.Background(), "a.pdf", mocks.FakePDF("x"), domain.StrategyText, domain.ModeSync)
	require.NoError(t, err)
	assert.Equal(t, "![figure](images/figure-1.png)", got.ResultContent)

	data, err := os.ReadFile(filepath.Join(f.artifacts.BundleDir(got.ID), "images", "figure-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestSubmit_AsyncConcurrentUploadsStayIsolated(t *testing.T) {
	f := newFixture(t, withRunner(4, 100))
	ctx := context.Background()

	const n = 25
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := f.svc.Submit(ctx, fmt.Sprintf("doc-%d.pdf", i), mocks.FakePDF(fmt.Sprintf("marker-%03d", i)),
				domain.StrategyText, domain.ModeAsync)
			if assert.NoError(t, err) {
				assert.Equal(t, domain.TaskStatusPending, got.Status)
				ids[i] = got.ID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uuid.UUID]bool, n)
	for i, id := range ids {
		require.NotEqual(t, uuid.Nil, id)
		require.False(t, seen[id], "duplicate task id")
		seen[id] = true

		final := f.waitTerminal(t, id)
		assert.Equal(t, domain.TaskStatusCompleted, final.Status)
		assertInvariants(t, final)

		res, err := f.svc.FetchResult(ctx, id)
		require.NoError(t, err)
		assert.Contains(t, res.Content, fmt.Sprintf("marker-%03d", i))
		for j := 0; j < n; j++ {
			if j != i {
				assert.NotContains(t, res.Content, fmt.Sprintf("marker-%03d", j))
			}
		}
	}

	tasks, err := f.svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, n)
}

func TestSubmit_AsyncFailureIsDiscoveredByPolling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.analyzer.AnalyzeOCRFn = func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
		return nil, errors.New("no text recognized")
	}

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("x"), domain.StrategyOCR, domain.ModeAsync)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, got.Status)

	final := f.waitTerminal(t, got.ID)
	assert.Equal(t, domain.TaskStatusFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "no text recognized")
	assertInvariants(t, final)
}

func TestSubmit_AsyncQueueFull(t *testing.T) {
	f := newFixture(t, withRunner(1, 1), withoutWorkers())
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("a"), domain.StrategyText, domain.ModeAsync)
	require.NoError(t, err)

	second, err := f.svc.Submit(ctx, "b.pdf", mocks.FakePDF("b"), domain.StrategyText, domain.ModeAsync)
	require.NoError(t, err, "async callers learn of failure by polling")
	require.NotNil(t, second)
	assert.Equal(t, domain.TaskStatusFailed, second.Status)
	assert.Equal(t, service.ErrQueueFull.Error(), second.ErrorMessage)
	assertInvariants(t, second)

	tasks, err := f.svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, domain.TaskStatusPending, tasks[0].Status)
	assert.Equal(t, second.ID, tasks[1].ID)
	assert.Equal(t, domain.TaskStatusFailed, tasks[1].Status)

	polled, err := f.svc.GetTask(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ErrorMessage, polled.ErrorMessage)
}

func TestSubmit_AsyncAfterShutdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.runner.Stop(ctx))

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("a"), domain.StrategyText, domain.ModeAsync)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, service.ErrShuttingDown.Error(), got.ErrorMessage)
}

func TestFetch_NotReadyWhileProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.analyzer.AnalyzeTextFn = func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
		close(started)
		<-release
		return mocks.EchoOutput(data), nil
	}

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("slow"), domain.StrategyText, domain.ModeAsync)
	require.NoError(t, err)

	// Pending or processing, results are not ready.
	_, err = f.svc.FetchResult(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrNotReady)

	<-started
	snapshot, err := f.svc.GetTask(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, snapshot.Status)
	assertInvariants(t, snapshot)

	_, err = f.svc.FetchResult(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrNotReady)
	_, err = f.svc.FetchArchive(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrNotReady)

	close(release)
	assert.Equal(t, domain.TaskStatusCompleted, f.waitTerminal(t, got.ID).Status)
}

func TestFetchArchive_IsRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Submit(ctx, "paper.pdf", mocks.FakePDF("archived body"), domain.StrategyText, domain.ModeSync)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		archive, err := f.svc.FetchArchive(ctx, got.ID)
		require.NoError(t, err)
		assert.Equal(t, f.artifacts.ArchivePath(got.ID), archive.Path)
		assert.Equal(t, "paper.pdf", archive.Task.Filename)

		r, err := zip.OpenReader(archive.Path)
		require.NoError(t, err)
		names := make(map[string]bool)
		for _, file := range r.File {
			names[file.Name] = true
			if file.Name == filestore.ResultFileName {
				rc, err := file.Open()
				require.NoError(t, err)
				body, err := io.ReadAll(rc)
				require.NoError(t, err)
				rc.Close()
				assert.Contains(t, string(body), "archived body")
			}
		}
		require.NoError(t, r.Close())
		assert.True(t, names["paper.pdf"])
		assert.True(t, names[filestore.ResultFileName])
	}
}

func TestFetchResult_FallsBackToStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("stored copy"), domain.StrategyText, domain.ModeSync)
	require.NoError(t, err)

	// Drop the cached copy.
	_, err = f.registry.Update(ctx, got.ID, func(tk *domain.Task) error {
		tk.ResultContent = ""
		return nil
	})
	require.NoError(t, err)

	res, err := f.svc.FetchResult(ctx, got.ID)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "stored copy")

	// Lost from disk: a distinct not-found kind.
	require.NoError(t, os.Remove(filepath.Join(f.artifacts.BundleDir(got.ID), filestore.ResultFileName)))
	_, err = f.svc.FetchResult(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrResultNotFound)
	assert.NotErrorIs(t, err, service.ErrTaskNotFound)

	require.NoError(t, os.RemoveAll(f.artifacts.BundleDir(got.ID)))
	_, err = f.svc.FetchArchive(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrResultNotFound)
}

func TestUnknownTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := f.svc.GetTask(ctx, id)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	_, err = f.svc.FetchResult(ctx, id)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	_, err = f.svc.FetchArchive(ctx, id)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	assert.ErrorIs(t, f.svc.Remove(ctx, id), service.ErrTaskNotFound)
}

func TestRemove_CompletedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("x"), domain.StrategyText, domain.ModeSync)
	require.NoError(t, err)
	_, err = f.svc.FetchArchive(ctx, got.ID)
	require.NoError(t, err)
	require.FileExists(t, f.artifacts.ArchivePath(got.ID))

	require.NoError(t, f.svc.Remove(ctx, got.ID))

	_, err = f.svc.GetTask(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	_, err = f.svc.FetchResult(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	assert.NoDirExists(t, f.artifacts.BundleDir(got.ID))
	assert.NoFileExists(t, f.artifacts.ArchivePath(got.ID))

	assert.ErrorIs(t, f.svc.Remove(ctx, got.ID), service.ErrTaskNotFound)
}

func TestRemove_PendingTaskIsNeverProcessed(t *testing.T) {
	f := newFixture(t, withoutWorkers())
	ctx := context.Background()

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("x"), domain.StrategyText, domain.ModeAsync)
	require.NoError(t, err)
	require.DirExists(t, f.artifacts.BundleDir(got.ID))

	require.NoError(t, f.svc.Remove(ctx, got.ID))
	assert.NoDirExists(t, f.artifacts.BundleDir(got.ID))

	// The queued job finds no record and does nothing.
	require.NoError(t, f.runner.Start())
	stopCtx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()
	require.NoError(t, f.runner.Stop(stopCtx))

	_, text, _ := f.analyzer.Calls()
	assert.Equal(t, 0, text)
	assert.Equal(t, 0, f.registry.Count())
	assert.NoDirExists(t, f.artifacts.BundleDir(got.ID))
}

func TestRemove_WhileProcessingIsTombstoned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.analyzer.AnalyzeTextFn = func(ctx context.Context, data []byte, images analysis.ImageWriter) (*analysis.Output, error) {
		close(started)
		<-release
		return mocks.EchoOutput(data), nil
	}

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("x"), domain.StrategyText, domain.ModeAsync)
	require.NoError(t, err)
	<-started

	require.NoError(t, f.svc.Remove(ctx, got.ID))

	// Gone from the registry at once; the worker still owns the files.
	_, err = f.svc.GetTask(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	assert.DirExists(t, f.artifacts.BundleDir(got.ID))

	close(release)

	assert.Eventually(t, func() bool {
		_, statErr := os.Stat(f.artifacts.BundleDir(got.ID))
		return os.IsNotExist(statErr)
	}, waitFor, 5*time.Millisecond)

	// Not resurrected.
	_, err = f.svc.GetTask(ctx, got.ID)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	assert.Equal(t, 0, f.registry.Count())
}

func TestProcess_RunsAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("x"), domain.StrategyText, domain.ModeSync)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Process(ctx, got.ID), service.ErrAlreadyProcessed)
	assert.NoError(t, f.svc.Process(ctx, uuid.New()))

	_, text, _ := f.analyzer.Calls()
	assert.Equal(t, 1, text)
}

func TestProcess_MissingUploadFails(t *testing.T) {
	f := newFixture(t, withoutWorkers())
	ctx := context.Background()

	got, err := f.svc.Submit(ctx, "a.pdf", mocks.FakePDF("x"), domain.StrategyText, domain.ModeAsync)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.artifacts.BundleDir(got.ID), "a.pdf")))

	err = f.svc.Process(ctx, got.ID)
	assert.ErrorIs(t, err, store.ErrUploadNotFound)

	final, err := f.svc.GetTask(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, final.Status)
	assert.Equal(t, "uploaded file is missing or empty", final.ErrorMessage)
}
