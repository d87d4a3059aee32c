package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/okanoue/manga-downloader/internal/assemble"
	"github.com/okanoue/manga-downloader/internal/config"
	httpx "github.com/okanoue/manga-downloader/internal/http"
	"github.com/okanoue/manga-downloader/internal/ioutils"
	"github.com/okanoue/manga-downloader/internal/model"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Source lists a target's chapters and a chapter's pages.
//
// *mangafox.Client satisfies this; tests substitute their own.
type Source interface {
	ListChapters(ctx context.Context, target model.Target) ([]model.Chapter, error)
	ListPages(ctx context.Context, ch model.Chapter) ([]model.Page, error)
}

// Manager coordinates chapter downloads.
//
// Concurrency is bounded at three levels: chapters in flight, pages in
// flight per chapter, and a global ceiling on simultaneous image
// connections shared by all chapters.
type Manager struct {
	settings  *config.Settings
	source    Source
	client    *httpx.Client
	assembler assemble.Assembler
	logger    *slog.Logger

	pathCfg  *model.PathConfig
	chapters []model.Chapter
	sem      *semaphore.Weighted

	totalPages      int32
	downloadedPages int32
	doneChapters    int32

	onProgress func(ProgressEvent)
}

// NewManager creates a download Manager.
//
// assembler may be nil, meaning page images are kept as-is with no
// chapter file written. onProgress may be nil.
func NewManager(settings *config.Settings, source Source, client *httpx.Client, assembler assemble.Assembler, logger *slog.Logger, onProgress func(ProgressEvent)) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		settings:   settings,
		source:     source,
		client:     client,
		assembler:  assembler,
		logger:     logger,
		pathCfg:    settings.ToPathConfig(),
		sem:        semaphore.NewWeighted(int64(settings.GlobalConnectionLimit)),
		onProgress: onProgress,
	}
}

// Initialize resolves the target into the chapter list to download.
func (m *Manager) Initialize(ctx context.Context, target model.Target) error {
	chapters, err := m.source.ListChapters(ctx, target)
	if err != nil {
		return err
	}

	m.chapters = chapters
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Found %d chapter(s)", len(chapters)),
		Level:   LevelInfo,
	})
	return nil
}

// Run downloads every initialized chapter and returns the run summary.
//
// Chapter failures are isolated: one chapter going bad never stops the
// others. The only error Run itself returns is context cancellation.
func (m *Manager) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.MaxConcurrentChapters)

	for _, ch := range m.chapters {
		g.Go(func() error {
			res := m.processChapter(gctx, ch)
			summary.Add(res)
			atomic.AddInt32(&m.doneChapters, 1)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (pagesDone, pagesTotal, chaptersDone, chaptersTotal int32) {
	return atomic.LoadInt32(&m.downloadedPages), atomic.LoadInt32(&m.totalPages),
		atomic.LoadInt32(&m.doneChapters), int32(len(m.chapters))
}

// GetChapterLabels returns display labels for all initialized chapters.
func (m *Manager) GetChapterLabels() []string {
	labels := make([]string, len(m.chapters))
	for i, ch := range m.chapters {
		labels[i] = ch.Label()
	}
	return labels
}

// processChapter runs one chapter to its terminal result. All failures
// are folded into the result; the chapter never takes down the run.
func (m *Manager) processChapter(ctx context.Context, ch model.Chapter) ChapterResult {
	res := ChapterResult{Chapter: ch}

	var outputPath string
	if m.assembler != nil {
		outputPath = ch.OutputPath(m.pathCfg, m.assembler.Extension())
		if ioutils.FileNonEmpty(outputPath) {
			m.progress(ProgressEvent{
				Message: fmt.Sprintf("Skipping %s: %s exists", ch.Label(), outputPath),
				Level:   LevelVerbose,
			})
			res.Outcome = OutcomeCompleted
			res.OutputPath = outputPath
			res.Skipped = true
			return res
		}
	}

	m.logger.Info("chapter started", "chapter", ch.Label())

	pages, err := m.source.ListPages(ctx, ch)
	if err != nil {
		return m.failChapter(res, fmt.Errorf("%w: %v", model.ErrChapterUnavailable, err))
	}
	if len(pages) == 0 {
		return m.failChapter(res, fmt.Errorf("%w: %s", model.ErrNoPages, ch.Label()))
	}
	atomic.AddInt32(&m.totalPages, int32(len(pages)))

	job, err := m.downloadPages(ctx, ch, pages)
	if err != nil {
		return m.failChapter(res, err)
	}

	missing := job.MissingCount()
	if missing == len(job.Tasks) {
		return m.failChapter(res, fmt.Errorf("all %d pages failed for %s", missing, ch.Label()))
	}

	if m.assembler == nil {
		res.Outcome = OutcomeCompleted
		if missing > 0 {
			res.Outcome = OutcomePartiallyFailed
			res.MissingPages = missing
		}
		m.logChapterDone(ch, res)
		return res
	}

	if err := m.assembler.Assemble(ctx, job.SucceededPaths(), outputPath); err != nil {
		// Images stay on disk so a later run can finish the job.
		return m.failChapter(res, fmt.Errorf("assembling %s: %w", ch.Label(), err))
	}
	res.OutputPath = outputPath

	res.Outcome = OutcomeCompleted
	if missing > 0 {
		res.Outcome = OutcomePartiallyFailed
		res.MissingPages = missing
	}

	// The output exists now; only then may the intermediates go.
	if !m.settings.KeepImages && missing == 0 {
		m.cleanupImages(job)
	}

	m.logChapterDone(ch, res)
	return res
}

// downloadPages fetches a chapter's pages through the bounded worker
// pool. The returned error is cancellation only; per-page failures are
// recorded on the tasks.
func (m *Manager) downloadPages(ctx context.Context, ch model.Chapter, pages []model.Page) (*ChapterJob, error) {
	imagesDir := ch.ImagesDir(m.pathCfg)
	if err := ioutils.EnsureDir(imagesDir); err != nil {
		return nil, fmt.Errorf("creating %s: %w", imagesDir, err)
	}

	job := &ChapterJob{
		Chapter:   ch,
		ImagesDir: imagesDir,
		Tasks:     make([]*PageTask, len(pages)),
	}
	for i, p := range pages {
		job.Tasks[i] = &PageTask{
			Page: p,
			Path: filepath.Join(imagesDir, p.Filename),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.MaxConcurrentPages)

	for _, task := range job.Tasks {
		g.Go(func() error {
			m.downloadPage(gctx, ch, task)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return job, err
	}
	return job, nil
}

// downloadPage drives one task to a terminal state.
func (m *Manager) downloadPage(ctx context.Context, ch model.Chapter, task *PageTask) {
	if ioutils.FileNonEmpty(task.Path) {
		task.Status = TaskSucceeded
		atomic.AddInt32(&m.downloadedPages, 1)
		return
	}

	task.Status = TaskInFlight

	err := retry.Do(
		func() error {
			task.Attempts++
			if err := m.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer m.sem.Release(1)
			return m.client.DownloadFile(ctx, task.Page.URL, ch.URL, task.Path)
		},
		retry.Context(ctx),
		retry.Attempts(uint(m.settings.MaxRetries)),
		retry.Delay(m.settings.RetryCooldown),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			m.logger.Warn("page retried",
				"chapter", ch.Label(),
				"page", task.Page.Index,
				"attempt", task.Attempts,
				"error", err)
		}),
	)

	if err != nil {
		task.Status = TaskFailed
		task.Err = err
		m.logger.Error("page failed",
			"chapter", ch.Label(),
			"page", task.Page.Index,
			"attempts", task.Attempts,
			"error", err)
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Failed %s page %d: %v", ch.Label(), task.Page.Index, err),
			Level:   LevelWarning,
		})
		return
	}

	task.Status = TaskSucceeded
	atomic.AddInt32(&m.downloadedPages, 1)
	m.logger.Debug("page downloaded",
		"chapter", ch.Label(), "page", task.Page.Index, "path", task.Path)
}

// isRetryable decides whether a download error deserves another attempt.
// HTTP 429 and 5xx are transient; other HTTP statuses are final.
// Network-level errors retry, cancellation does not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

func (m *Manager) failChapter(res ChapterResult, err error) ChapterResult {
	res.Outcome = OutcomeFailed
	res.Err = err
	m.logger.Error("chapter failed", "chapter", res.Chapter.Label(), "error", err)
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Chapter %s failed: %v", res.Chapter.Label(), err),
		Level:   LevelError,
	})
	return res
}

func (m *Manager) cleanupImages(job *ChapterJob) {
	for _, t := range job.Tasks {
		if t.Status == TaskSucceeded {
			if err := os.Remove(t.Path); err != nil {
				m.logger.Warn("could not remove page image", "path", t.Path, "error", err)
			}
		}
	}
	if err := ioutils.RemoveDirIfEmpty(job.ImagesDir); err != nil {
		m.logger.Warn("could not remove images dir", "path", job.ImagesDir, "error", err)
	}
}

func (m *Manager) logChapterDone(ch model.Chapter, res ChapterResult) {
	switch res.Outcome {
	case OutcomeCompleted:
		m.logger.Info("chapter done", "chapter", ch.Label(), "output", res.OutputPath)
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Finished %s", ch.Label()),
			Level:   LevelSuccess,
		})
	case OutcomePartiallyFailed:
		m.logger.Warn("chapter incomplete",
			"chapter", ch.Label(), "missing_pages", res.MissingPages, "output", res.OutputPath)
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Finished %s with %d missing page(s)", ch.Label(), res.MissingPages),
			Level:   LevelWarning,
		})
	}
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
