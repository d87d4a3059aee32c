package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okanoue/manga-downloader/internal/assemble"
	"github.com/okanoue/manga-downloader/internal/config"
	httpx "github.com/okanoue/manga-downloader/internal/http"
	"github.com/okanoue/manga-downloader/internal/model"
)

// fakeSource serves canned chapters and pages, with optional per-chapter
// page listing failures.
type fakeSource struct {
	chapters    []model.Chapter
	pages       map[string][]model.Page // keyed by chapter number
	listPageErr map[string]error
}

func (f *fakeSource) ListChapters(ctx context.Context, target model.Target) ([]model.Chapter, error) {
	return f.chapters, nil
}

func (f *fakeSource) ListPages(ctx context.Context, ch model.Chapter) ([]model.Page, error) {
	if err := f.listPageErr[ch.Number]; err != nil {
		return nil, err
	}
	return f.pages[ch.Number], nil
}

// recordingAssembler records the image paths each Assemble call got and
// writes a placeholder output file.
type recordingAssembler struct {
	mu    sync.Mutex
	calls map[string][]string // outputPath -> imagePaths
	err   error
}

func newRecordingAssembler() *recordingAssembler {
	return &recordingAssembler{calls: make(map[string][]string)}
}

func (a *recordingAssembler) Extension() string { return ".pdf" }

func (a *recordingAssembler) Assemble(ctx context.Context, imagePaths []string, outputPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	paths := make([]string, len(imagePaths))
	copy(paths, imagePaths)
	a.calls[outputPath] = paths

	if a.err != nil {
		return a.err
	}
	return os.WriteFile(outputPath, []byte("output"), 0644)
}

func (a *recordingAssembler) got(outputPath string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[outputPath]
}

func (a *recordingAssembler) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// countingHandler serves fake page images and counts requests per path,
// recording each request's arrival time and the number of requests in
// flight. Paths registered in fail always answer with their status code;
// the optional jitter shuffles completion order.
type countingHandler struct {
	mu       sync.Mutex
	counts   map[string]int
	times    map[string][]time.Time
	fail     map[string]int
	jitter   time.Duration
	inFlight int
	peak     int
}

func newCountingHandler() *countingHandler {
	return &countingHandler{
		counts: make(map[string]int),
		times:  make(map[string][]time.Time),
		fail:   make(map[string]int),
	}
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.counts[r.URL.Path]++
	h.times[r.URL.Path] = append(h.times[r.URL.Path], time.Now())
	status := h.fail[r.URL.Path]
	h.inFlight++
	if h.inFlight > h.peak {
		h.peak = h.inFlight
	}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.inFlight--
		h.mu.Unlock()
	}()

	if h.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(h.jitter))))
	}

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	fmt.Fprintf(w, "image bytes for %s", r.URL.Path)
}

func (h *countingHandler) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[path]
}

func (h *countingHandler) timestamps(path string) []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.times[path]
}

func (h *countingHandler) peakInFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peak
}

func (h *countingHandler) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.counts {
		n += c
	}
	return n
}

func testSettings(t *testing.T) *config.Settings {
	s := config.DefaultSettings()
	s.DownloadDir = t.TempDir()
	s.MaxConcurrentChapters = 2
	s.MaxConcurrentPages = 4
	s.GlobalConnectionLimit = 8
	s.MaxRetries = 3
	s.RetryCooldown = time.Millisecond
	s.RequestDelay = 0
	s.RequestTimeout = 5 * time.Second
	return s
}

func testChapter(baseURL, number string) model.Chapter {
	return model.Chapter{
		Series: "test",
		Volume: "v01",
		Number: number,
		URL:    baseURL + "/manga/test/v01/c" + number + "/1.html",
	}
}

func testPages(baseURL, number string, n int) []model.Page {
	pages := make([]model.Page, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, model.Page{
			Index:    i,
			URL:      fmt.Sprintf("%s/img/c%s/%02d.jpg", baseURL, number, i),
			Filename: fmt.Sprintf("%02d.jpg", i),
		})
	}
	return pages
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runManager(t *testing.T, settings *config.Settings, source Source, asm *recordingAssembler) *RunSummary {
	t.Helper()

	client := httpx.NewClient(settings.RequestTimeout, 0)
	var a assemble.Assembler
	if asm != nil {
		a = asm
	}

	m := NewManager(settings, source, client, a, quietLogger(), nil)
	if err := m.Initialize(context.Background(), model.Target{Kind: model.TargetSeries, Series: "test"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	summary, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return summary
}

func TestManager_Run_AssemblesInPageOrder(t *testing.T) {
	handler := newCountingHandler()
	handler.jitter = 10 * time.Millisecond
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 10)},
	}
	asm := newRecordingAssembler()

	summary := runManager(t, settings, source, asm)

	results := summary.Results()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %v, want completed (err: %v)", results[0].Outcome, results[0].Err)
	}

	got := asm.got(results[0].OutputPath)
	if len(got) != 10 {
		t.Fatalf("assembler got %d images, want 10", len(got))
	}
	// Downloads finish in arbitrary order; assembly input must not.
	if !sort.StringsAreSorted(got) {
		t.Errorf("image paths not in page order: %v", got)
	}

	// Intermediates are gone once the output exists.
	for _, p := range got {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("page image %s should have been removed", p)
		}
	}
}

func TestManager_Run_PartialFailure(t *testing.T) {
	handler := newCountingHandler()
	handler.fail["/img/c001/07.jpg"] = http.StatusNotFound
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 10)},
	}
	asm := newRecordingAssembler()

	summary := runManager(t, settings, source, asm)

	results := summary.Results()
	if results[0].Outcome != OutcomePartiallyFailed {
		t.Fatalf("Outcome = %v, want partially failed", results[0].Outcome)
	}
	if results[0].MissingPages != 1 {
		t.Errorf("MissingPages = %d, want 1", results[0].MissingPages)
	}
	if got := asm.got(results[0].OutputPath); len(got) != 9 {
		t.Errorf("assembler got %d images, want 9", len(got))
	}
	if summary.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", summary.ExitCode())
	}

	// Downloaded pages stay on disk; removing the partial output and
	// re-running reuses them.
	imagesDir := ch.ImagesDir(settings.ToPathConfig())
	entries, err := os.ReadDir(imagesDir)
	if err != nil || len(entries) != 9 {
		t.Errorf("expected 9 kept images in %s, got %d (%v)", imagesDir, len(entries), err)
	}
}

func TestManager_Run_NotFoundNotRetried(t *testing.T) {
	handler := newCountingHandler()
	handler.fail["/img/c001/01.jpg"] = http.StatusNotFound
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 2)},
	}

	runManager(t, settings, source, newRecordingAssembler())

	if n := handler.count("/img/c001/01.jpg"); n != 1 {
		t.Errorf("404 page was requested %d times, want exactly 1", n)
	}
}

func TestManager_Run_ServerErrorRetried(t *testing.T) {
	handler := newCountingHandler()
	handler.fail["/img/c001/01.jpg"] = http.StatusServiceUnavailable
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 2)},
	}

	runManager(t, settings, source, newRecordingAssembler())

	if n := handler.count("/img/c001/01.jpg"); n != settings.MaxRetries {
		t.Errorf("503 page was requested %d times, want %d", n, settings.MaxRetries)
	}
}

func TestManager_Run_RetryBackoffIncreases(t *testing.T) {
	handler := newCountingHandler()
	handler.fail["/img/c001/01.jpg"] = http.StatusServiceUnavailable
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	settings.RetryCooldown = 50 * time.Millisecond
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 1)},
	}

	runManager(t, settings, source, nil)

	stamps := handler.timestamps("/img/c001/01.jpg")
	if len(stamps) != settings.MaxRetries {
		t.Fatalf("got %d attempts, want %d", len(stamps), settings.MaxRetries)
	}

	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	if first < settings.RetryCooldown {
		t.Errorf("first retry waited %v, want at least %v", first, settings.RetryCooldown)
	}
	// The cooldown doubles on every attempt, so each gap must outgrow
	// the one before it.
	if second <= first {
		t.Errorf("retry gaps not increasing: %v then %v", first, second)
	}
}

func TestManager_Run_GlobalConnectionCeiling(t *testing.T) {
	handler := newCountingHandler()
	handler.jitter = 15 * time.Millisecond
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	settings.MaxConcurrentChapters = 4
	settings.MaxConcurrentPages = 4
	settings.GlobalConnectionLimit = 3

	source := &fakeSource{pages: make(map[string][]model.Page)}
	for _, n := range []string{"001", "002", "003", "004"} {
		source.chapters = append(source.chapters, testChapter(srv.URL, n))
		source.pages[n] = testPages(srv.URL, n, 4)
	}

	runManager(t, settings, source, nil)

	if n := handler.total(); n != 16 {
		t.Fatalf("got %d downloads, want 16", n)
	}
	// Chapter and page workers together could open 16 connections; the
	// shared semaphore must hold them to the global limit.
	if peak := handler.peakInFlight(); peak > settings.GlobalConnectionLimit {
		t.Errorf("peak concurrent downloads = %d, want at most %d",
			peak, settings.GlobalConnectionLimit)
	}
}

func TestManager_Run_ChapterIsolation(t *testing.T) {
	handler := newCountingHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	numbers := []string{"001", "002", "003", "004", "005"}
	source := &fakeSource{
		pages:       make(map[string][]model.Page),
		listPageErr: map[string]error{"003": errors.New("reader page gone")},
	}
	for _, n := range numbers {
		source.chapters = append(source.chapters, testChapter(srv.URL, n))
		source.pages[n] = testPages(srv.URL, n, 3)
	}
	asm := newRecordingAssembler()

	summary := runManager(t, settings, source, asm)

	completed, partial, failed := summary.Counts()
	if completed != 4 || partial != 0 || failed != 1 {
		t.Fatalf("Counts = %d/%d/%d, want 4 completed, 0 partial, 1 failed",
			completed, partial, failed)
	}

	for _, res := range summary.Results() {
		if res.Chapter.Number == "003" {
			if res.Outcome != OutcomeFailed {
				t.Errorf("chapter 003 outcome = %v, want failed", res.Outcome)
			}
			if !errors.Is(res.Err, model.ErrChapterUnavailable) {
				t.Errorf("chapter 003 error = %v, want ErrChapterUnavailable", res.Err)
			}
		} else if res.Outcome != OutcomeCompleted {
			t.Errorf("chapter %s outcome = %v, want completed", res.Chapter.Number, res.Outcome)
		}
	}
}

func TestManager_Run_AllPagesFail(t *testing.T) {
	handler := newCountingHandler()
	for i := 1; i <= 3; i++ {
		handler.fail[fmt.Sprintf("/img/c001/%02d.jpg", i)] = http.StatusNotFound
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 3)},
	}
	asm := newRecordingAssembler()

	summary := runManager(t, settings, source, asm)

	results := summary.Results()
	if results[0].Outcome != OutcomeFailed {
		t.Errorf("Outcome = %v, want failed", results[0].Outcome)
	}
	if asm.callCount() != 0 {
		t.Error("assembler should not run when no page downloaded")
	}
}

func TestManager_Run_AssemblyFailureKeepsImages(t *testing.T) {
	handler := newCountingHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 4)},
	}
	asm := newRecordingAssembler()
	asm.err = errors.New("disk full")

	summary := runManager(t, settings, source, asm)

	results := summary.Results()
	if results[0].Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %v, want failed", results[0].Outcome)
	}

	// Downloaded pages survive a failed assembly.
	imagesDir := ch.ImagesDir(settings.ToPathConfig())
	entries, err := os.ReadDir(imagesDir)
	if err != nil || len(entries) != 4 {
		t.Errorf("expected 4 kept images, got %d (%v)", len(entries), err)
	}
}

func TestManager_Run_SkipsExistingOutput(t *testing.T) {
	handler := newCountingHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 3)},
	}
	asm := newRecordingAssembler()

	out := ch.OutputPath(settings.ToPathConfig(), asm.Extension())
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("previous run"), 0644); err != nil {
		t.Fatal(err)
	}

	summary := runManager(t, settings, source, asm)

	results := summary.Results()
	if results[0].Outcome != OutcomeCompleted || !results[0].Skipped {
		t.Errorf("existing output should be skipped, got %+v", results[0])
	}
	if n := handler.total(); n != 0 {
		t.Errorf("no requests expected for skipped chapter, got %d", n)
	}
	if asm.callCount() != 0 {
		t.Error("assembler should not run for skipped chapter")
	}
}

func TestManager_Run_KeepImages(t *testing.T) {
	handler := newCountingHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	settings.KeepImages = true
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 3)},
	}

	summary := runManager(t, settings, source, newRecordingAssembler())

	if results := summary.Results(); results[0].Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %v, want completed", results[0].Outcome)
	}

	imagesDir := ch.ImagesDir(settings.ToPathConfig())
	entries, err := os.ReadDir(imagesDir)
	if err != nil || len(entries) != 3 {
		t.Errorf("expected 3 kept images, got %d (%v)", len(entries), err)
	}
}

func TestManager_Run_NoAssembler(t *testing.T) {
	handler := newCountingHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 3)},
	}

	summary := runManager(t, settings, source, nil)

	results := summary.Results()
	if results[0].Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %v, want completed", results[0].Outcome)
	}
	if results[0].OutputPath != "" {
		t.Errorf("OutputPath = %q, want empty without assembler", results[0].OutputPath)
	}

	// Bare images are the output in this mode.
	imagesDir := ch.ImagesDir(settings.ToPathConfig())
	entries, err := os.ReadDir(imagesDir)
	if err != nil || len(entries) != 3 {
		t.Errorf("expected 3 images, got %d (%v)", len(entries), err)
	}
}

func TestManager_Run_SkipsExistingPageImages(t *testing.T) {
	handler := newCountingHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 3)},
	}

	imagesDir := ch.ImagesDir(settings.ToPathConfig())
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imagesDir, "02.jpg"), []byte("cached"), 0644); err != nil {
		t.Fatal(err)
	}

	runManager(t, settings, source, nil)

	if n := handler.count("/img/c001/02.jpg"); n != 0 {
		t.Errorf("cached page was requested %d times, want 0", n)
	}
	if n := handler.count("/img/c001/01.jpg"); n != 1 {
		t.Errorf("uncached page was requested %d times, want 1", n)
	}
}

func TestManager_Run_Cancellation(t *testing.T) {
	handler := newCountingHandler()
	handler.jitter = 50 * time.Millisecond
	srv := httptest.NewServer(handler)
	defer srv.Close()

	settings := testSettings(t)
	ch := testChapter(srv.URL, "001")
	source := &fakeSource{
		chapters: []model.Chapter{ch},
		pages:    map[string][]model.Page{"001": testPages(srv.URL, "001", 20)},
	}

	client := httpx.NewClient(settings.RequestTimeout, 0)
	m := NewManager(settings, source, client, nil, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Initialize(ctx, model.Target{Kind: model.TargetSeries, Series: "test"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRunSummary(t *testing.T) {
	s := &RunSummary{}
	s.Add(ChapterResult{Outcome: OutcomeCompleted})
	s.Add(ChapterResult{Outcome: OutcomePartiallyFailed, MissingPages: 2})
	s.Add(ChapterResult{Outcome: OutcomeFailed, Err: errors.New("gone")})

	completed, partial, failed := s.Counts()
	if completed != 1 || partial != 1 || failed != 1 {
		t.Errorf("Counts = %d/%d/%d, want 1/1/1", completed, partial, failed)
	}
	if s.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", s.ExitCode())
	}

	ok := &RunSummary{}
	ok.Add(ChapterResult{Outcome: OutcomeCompleted})
	if ok.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0 for all-completed run", ok.ExitCode())
	}
}
