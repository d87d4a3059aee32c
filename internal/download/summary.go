package download

import (
	"fmt"
	"sync"

	"github.com/okanoue/manga-downloader/internal/model"
)

// Outcome classifies how a chapter (or the whole run) ended.
type Outcome int

const (
	// OutcomeCompleted means every page downloaded and the output was
	// written (or intentionally skipped).
	OutcomeCompleted Outcome = iota

	// OutcomePartiallyFailed means the output was written but some pages
	// are missing from it.
	OutcomePartiallyFailed

	// OutcomeFailed means no usable output was produced.
	OutcomeFailed
)

// String returns the outcome name for logs and the run summary.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomePartiallyFailed:
		return "partially failed"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// ChapterResult is the terminal record for one chapter.
type ChapterResult struct {
	Chapter model.Chapter
	Outcome Outcome

	// MissingPages is the number of pages absent from the output.
	// Non-zero only for OutcomePartiallyFailed.
	MissingPages int

	// OutputPath is the assembled file, empty when none was written.
	OutputPath string

	// Skipped marks chapters whose output already existed.
	Skipped bool

	// Err carries the failure reason for OutcomeFailed.
	Err error
}

// RunSummary collects chapter results as concurrent workers finish.
type RunSummary struct {
	mu      sync.Mutex
	results []ChapterResult
}

// Add records a chapter result. Safe for concurrent use.
func (s *RunSummary) Add(res ChapterResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

// Results returns a copy of the recorded results.
func (s *RunSummary) Results() []ChapterResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChapterResult, len(s.results))
	copy(out, s.results)
	return out
}

// Counts tallies results per outcome.
func (s *RunSummary) Counts() (completed, partial, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		switch r.Outcome {
		case OutcomeCompleted:
			completed++
		case OutcomePartiallyFailed:
			partial++
		case OutcomeFailed:
			failed++
		}
	}
	return
}

// ExitCode returns the process exit code the run deserves: 0 only when
// every chapter completed.
func (s *RunSummary) ExitCode() int {
	_, partial, failed := s.Counts()
	if partial > 0 || failed > 0 {
		return 1
	}
	return 0
}

// String renders a one-line run summary.
func (s *RunSummary) String() string {
	completed, partial, failed := s.Counts()
	return fmt.Sprintf("%d completed, %d partially failed, %d failed",
		completed, partial, failed)
}
