package download

import (
	"github.com/okanoue/manga-downloader/internal/model"
)

// TaskStatus is the lifecycle state of a single page download.
//
// Every task moves Pending -> InFlight -> Succeeded or Failed; a task
// never leaves a terminal state.
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskInFlight
	TaskSucceeded
	TaskFailed
)

// String returns the status name for logs.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskInFlight:
		return "in-flight"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	}
	return "unknown"
}

// PageTask tracks one page image download. A task is owned by exactly
// one worker goroutine while in flight; other goroutines only read it
// after the chapter's workers have joined.
type PageTask struct {
	Page model.Page

	// Path is the local destination of the image.
	Path string

	// Attempts counts download attempts made, including the final one.
	// Zero means the file was already on disk.
	Attempts int

	Status TaskStatus
	Err    error
}

// ChapterJob is all the work for one chapter: its page tasks plus where
// the assembled output goes.
type ChapterJob struct {
	Chapter    model.Chapter
	ImagesDir  string
	OutputPath string
	Tasks      []*PageTask
}

// MissingCount returns how many pages did not reach TaskSucceeded.
func (j *ChapterJob) MissingCount() int {
	n := 0
	for _, t := range j.Tasks {
		if t.Status != TaskSucceeded {
			n++
		}
	}
	return n
}

// SucceededPaths returns the local paths of the downloaded pages in
// page order, regardless of the order downloads finished in.
func (j *ChapterJob) SucceededPaths() []string {
	paths := make([]string, 0, len(j.Tasks))
	for _, t := range j.Tasks {
		if t.Status == TaskSucceeded {
			paths = append(paths, t.Path)
		}
	}
	return paths
}
