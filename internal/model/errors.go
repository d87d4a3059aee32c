package model

import "errors"

// ErrInvalidURL is returned when an input URL matches neither a chapter
// nor a series pattern for the supported site. It is fatal to the run.
var ErrInvalidURL = errors.New("URL is not a recognized manga or chapter URL")

// ErrSeriesNotFound is returned when the source site reports no chapters
// for a series.
var ErrSeriesNotFound = errors.New("no chapters found for series")

// ErrChapterUnavailable is returned when the page list for a chapter cannot
// be retrieved. The chapter is abandoned; sibling chapters are unaffected.
var ErrChapterUnavailable = errors.New("chapter unavailable")

// ErrNoPages is returned by chapter assembly when not a single page of the
// chapter was downloaded successfully.
var ErrNoPages = errors.New("no pages downloaded")
