package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SortOrder controls the order in which a series' chapters are processed.
type SortOrder int

const (
	// SortDescending processes the newest chapter first. This is the
	// default presentation order.
	SortDescending SortOrder = iota

	// SortAscending processes the oldest chapter first.
	SortAscending
)

// ParseSortOrder parses a user-supplied sort order string.
//
// Accepted values (case-insensitive):
//   - "asc", "ascending", "old" for SortAscending
//   - "desc", "descending", "new", "latest" for SortDescending
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "old":
		return SortAscending, nil
	case "desc", "descending", "new", "latest", "":
		return SortDescending, nil
	}
	return SortDescending, fmt.Errorf("invalid sort order %q", s)
}

// TargetKind discriminates between the two kinds of resolved targets.
type TargetKind int

const (
	// TargetSeries means the URL pointed at a series page; all (or a
	// range of) chapters are processed.
	TargetSeries TargetKind = iota

	// TargetChapter means the URL pointed at a single chapter.
	TargetChapter
)

// Target is the resolved form of an input URL. It is immutable once built.
//
// For TargetChapter targets, Chapter holds the single chapter to download.
// For TargetSeries targets, Series identifies the series and Range/Sort
// bound and order the chapter list.
type Target struct {
	Kind    TargetKind
	Series  string
	Chapter Chapter // valid only when Kind == TargetChapter
	Range   *ChapterRange
	Sort    SortOrder
}

// ChapterRange is an inclusive bound over chapter numbers.
// A nil *ChapterRange means unbounded. OpenEnd marks ranges like "10-All"
// where only the lower bound applies.
type ChapterRange struct {
	Start   float64
	End     float64
	OpenEnd bool
}

var rangeRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)-(\d+(?:\.\d+)?|[Aa]ll)$`)

// ParseChapterRange parses range expressions like "1-10", "10-All" or "All".
// "All" (any case) yields a nil range, meaning no filtering.
func ParseChapterRange(s string) (*ChapterRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return nil, nil
	}

	m := rangeRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid chapter range %q (expected forms: 1-10, 10-All, All)", s)
	}

	start, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chapter range %q: %w", s, err)
	}

	r := &ChapterRange{Start: start}
	if strings.EqualFold(m[2], "all") {
		r.OpenEnd = true
		return r, nil
	}

	end, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chapter range %q: %w", s, err)
	}
	if end < start {
		return nil, fmt.Errorf("invalid chapter range %q: end before start", s)
	}
	r.End = end
	return r, nil
}

// Contains reports whether a chapter number falls within the range.
// Both bounds are inclusive.
func (r *ChapterRange) Contains(key float64) bool {
	if r == nil {
		return true
	}
	if key < r.Start {
		return false
	}
	if r.OpenEnd {
		return true
	}
	return key <= r.End
}

// String renders the range back into its CLI form.
func (r *ChapterRange) String() string {
	if r == nil {
		return "All"
	}
	if r.OpenEnd {
		return fmt.Sprintf("%s-All", trimFloat(r.Start))
	}
	return fmt.Sprintf("%s-%s", trimFloat(r.Start), trimFloat(r.End))
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
