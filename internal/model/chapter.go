package model

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Chapter identifies one chapter of a series on the source site.
//
// Volume and Number are kept as the raw path tokens from the site
// ("v01", "001", "102.5") so that URLs can be rebuilt verbatim; Key
// provides the numeric order used for range filtering and sorting.
//
// Example:
//
//	ch := Chapter{Series: "slam_dunk", Volume: "v01", Number: "001", URL: chapterURL}
//	dir := ch.ImagesDir(pathCfg)      // where page images land
//	out := ch.OutputPath(pathCfg, ".pdf")
type Chapter struct {
	// Series is the series slug from the URL path, e.g. "slam_dunk".
	Series string

	// Volume is the volume path token, e.g. "v01". May be "vTBD" for
	// unvolumed releases.
	Volume string

	// Number is the chapter number as it appears in the URL, without the
	// leading "c", e.g. "001" or "102.5".
	Number string

	// URL is the absolute URL of the chapter's first page.
	URL string
}

// Key returns the chapter number as a float for ordering and range
// filtering. The second return is false when the number is not numeric
// (extras and specials occasionally carry non-numeric identifiers).
func (c Chapter) Key() (float64, bool) {
	k, err := strconv.ParseFloat(c.Number, 64)
	if err != nil {
		return 0, false
	}
	return k, true
}

// Label returns a short human-readable identifier like "v01/c001",
// used in log lines and progress output.
func (c Chapter) Label() string {
	if c.Volume == "" {
		return "c" + c.Number
	}
	return c.Volume + "/c" + c.Number
}

// Page is one image of a chapter, identified by its position.
type Page struct {
	// Index is the 1-based page position within the chapter.
	Index int

	// URL is the absolute image URL.
	URL string

	// Filename is the zero-padded local file name, e.g. "003.jpg".
	Filename string
}

// PathConfig holds path formatting settings for chapter downloads.
//
// Formats support placeholders that are replaced with sanitized values:
//   - {series}  - series slug
//   - {volume}  - volume token, e.g. "v01"
//   - {chapter} - chapter number, e.g. "001"
type PathConfig struct {
	// DownloadDir is the base directory all output lands under.
	DownloadDir string

	// ChapterDirFormat is the per-chapter image directory, relative to
	// DownloadDir. Example: "{series}/c{chapter}"
	ChapterDirFormat string

	// OutputFileNameFormat is the chapter output file name without
	// extension. Example: "{series}_c{chapter}"
	OutputFileNameFormat string
}

// ImagesDir computes the directory page images are downloaded into.
func (c Chapter) ImagesDir(cfg *PathConfig) string {
	return filepath.Join(cfg.DownloadDir, c.expand(cfg.ChapterDirFormat))
}

// OutputPath computes the chapter output file path for the given
// extension (".pdf" or ".cbz"). The output lands in the parent of the
// chapter's image directory, so PDFs sit at the series level while
// intermediate images live one level down.
func (c Chapter) OutputPath(cfg *PathConfig, ext string) string {
	name := c.expand(cfg.OutputFileNameFormat) + ext
	return filepath.Join(filepath.Dir(c.ImagesDir(cfg)), name)
}

func (c Chapter) expand(format string) string {
	s := format
	s = strings.ReplaceAll(s, "{series}", sanitizeFileName(c.Series))
	s = strings.ReplaceAll(s, "{volume}", sanitizeFileName(c.Volume))
	s = strings.ReplaceAll(s, "{chapter}", sanitizeFileName(c.Number))
	return s
}

// FilterChapters applies the inclusive range filter and sort order to an
// ascending chapter list.
//
// Chapters with non-numeric numbers are kept when no range is set (they
// cannot be compared against a bound, so a bounded request excludes them).
func FilterChapters(chapters []Chapter, r *ChapterRange, order SortOrder) []Chapter {
	out := make([]Chapter, 0, len(chapters))
	for _, c := range chapters {
		key, ok := c.Key()
		if !ok {
			if r == nil {
				out = append(out, c)
			}
			continue
		}
		if r.Contains(key) {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ki, iok := out[i].Key()
		kj, jok := out[j].Key()
		if iok && jok {
			return ki < kj
		}
		// Non-numeric chapters keep their relative feed position.
		return false
	})

	if order == SortDescending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// sanitizeFileName removes or replaces characters that are invalid in
// file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Trailing whitespace is removed
func sanitizeFileName(name string) string {
	invalidChars := regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	name = invalidChars.ReplaceAllString(name, "_")

	name = regexp.MustCompile(`\.+$`).ReplaceAllString(name, "")

	name = regexp.MustCompile(`\s+`).ReplaceAllString(name, " ")

	return strings.TrimRight(name, " ")
}
