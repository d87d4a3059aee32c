package mangafox

import (
	"fmt"
	"regexp"

	"github.com/okanoue/manga-downloader/internal/model"
)

// DefaultBaseURL is the canonical origin of the supported site.
const DefaultBaseURL = "https://fanfox.net"

var (
	// https://fanfox.net/manga/slam_dunk/v01/c001/1.html
	chapterURLRe = regexp.MustCompile(`^https?://(?:www\.)?fanfox\.net/manga/([^/]+)/(v[^/]+)/c([^/]+)/\d+\.html$`)

	// https://fanfox.net/manga/slam_dunk/
	seriesURLRe = regexp.MustCompile(`^https?://(?:www\.)?fanfox\.net/manga/([^/]+)/?$`)
)

// ResolveTarget parses an input URL into a download target: either a
// single chapter or a whole series, bounded by the given chapter range
// and ordered by the given sort order.
//
// ResolveTarget is pure; it performs no network requests. It returns
// model.ErrInvalidURL when the URL matches neither pattern.
func ResolveTarget(rawURL string, rng *model.ChapterRange, order model.SortOrder) (model.Target, error) {
	if m := chapterURLRe.FindStringSubmatch(rawURL); m != nil {
		return model.Target{
			Kind:   model.TargetChapter,
			Series: m[1],
			Chapter: model.Chapter{
				Series: m[1],
				Volume: m[2],
				Number: m[3],
				URL:    rawURL,
			},
			Range: rng,
			Sort:  order,
		}, nil
	}

	if m := seriesURLRe.FindStringSubmatch(rawURL); m != nil {
		return model.Target{
			Kind:   model.TargetSeries,
			Series: m[1],
			Range:  rng,
			Sort:   order,
		}, nil
	}

	return model.Target{}, fmt.Errorf("%w: %s", model.ErrInvalidURL, rawURL)
}
