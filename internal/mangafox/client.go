package mangafox

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	httpx "github.com/okanoue/manga-downloader/internal/http"
	"github.com/okanoue/manga-downloader/internal/model"
)

// Client queries the source site for chapter lists and page image URLs.
//
// Client is the scraping collaborator consumed by the download pipeline:
// ListChapters answers "which chapters does this series have", ListPages
// answers "which images make up this chapter". All HTML/script parsing
// specifics live in this package; the pipeline only sees models.
type Client struct {
	http    *httpx.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a source-site client. baseURL is the site origin;
// pass DefaultBaseURL outside of tests.
func NewClient(hc *httpx.Client, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// ListChapters returns the chapter list for the target, range-filtered
// and ordered per the target's sort order.
//
// A single-chapter target yields exactly its one chapter. For series
// targets the site's RSS feed is consulted first; when the feed is
// unavailable or empty the series detail page is scraped instead.
// Returns model.ErrSeriesNotFound when neither source yields a chapter.
func (c *Client) ListChapters(ctx context.Context, target model.Target) ([]model.Chapter, error) {
	if target.Kind == model.TargetChapter {
		return []model.Chapter{target.Chapter}, nil
	}

	chapters, err := c.chaptersFromFeed(ctx, target.Series)
	if err != nil || len(chapters) == 0 {
		if err != nil {
			c.logger.Debug("series feed unavailable, scraping series page",
				"series", target.Series, "error", err)
		}
		chapters, err = c.chaptersFromPage(ctx, target.Series)
		if err != nil {
			return nil, err
		}
	}

	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrSeriesNotFound, target.Series)
	}

	filtered := model.FilterChapters(chapters, target.Range, target.Sort)
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: %s (no chapters in range %s)",
			model.ErrSeriesNotFound, target.Series, target.Range)
	}

	c.logger.Debug("listed chapters",
		"series", target.Series,
		"total", len(chapters),
		"selected", len(filtered),
		"range", target.Range.String())

	return filtered, nil
}

// chaptersFromFeed reads the series RSS feed, which lists every chapter
// newest first. The returned list is ascending.
func (c *Client) chaptersFromFeed(ctx context.Context, series string) ([]model.Chapter, error) {
	feedURL := fmt.Sprintf("%s/rss/%s.xml", c.baseURL, series)

	body, err := c.http.GetString(ctx, feedURL, "")
	if err != nil {
		return nil, fmt.Errorf("fetching series feed: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parsing series feed: %w", err)
	}

	var chapters []model.Chapter
	for _, item := range feed.Items {
		if ch, ok := chapterFromLink(item.Link, c.baseURL); ok {
			chapters = append(chapters, ch)
		}
	}

	// Feed order is newest first.
	for i, j := 0, len(chapters)-1; i < j; i, j = i+1, j-1 {
		chapters[i], chapters[j] = chapters[j], chapters[i]
	}

	return chapters, nil
}

// chaptersFromPage scrapes the series detail page for chapter links.
func (c *Client) chaptersFromPage(ctx context.Context, series string) ([]model.Chapter, error) {
	pageURL := fmt.Sprintf("%s/manga/%s/", c.baseURL, series)

	html, err := c.http.GetString(ctx, pageURL, "")
	if err != nil {
		return nil, fmt.Errorf("fetching series page: %w", err)
	}

	return ParseSeriesChapters(html, c.baseURL)
}

// ListPages returns the ordered list of page images for a chapter.
//
// The chapter reader page carries the chapter id and page count; each
// page's image URL then comes from the site's script endpoint, queried
// with the reader page as referer. Any failure along the way makes the
// whole chapter unavailable: no partial page lists are returned.
func (c *Client) ListPages(ctx context.Context, ch model.Chapter) ([]model.Page, error) {
	html, err := c.http.GetString(ctx, ch.URL, "")
	if err != nil {
		return nil, fmt.Errorf("fetching chapter page: %w", err)
	}

	meta, err := ParseChapterMeta(html)
	if err != nil {
		return nil, err
	}

	width := len(strconv.Itoa(meta.PageCount))
	pages := make([]model.Page, 0, meta.PageCount-meta.FirstPage+1)

	for n := meta.FirstPage; n <= meta.PageCount; n++ {
		scriptURL := fmt.Sprintf("%s/manga/%s/%s/c%s/chapterfun.ashx?cid=%d&page=%d&key=",
			c.baseURL, ch.Series, ch.Volume, ch.Number, meta.ID, n)

		script, err := c.http.GetString(ctx, scriptURL, ch.URL)
		if err != nil {
			return nil, fmt.Errorf("fetching script for page %d: %w", n, err)
		}

		imageURL, err := ParsePageImageURL(script)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}

		pages = append(pages, model.Page{
			Index:    n,
			URL:      imageURL,
			Filename: fmt.Sprintf("%0*d.jpg", width, n),
		})

		c.logger.Debug("resolved page image",
			"chapter", ch.Label(), "page", n, "url", imageURL)
	}

	return pages, nil
}
