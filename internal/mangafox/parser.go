package mangafox

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okanoue/manga-downloader/internal/model"
)

var (
	chapterIDRe  = regexp.MustCompile(`chapterid\s*=\s*(\d+)\s*;`)
	imagePageRe  = regexp.MustCompile(`imagepage\s*=\s*(\d+)\s*;`)
	imageCountRe = regexp.MustCompile(`imagecount\s*=\s*(\d+)\s*;`)

	pixRe    = regexp.MustCompile(`pix\s*=\s*"([^"]*)"`)
	pvalueRe = regexp.MustCompile(`pvalue\s*=\s*\[([^\]]*)\]`)

	// /manga/slam_dunk/v01/c001/1.html
	chapterPathRe = regexp.MustCompile(`/manga/([^/]+)/(v[^/]+)/c([^/]+)/\d+\.html`)

	// }('p',a,c,'k'.split('|')
	packedRe = regexp.MustCompile(`(?s)\}\s*\(\s*'(.*)'\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*'([^']*)'\s*\.split\('\|'\)`)
)

// ChapterMeta is the per-chapter state embedded as script variables in a
// chapter's reader page.
type ChapterMeta struct {
	// ID is the site's numeric chapter identifier, required to query the
	// page image script endpoint.
	ID int

	// FirstPage is the page number the reader page opened at.
	FirstPage int

	// PageCount is the number of pages in the chapter.
	PageCount int
}

// ParseChapterMeta extracts the chapter id and page counters from a
// chapter reader page.
func ParseChapterMeta(html string) (ChapterMeta, error) {
	var meta ChapterMeta

	for _, f := range []struct {
		re   *regexp.Regexp
		dst  *int
		name string
	}{
		{chapterIDRe, &meta.ID, "chapterid"},
		{imagePageRe, &meta.FirstPage, "imagepage"},
		{imageCountRe, &meta.PageCount, "imagecount"},
	} {
		m := f.re.FindStringSubmatch(html)
		if m == nil {
			return ChapterMeta{}, fmt.Errorf("could not find %s in chapter page", f.name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(m[1]))
		if err != nil {
			return ChapterMeta{}, fmt.Errorf("bad %s value %q: %w", f.name, m[1], err)
		}
		*f.dst = n
	}

	return meta, nil
}

// ParsePageImageURL extracts a page's image URL from the response of the
// chapterfun.ashx script endpoint.
//
// The endpoint returns obfuscated JavaScript assigning a host prefix to
// `pix` and the per-page path segments to `pvalue`. The script usually
// arrives packed through the p,a,c,k,e,d encoder; it is unpacked first
// when the variables are not visible in the raw source.
func ParsePageImageURL(script string) (string, error) {
	src := script
	if !pixRe.MatchString(src) {
		unpacked, err := unpackScript(src)
		if err != nil {
			return "", err
		}
		src = unpacked
	}

	pix := pixRe.FindStringSubmatch(src)
	if pix == nil {
		return "", fmt.Errorf("could not find pix in page script")
	}

	pv := pvalueRe.FindStringSubmatch(src)
	if pv == nil {
		return "", fmt.Errorf("could not find pvalue in page script")
	}

	first := strings.Split(pv[1], ",")[0]
	first = strings.Trim(strings.TrimSpace(first), `"'`)
	if first == "" {
		return "", fmt.Errorf("empty pvalue in page script")
	}

	u := pix[1] + first
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u, nil
}

// unpackScript reverses Dean Edwards' p,a,c,k,e,d JavaScript packing,
// which the site uses to obfuscate the page image script.
func unpackScript(script string) (string, error) {
	m := packedRe.FindStringSubmatch(script)
	if m == nil {
		return "", fmt.Errorf("page script is not in a recognized packed format")
	}

	payload := m[1]
	radix, err := strconv.Atoi(m[2])
	if err != nil || radix < 2 {
		return "", fmt.Errorf("bad packed script radix %q", m[2])
	}
	count, err := strconv.Atoi(m[3])
	if err != nil {
		return "", fmt.Errorf("bad packed script count %q", m[3])
	}
	words := strings.Split(m[4], "|")

	for i := count - 1; i >= 0; i-- {
		if i >= len(words) || words[i] == "" {
			continue
		}
		token := encodeSymbol(i, radix)
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(token) + `\b`)
		if err != nil {
			return "", err
		}
		payload = re.ReplaceAllString(payload, words[i])
	}

	payload = strings.ReplaceAll(payload, `\'`, `'`)
	return payload, nil
}

// encodeSymbol mirrors the packer's symbol encoder: base-N digits where
// N is the radix, with digits above 35 mapped to upper-case letters.
func encodeSymbol(n, radix int) string {
	var prefix string
	if n >= radix {
		prefix = encodeSymbol(n/radix, radix)
		n = n % radix
	}
	if n > 35 {
		return prefix + string(rune(n+29))
	}
	return prefix + strconv.FormatInt(int64(n), 36)
}

// ParseSeriesChapters extracts the chapter list from a series detail
// page. Used as a fallback when the series RSS feed is unavailable.
//
// The returned list is ordered ascending (the site lists newest first).
func ParseSeriesChapters(html, baseURL string) ([]model.Chapter, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("could not parse series page: %w", err)
	}

	var chapters []model.Chapter
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ch, ok := chapterFromLink(href, baseURL)
		if !ok {
			return
		}
		if _, dup := seen[ch.URL]; dup {
			return
		}
		seen[ch.URL] = struct{}{}
		chapters = append(chapters, ch)
	})

	// Site order is newest first; callers expect ascending.
	for i, j := 0, len(chapters)-1; i < j; i, j = i+1, j-1 {
		chapters[i], chapters[j] = chapters[j], chapters[i]
	}

	return chapters, nil
}

// chapterFromLink parses a chapter URL or path into a Chapter. Relative
// paths are made absolute against baseURL.
func chapterFromLink(link, baseURL string) (model.Chapter, bool) {
	m := chapterPathRe.FindStringSubmatch(link)
	if m == nil {
		return model.Chapter{}, false
	}

	u := link
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	} else if strings.HasPrefix(u, "/") {
		u = strings.TrimRight(baseURL, "/") + u
	}

	return model.Chapter{
		Series: m[1],
		Volume: m[2],
		Number: m[3],
		URL:    u,
	}, true
}
