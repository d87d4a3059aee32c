// Package mangafox provides functionality to resolve fanfox.net URLs and
// extract chapter and page information from the site.
//
// The package handles three concerns:
//
//  1. Resolving input URLs into download targets (single chapter or series)
//  2. Listing a series' chapters via its RSS feed, with a series-page
//     scrape as fallback
//  3. Resolving each chapter page's image URL through the site's
//     obfuscated script endpoint
//
// # URL Resolution
//
//	target, err := mangafox.ResolveTarget(rawURL, chapterRange, sortOrder)
//	if errors.Is(err, model.ErrInvalidURL) {
//	    // neither a chapter nor a series URL
//	}
//
// # Chapter and Page Listing
//
//	client := mangafox.NewClient(httpClient, mangafox.DefaultBaseURL, logger)
//	chapters, err := client.ListChapters(ctx, target)
//	pages, err := client.ListPages(ctx, chapters[0])
//
// # Site Data Format
//
// Chapter reader pages embed `chapterid`, `imagepage` and `imagecount`
// as script variables. Per-page image URLs come from a chapterfun.ashx
// endpoint returning JavaScript packed with Dean Edwards' p,a,c,k,e,d
// encoder; this package unpacks it and reads the `pix`/`pvalue`
// assignments.
package mangafox
