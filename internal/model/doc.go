// Package model defines the core data structures used throughout
// the manga-downloader application.
//
// # Target
//
// Target is the resolved form of an input URL: either one chapter or a
// whole series, optionally bounded by a chapter range and sort order:
//
//	target, err := mangafox.ResolveTarget(rawURL)
//	if errors.Is(err, model.ErrInvalidURL) { ... }
//
// # Chapter and Page
//
// Chapter identifies one chapter of a series and knows how to compute the
// local paths its artifacts land at:
//
//	ch := model.Chapter{Series: "slam_dunk", Volume: "v01", Number: "001"}
//	ch.ImagesDir(cfg)          // e.g. downloads/slam_dunk/c001
//	ch.OutputPath(cfg, ".pdf") // e.g. downloads/slam_dunk/slam_dunk_c001.pdf
//
// Page is one image within a chapter, identified by its 1-based position.
//
// # Path Configuration
//
// PathConfig controls how paths are computed using placeholders:
//
//	cfg := &model.PathConfig{
//	    DownloadDir:          "downloads",
//	    ChapterDirFormat:     "{series}/c{chapter}",
//	    OutputFileNameFormat: "{series}_c{chapter}",
//	}
//
// Available placeholders: {series}, {volume}, {chapter}
package model
