// Package config provides configuration management for manga-downloader.
//
// This package handles:
//   - Loading settings from JSON files and MANGADL_ environment variables
//   - Saving settings back to JSON files
//   - Default configuration values
//   - Conversion to PathConfig for other packages
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Manga/{series}/c{chapter}
//	// Two chapters and four pages per chapter in flight
//	// Chapters assembled into PDFs
//
// # Loading
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Bad file contents or invalid values
//	}
//
// Defaults apply when no config file exists; environment variables
// (MANGADL_FORMAT, MANGADL_DOWNLOAD_DIR, ...) override file values.
//
// # Saving Settings
//
//	settings.DownloadDir = "/mnt/media/manga"
//	err := settings.Save("/path/to/config.json")
//
// # Configuration Options
//
// Settings includes options for:
//   - Download directory and file naming
//   - Concurrency limits and the global connection ceiling
//   - Retry behavior and request pacing
//   - Output format (PDF, CBZ, or bare images)
//   - Logging
package config
