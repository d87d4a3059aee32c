package ioutils

import (
	"os"
)

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
//
// Example:
//
//	err := EnsureDir("/manga/slam_dunk/c001")
//	// Creates /manga, /manga/slam_dunk, and /manga/slam_dunk/c001 if needed
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileNonEmpty reports whether path exists as a regular file with at
// least one byte of content.
//
// Used to skip page images and chapter outputs that a previous run
// already downloaded. Zero-byte files count as absent, so an aborted
// write never suppresses a re-download.
func FileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// RemoveDirIfEmpty removes path when it is an empty directory. Other
// states, including a missing path, are left alone without error.
func RemoveDirIfEmpty(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(path)
}
