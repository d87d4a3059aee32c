// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Directory creation
//   - Checking for already-downloaded files
//   - Page image normalization before PDF embedding
//
// # File Operations
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/manga/slam_dunk/c001")
//
//	// Skip pages that are already on disk
//	if ioutils.FileNonEmpty("/manga/slam_dunk/c001/01.jpg") {
//	    // already downloaded
//	}
//
// # Image Processing
//
// The ImageService prepares downloaded page images for assembly:
//
//	svc := ioutils.NewImageService()
//
//	// Re-encode WEBP pages as JPEG, downscaling to 2000px tall
//	path, _ := svc.NormalizeForPDF(ctx, "/manga/.../05.jpg", 2000)
package ioutils
