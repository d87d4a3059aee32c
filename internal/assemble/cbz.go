package assemble

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CBZAssembler writes one CBZ per chapter: a zip archive of the page
// images under their original names. Comic readers show zip entries in
// name order, which matches the zero-padded page filenames.
type CBZAssembler struct{}

// NewCBZAssembler creates a CBZAssembler.
func NewCBZAssembler() *CBZAssembler {
	return &CBZAssembler{}
}

// Extension returns ".cbz".
func (a *CBZAssembler) Extension() string { return ".cbz" }

// Assemble writes the CBZ at outputPath from the given page images, in
// the given order.
func (a *CBZAssembler) Assemble(ctx context.Context, imagePaths []string, outputPath string) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("no page images to assemble")
	}

	tmp := outputPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := writeArchive(ctx, f, imagePaths); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func writeArchive(ctx context.Context, w io.Writer, imagePaths []string) error {
	zw := zip.NewWriter(w)

	for _, p := range imagePaths {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := addImage(zw, p); err != nil {
			zw.Close()
			return fmt.Errorf("archiving %s: %w", filepath.Base(p), err)
		}
	}

	return zw.Close()
}

func addImage(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)
	// Images are already compressed; deflating them again wastes time.
	hdr.Method = zip.Store

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)
	return err
}
