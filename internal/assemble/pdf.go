package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/okanoue/manga-downloader/internal/ioutils"
)

// PDFAssembler writes one PDF per chapter, one page image per PDF page.
//
// Images the PDF importer cannot embed directly (WEBP, GIF) are first
// re-encoded as JPEG; the temporary re-encoded copies are removed once
// the PDF is written.
type PDFAssembler struct {
	images    *ioutils.ImageService
	maxHeight int
}

// NewPDFAssembler creates a PDFAssembler. maxHeight caps page image
// height (0 keeps original sizes).
func NewPDFAssembler(maxHeight int) *PDFAssembler {
	return &PDFAssembler{
		images:    ioutils.NewImageService(),
		maxHeight: maxHeight,
	}
}

// Extension returns ".pdf".
func (a *PDFAssembler) Extension() string { return ".pdf" }

// Assemble writes the PDF at outputPath from the given page images, in
// the given order.
func (a *PDFAssembler) Assemble(ctx context.Context, imagePaths []string, outputPath string) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("no page images to assemble")
	}

	embeddable := make([]string, 0, len(imagePaths))
	var converted []string
	for _, p := range imagePaths {
		prepared, err := a.images.NormalizeForPDF(ctx, p, a.maxHeight)
		if err != nil {
			removeAll(converted)
			return fmt.Errorf("preparing %s: %w", filepath.Base(p), err)
		}
		if prepared != p {
			converted = append(converted, prepared)
		}
		embeddable = append(embeddable, prepared)
	}
	defer removeAll(converted)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Write to a scratch name first so a failed import never leaves a
	// half-written chapter file behind.
	tmp := outputPath + ".part"
	if err := api.ImportImagesFile(embeddable, tmp, nil, model.NewDefaultConfiguration()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("importing page images: %w", err)
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}
