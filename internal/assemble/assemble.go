// Package assemble turns a chapter's downloaded page images into a
// single output file.
//
// Two concrete assemblers exist: PDF (via pdfcpu) and CBZ (a plain zip
// archive, the comic book convention). Both take the ordered list of
// page image paths and write one file per chapter:
//
//	asm, _ := assemble.New(config.FormatPDF, 0)
//	err := asm.Assemble(ctx, pagePaths, "/manga/slam_dunk/slam_dunk_c001.pdf")
//
// Page order is the caller's responsibility: images are embedded in
// exactly the order given.
package assemble

import (
	"context"
	"fmt"

	"github.com/okanoue/manga-downloader/internal/config"
)

// Assembler writes a chapter output file from ordered page images.
type Assembler interface {
	// Assemble writes the chapter file at outputPath from the given
	// page images, in the given order. The output appears atomically:
	// either the complete file exists afterwards or nothing does.
	Assemble(ctx context.Context, imagePaths []string, outputPath string) error

	// Extension returns the output file extension including the dot.
	Extension() string
}

// New returns the assembler for the given output format.
//
// config.FormatNone yields a nil Assembler with no error: the caller
// keeps the bare images and skips assembly. maxImageHeight caps page
// image height for PDF output; 0 keeps original sizes.
func New(format string, maxImageHeight int) (Assembler, error) {
	switch format {
	case config.FormatPDF:
		return NewPDFAssembler(maxImageHeight), nil
	case config.FormatCBZ:
		return NewCBZAssembler(), nil
	case config.FormatNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
