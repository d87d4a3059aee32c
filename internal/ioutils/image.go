package ioutils

import (
	"bytes"
	"context"
	"image"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	_ "image/png" // PNG decoder registration
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WEBP decoder registration
)

// ImageService prepares downloaded page images for assembly.
//
// Manga hosts serve pages in a mix of JPEG, PNG, GIF and WEBP. The PDF
// importer only embeds a subset of these, so pages are normalized to
// JPEG where needed. Very tall pages (webtoon strips) can optionally be
// downscaled at the same time.
//
// Example usage:
//
//	svc := NewImageService()
//
//	// Re-encode a page for PDF embedding, capping height at 2000px
//	path, _ := svc.NormalizeForPDF(ctx, "/manga/.../05.jpg", 2000)
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// NormalizeForPDF makes sure the image at srcPath can be embedded into
// a PDF, re-encoding it as JPEG when it can't.
//
// maxHeight, when positive, caps the image height; taller pages are
// downscaled preserving aspect ratio. Pass 0 to keep original size.
//
// Returns the path to the usable image: srcPath itself when the file
// was already a suitably-sized JPEG or PNG, otherwise the path of a
// newly written JPEG next to it. The original file is left in place.
func (s *ImageService) NormalizeForPDF(ctx context.Context, srcPath string, maxHeight int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	needsResize := maxHeight > 0 && img.Bounds().Dy() > maxHeight
	embeddable := format == "jpeg" || format == "png"
	if embeddable && !needsResize {
		return srcPath, nil
	}

	if needsResize {
		img = scaleToHeight(img, maxHeight)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return "", err
	}

	dst := jpegSibling(srcPath)
	if err := os.WriteFile(dst, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return dst, nil
}

// scaleToHeight downscales img to the given height, preserving aspect
// ratio. Catmull-Rom is used for high-quality scaling.
func scaleToHeight(img image.Image, height int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx() * height / bounds.Dy()
	if width < 1 {
		width = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// jpegSibling returns srcPath with its extension replaced by ".conv.jpg",
// so the normalized copy never collides with the original.
func jpegSibling(srcPath string) string {
	return strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".conv.jpg"
}
