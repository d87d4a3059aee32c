package assemble

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/okanoue/manga-downloader/internal/config"
)

func writePages(t *testing.T, dir string, n int) []string {
	t.Helper()

	paths := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 40, 60))
		path := filepath.Join(dir, fmt.Sprintf("%02d.jpg", i))
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := jpeg.Encode(f, img, nil); err != nil {
			t.Fatal(err)
		}
		f.Close()
		paths = append(paths, path)
	}
	return paths
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantNil bool
		wantErr bool
	}{
		{format: config.FormatPDF, wantExt: ".pdf"},
		{format: config.FormatCBZ, wantExt: ".cbz"},
		{format: config.FormatNone, wantNil: true},
		{format: "epub", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			asm, err := New(tt.format, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if asm != nil {
					t.Errorf("New(%q) = %v, want nil assembler", tt.format, asm)
				}
				return
			}
			if asm.Extension() != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", asm.Extension(), tt.wantExt)
			}
		})
	}
}

func TestPDFAssembler_Assemble(t *testing.T) {
	dir := t.TempDir()
	pages := writePages(t, dir, 5)
	out := filepath.Join(dir, "chapter.pdf")

	asm := NewPDFAssembler(0)
	if err := asm.Assemble(context.Background(), pages, out); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	count, err := api.PageCountFile(out)
	if err != nil {
		t.Fatalf("reading produced PDF: %v", err)
	}
	if count != 5 {
		t.Errorf("PDF has %d pages, want 5", count)
	}

	// No scratch file left behind.
	if _, err := os.Stat(out + ".part"); !os.IsNotExist(err) {
		t.Error("scratch file was not cleaned up")
	}
}

func TestPDFAssembler_NormalizesOversizedImages(t *testing.T) {
	dir := t.TempDir()

	// A height cap forces the page through JPEG re-encoding.
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	path := filepath.Join(dir, "01.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out := filepath.Join(dir, "chapter.pdf")
	asm := NewPDFAssembler(30)
	if err := asm.Assemble(context.Background(), []string{path}, out); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	count, err := api.PageCountFile(out)
	if err != nil {
		t.Fatalf("reading produced PDF: %v", err)
	}
	if count != 1 {
		t.Errorf("PDF has %d pages, want 1", count)
	}

	// The downscaled intermediate is removed, the original kept.
	if _, err := os.Stat(filepath.Join(dir, "01.conv.jpg")); !os.IsNotExist(err) {
		t.Error("converted intermediate was not cleaned up")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("original page image should be kept")
	}
}

func TestPDFAssembler_NoImages(t *testing.T) {
	asm := NewPDFAssembler(0)
	out := filepath.Join(t.TempDir(), "chapter.pdf")

	if err := asm.Assemble(context.Background(), nil, out); err == nil {
		t.Error("expected error for empty image list")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output should exist after failed assembly")
	}
}

func TestCBZAssembler_Assemble(t *testing.T) {
	dir := t.TempDir()
	pages := writePages(t, dir, 3)
	out := filepath.Join(dir, "chapter.cbz")

	asm := NewCBZAssembler()
	if err := asm.Assemble(context.Background(), pages, out); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("opening produced CBZ: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 3 {
		t.Fatalf("CBZ has %d entries, want 3", len(zr.File))
	}
	for i, f := range zr.File {
		want := fmt.Sprintf("%02d.jpg", i+1)
		if f.Name != want {
			t.Errorf("entry %d = %q, want %q", i, f.Name, want)
		}
	}
}

func TestCBZAssembler_MissingImage(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "chapter.cbz")

	asm := NewCBZAssembler()
	err := asm.Assemble(context.Background(), []string{filepath.Join(dir, "nope.jpg")}, out)
	if err == nil {
		t.Fatal("expected error for missing page image")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output should exist after failed assembly")
	}
	if _, err := os.Stat(out + ".part"); !os.IsNotExist(err) {
		t.Error("scratch file was not cleaned up")
	}
}
