package raster

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
)

// Fitz renders pages in-process with MuPDF, without an external binary.
type Fitz struct {
	DPI         int
	JPEGQuality int
}

func NewFitz(dpi, jpegQuality int) *Fitz {
	return &Fitz{DPI: dpi, JPEGQuality: jpegQuality}
}

func (f *Fitz) Rasterize(ctx context.Context, sourcePath, outputDir string, pageCount int) ([]string, error) {
	if err := prepareOutputDir(outputDir, pageCount); err != nil {
		return nil, err
	}

	doc, err := fitz.New(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %w", ErrRasterization, err)
	}
	defer doc.Close()

	if n := doc.NumPage(); n < pageCount {
		return nil, fmt.Errorf("%w: document has %d pages, asked for %d", ErrRasterization, n, pageCount)
	}

	opts := &jpeg.Options{Quality: f.JPEGQuality}
	if opts.Quality <= 0 {
		opts.Quality = jpeg.DefaultQuality
	}

	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := f.renderPage(doc, page, filepath.Join(outputDir, PageFileName(page)), opts); err != nil {
			return nil, err
		}
	}
	return collectPages(outputDir, pageCount)
}

func (f *Fitz) renderPage(doc *fitz.Document, page int, outPath string, opts *jpeg.Options) error {
	var (
		img *image.RGBA
		err error
	)
	if f.DPI > 0 {
		img, err = doc.ImageDPI(page-1, float64(f.DPI))
	} else {
		img, err = doc.Image(page - 1)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to render page %d: %w", ErrRasterization, page, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrRasterization, outPath, err)
	}
	if err := jpeg.Encode(out, img, opts); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: failed to encode page %d: %w", ErrRasterization, page, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", ErrRasterization, outPath, err)
	}
	return nil
}
