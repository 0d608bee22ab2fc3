// Package raster turns a PDF on local disk into one JPEG per page.
package raster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrRasterization is returned when page images could not be produced.
var ErrRasterization = errors.New("rasterization failed")

// pageFilePattern names page images so lexical order equals page order.
const pageFilePattern = "page-%04d.jpg"

// Rasterizer renders pages [1, pageCount] of a PDF into outputDir and
// returns the image paths ordered by page number.
type Rasterizer interface {
	Rasterize(ctx context.Context, sourcePath, outputDir string, pageCount int) ([]string, error)
}

// PageFileName returns the image file name used for a one-based page.
func PageFileName(page int) string {
	return fmt.Sprintf(pageFilePattern, page)
}

// PageCount reads the number of pages from the PDF's own metadata.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(f, cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("document %s has no pages", filepath.Base(path))
	}
	return n, nil
}

func prepareOutputDir(outputDir string, pageCount int) error {
	if pageCount < 1 {
		return fmt.Errorf("%w: page count must be positive, got %d", ErrRasterization, pageCount)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create output dir: %w", ErrRasterization, err)
	}
	return nil
}

// collectPages lists the JPEGs in dir in page order and checks there is
// exactly one per expected page.
func collectPages(dir string, pageCount int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list %s: %w", ErrRasterization, dir, err)
	}

	var pages []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
			continue
		}
		pages = append(pages, filepath.Join(dir, e.Name()))
	}
	sort.Strings(pages)

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no page images produced", ErrRasterization)
	}
	if len(pages) != pageCount {
		return nil, fmt.Errorf("%w: produced %d page images, expected %d", ErrRasterization, len(pages), pageCount)
	}
	return pages, nil
}
