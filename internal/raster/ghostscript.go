package raster

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// commandRunner executes an external program and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Ghostscript renders pages by invoking the gs binary.
type Ghostscript struct {
	Binary      string
	DPI         int
	JPEGQuality int
	run         commandRunner
}

// NewGhostscript returns a rasterizer that shells out to binary
// ("gs", or "gswin64c.exe" on Windows hosts).
func NewGhostscript(binary string, dpi, jpegQuality int) *Ghostscript {
	if binary == "" {
		binary = "gs"
	}
	return &Ghostscript{
		Binary:      binary,
		DPI:         dpi,
		JPEGQuality: jpegQuality,
		run:         execRunner,
	}
}

func (g *Ghostscript) args(sourcePath, outputDir string, pageCount int) []string {
	args := []string{
		"-sDEVICE=jpeg",
		"-dNOPAUSE",
		"-dBATCH",
		"-dSAFER",
		"-dQUIET",
		"-dFirstPage=1",
		"-dLastPage=" + strconv.Itoa(pageCount),
	}
	if g.DPI > 0 {
		args = append(args, "-r"+strconv.Itoa(g.DPI))
	}
	if g.JPEGQuality > 0 {
		args = append(args, "-dJPEGQ="+strconv.Itoa(g.JPEGQuality))
	}
	return append(args,
		"-sOutputFile="+filepath.Join(outputDir, pageFilePattern),
		sourcePath,
	)
}

func (g *Ghostscript) Rasterize(ctx context.Context, sourcePath, outputDir string, pageCount int) ([]string, error) {
	if err := prepareOutputDir(outputDir, pageCount); err != nil {
		return nil, err
	}

	args := g.args(sourcePath, outputDir, pageCount)
	slog.Debug("Running ghostscript.", "binary", g.Binary, "args", strings.Join(args, " "))

	if out, err := g.run(ctx, g.Binary, args...); err != nil {
		return nil, fmt.Errorf("%w: %s: %w: %s", ErrRasterization, g.Binary, err, strings.TrimSpace(string(out)))
	}
	return collectPages(outputDir, pageCount)
}
