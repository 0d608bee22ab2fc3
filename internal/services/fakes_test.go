package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/Lllllllleong/bookpagevectors/internal/raster"
)

type fakeResolver struct {
	ref   models.ContentRef
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, storageKey string) (models.ContentRef, error) {
	f.calls++
	if f.err != nil {
		return models.ContentRef{}, f.err
	}
	return f.ref, nil
}

type fakeObjects struct {
	downloads   []string
	published   []string
	contentType string
	downloadErr error
	publishErr  error
}

func (f *fakeObjects) Download(ctx context.Context, key, destPath string) error {
	f.downloads = append(f.downloads, key)
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(destPath, []byte("%PDF-1.7"), 0o644)
}

func (f *fakeObjects) Publish(ctx context.Context, localPath, objectName, contentType string) error {
	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("publish of missing file: %w", err)
	}
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, objectName)
	f.contentType = contentType
	return nil
}

type fakePages struct {
	rows      []models.PageVectorRecord
	recorded  map[int]bool
	appendErr error
}

func (f *fakePages) Append(ctx context.Context, rec models.PageVectorRecord) (bool, error) {
	if f.appendErr != nil {
		return false, f.appendErr
	}
	for _, r := range f.rows {
		if r.ContentID == rec.ContentID && r.PageNumber == rec.PageNumber {
			return false, nil
		}
	}
	f.rows = append(f.rows, rec)
	return true, nil
}

func (f *fakePages) RecordedPages(ctx context.Context, contentID int64) (map[int]bool, error) {
	return f.recorded, nil
}

// fakeEmbedder returns a vector derived from the image bytes and fails on
// call number failOn when set.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn int
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, image []byte) (*models.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn > 0 && f.calls == f.failOn {
		return nil, fmt.Errorf("%w: vector service returned 503", ErrEmbedding)
	}
	vec := f.vector
	if vec == nil {
		vec = []float32{float32(len(image)), float32(f.calls)}
	}
	return &models.Embedding{Vector: vec, Model: "fake", Dimension: len(vec)}, nil
}

type fakeRasterizer struct {
	outputDir string
	err       error
	short     int
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, sourcePath, outputDir string, pageCount int) ([]string, error) {
	f.outputDir = outputDir
	if f.err != nil {
		return nil, f.err
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for page := 1; page <= pageCount-f.short; page++ {
		p := filepath.Join(outputDir, raster.PageFileName(page))
		if err := os.WriteFile(p, []byte(fmt.Sprintf("jpeg page %d", page)), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type trackerEvent struct {
	kind   string
	detail string
}

type fakeTracker struct {
	events []trackerEvent
}

func (f *fakeTracker) Started(ctx context.Context, runID, storageKey string, at time.Time) error {
	f.events = append(f.events, trackerEvent{kind: "started", detail: storageKey})
	return nil
}

func (f *fakeTracker) Resolved(ctx context.Context, runID string, contentID int64, pageCount int) error {
	f.events = append(f.events, trackerEvent{kind: "resolved", detail: fmt.Sprintf("%d/%d", contentID, pageCount)})
	return nil
}

func (f *fakeTracker) Failed(ctx context.Context, runID, details string) error {
	f.events = append(f.events, trackerEvent{kind: "failed", detail: details})
	return errors.New("ledger unavailable")
}

func (f *fakeTracker) Succeeded(ctx context.Context, runID string, pagesWritten int) error {
	f.events = append(f.events, trackerEvent{kind: "succeeded", detail: fmt.Sprint(pagesWritten)})
	return nil
}

type fakeNotifier struct {
	payloads []models.WorkflowPayload
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, payload models.WorkflowPayload) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}
