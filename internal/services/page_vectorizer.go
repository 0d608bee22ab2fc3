package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/Lllllllleong/bookpagevectors/internal/raster"
	"github.com/Lllllllleong/bookpagevectors/internal/store"
	"github.com/google/uuid"
)

const pageContentType = "image/jpeg"

type ContentResolver interface {
	Resolve(ctx context.Context, storageKey string) (models.ContentRef, error)
}

type ObjectStore interface {
	Download(ctx context.Context, key, destPath string) error
	Publish(ctx context.Context, localPath, objectName, contentType string) error
}

type PageVectorStore interface {
	Append(ctx context.Context, rec models.PageVectorRecord) (bool, error)
	RecordedPages(ctx context.Context, contentID int64) (map[int]bool, error)
}

type Embedder interface {
	Embed(ctx context.Context, image []byte) (*models.Embedding, error)
}

// RunTracker records the progress of a run outside the pipeline's own
// stores. Tracking failures are logged and never fail the run.
type RunTracker interface {
	Started(ctx context.Context, runID, storageKey string, at time.Time) error
	Resolved(ctx context.Context, runID string, contentID int64, pageCount int) error
	Failed(ctx context.Context, runID, details string) error
	Succeeded(ctx context.Context, runID string, pagesWritten int) error
}

// CompletionNotifier is told about every successful run.
type CompletionNotifier interface {
	Notify(ctx context.Context, payload models.WorkflowPayload) error
}

type PageVectorizerConfig struct {
	PublishDirectory string
	// StagingDir is the parent of per-run staging areas; empty means the OS temp dir.
	StagingDir string
}

// PageVectorizer turns one stored PDF into one vector row and one
// republished image per page.
type PageVectorizer struct {
	resolver   ContentResolver
	objects    ObjectStore
	pages      PageVectorStore
	embedder   Embedder
	rasterizer raster.Rasterizer
	config     PageVectorizerConfig

	pageCount func(path string) (int, error)
	tracker   RunTracker
	notifier  CompletionNotifier
	now       func() time.Time
	newRunID  func() string
}

type Option func(*PageVectorizer)

func WithRunTracker(t RunTracker) Option { return func(v *PageVectorizer) { v.tracker = t } }

func WithCompletionNotifier(n CompletionNotifier) Option {
	return func(v *PageVectorizer) { v.notifier = n }
}

// WithPageCounter replaces the pdfcpu page count, mostly for tests.
func WithPageCounter(fn func(path string) (int, error)) Option {
	return func(v *PageVectorizer) { v.pageCount = fn }
}

func WithClock(now func() time.Time) Option { return func(v *PageVectorizer) { v.now = now } }

func WithRunIDs(next func() string) Option { return func(v *PageVectorizer) { v.newRunID = next } }

func NewPageVectorizer(cfg PageVectorizerConfig, resolver ContentResolver, objects ObjectStore, pages PageVectorStore, embedder Embedder, rasterizer raster.Rasterizer, opts ...Option) (*PageVectorizer, error) {
	if cfg.PublishDirectory == "" {
		return nil, fmt.Errorf("publish directory must be set")
	}
	if resolver == nil || objects == nil || pages == nil || embedder == nil || rasterizer == nil {
		return nil, fmt.Errorf("page vectorizer requires a resolver, object store, page store, embedder and rasterizer")
	}

	v := &PageVectorizer{
		resolver:   resolver,
		objects:    objects,
		pages:      pages,
		embedder:   embedder,
		rasterizer: rasterizer,
		config:     cfg,
		pageCount:  raster.PageCount,
		tracker:    noopTracker{},
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.tracker == nil {
		v.tracker = noopTracker{}
	}
	return v, nil
}

// RepublishKey is the object name, relative to the publish directory, of
// page (one-based) of fileName.
func RepublishKey(fileName string, page int) string {
	return fmt.Sprintf("book_pages_%s_%03d.jpg", path.Base(fileName), page)
}

// ParseInvocation extracts the storage key from "key=<storageKey>".
func ParseInvocation(input string) (string, error) {
	name, value, ok := strings.Cut(strings.TrimSpace(input), "=")
	if !ok || strings.TrimSpace(name) != "key" {
		return "", fmt.Errorf("%w: expected key=<storageKey>, got %q", ErrInvalidInput, input)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: storage key is empty", ErrInvalidInput)
	}
	return value, nil
}

// Handle runs the pipeline for one invocation string and always returns a
// structured result.
func (v *PageVectorizer) Handle(ctx context.Context, input string) models.RunResult {
	storageKey, err := ParseInvocation(input)
	if err != nil {
		slog.Error("Rejected invocation.", "input", input, "error", err)
		return models.RunResult{Status: models.StatusFailed, Message: err.Error()}
	}
	return v.Result(v.Run(ctx, storageKey))
}

// Result maps the error returned by Run to the invocation result.
func (v *PageVectorizer) Result(err error) models.RunResult {
	switch {
	case err == nil:
		return models.RunResult{Status: models.StatusSuccess}
	case errors.Is(err, ErrNotFound):
		return models.RunResult{Status: models.StatusFailed, Message: NotFoundMessage}
	default:
		return models.RunResult{Status: models.StatusFailed, Message: err.Error()}
	}
}

// Run processes storageKey. Pages are handled strictly in order; a failure
// at page k leaves the rows of pages 1..k-1 in place.
func (v *PageVectorizer) Run(ctx context.Context, storageKey string) error {
	runID := v.newRunID()
	runStart := v.now()
	logCtx := slog.With("storageKey", storageKey, "runId", runID)
	logCtx.Info("Processing storage key.")

	if err := v.tracker.Started(ctx, runID, storageKey, runStart); err != nil {
		logCtx.Warn("Failed to record run start.", "error", err)
	}

	ref, err := v.resolver.Resolve(ctx, storageKey)
	if err != nil {
		if errors.Is(err, store.ErrContentNotFound) {
			return v.handleError(ctx, logCtx, runID, "no content matches storage key", classify(ErrNotFound, err))
		}
		return v.handleError(ctx, logCtx, runID, "failed to resolve content", classify(ErrPersistence, err))
	}
	logCtx = logCtx.With("contentId", ref.ContentID)
	logCtx.Info("Resolved content.")

	staging, err := NewStagingArea(v.config.StagingDir)
	if err != nil {
		return v.handleError(ctx, logCtx, runID, "failed to create staging area", classify(ErrDownload, err))
	}
	defer func() {
		if err := staging.Cleanup(); err != nil {
			logCtx.Error("Failed to remove staging area.", "path", staging.Root(), "error", err)
		}
	}()
	logCtx.Info("Created staging area.", "path", staging.Root())

	images, err := v.prepare(ctx, logCtx, runID, ref, storageKey, staging)
	if err != nil {
		return err
	}

	written, err := v.processPages(ctx, logCtx, runID, ref, runStart, images)
	if err != nil {
		return err
	}

	if v.notifier != nil {
		payload := models.WorkflowPayload{
			ContentID:  ref.ContentID,
			StorageKey: storageKey,
			PageCount:  len(images),
			RunID:      runID,
		}
		if err := v.notifier.Notify(ctx, payload); err != nil {
			return v.handleError(ctx, logCtx, runID, "failed to notify completion", err)
		}
	}

	if err := v.tracker.Succeeded(ctx, runID, written); err != nil {
		logCtx.Warn("Failed to record run success.", "error", err)
	}
	logCtx.Info("All pages vectorized and published.", "pageCount", len(images), "pagesWritten", written)
	return nil
}

// prepare downloads the source into the staging area and rasterizes it.
func (v *PageVectorizer) prepare(ctx context.Context, logCtx *slog.Logger, runID string, ref models.ContentRef, storageKey string, staging *StagingArea) ([]string, error) {
	sourcePath := staging.SourcePath()
	if err := v.objects.Download(ctx, storageKey, sourcePath); err != nil {
		return nil, v.handleError(ctx, logCtx, runID, "failed to download source document", classify(ErrDownload, err))
	}

	pageCount, err := v.pageCount(sourcePath)
	if err != nil {
		return nil, v.handleError(ctx, logCtx, runID, "failed to get page count", classify(ErrRasterization, err))
	}
	if err := v.tracker.Resolved(ctx, runID, ref.ContentID, pageCount); err != nil {
		logCtx.Warn("Failed to record page count.", "error", err)
	}

	images, err := v.rasterizer.Rasterize(ctx, sourcePath, staging.PagesDir(), pageCount)
	if err != nil {
		return nil, v.handleError(ctx, logCtx, runID, "failed to rasterize document", classify(ErrRasterization, err))
	}
	if len(images) != pageCount {
		err := fmt.Errorf("%w: expected %d page images, got %d", ErrRasterization, pageCount, len(images))
		return nil, v.handleError(ctx, logCtx, runID, "failed to rasterize document", err)
	}
	logCtx.Info("Document rasterized.", "pageCount", pageCount)
	return images, nil
}

func (v *PageVectorizer) processPages(ctx context.Context, logCtx *slog.Logger, runID string, ref models.ContentRef, runStart time.Time, images []string) (int, error) {
	recorded, err := v.pages.RecordedPages(ctx, ref.ContentID)
	if err != nil {
		return 0, v.handleError(ctx, logCtx, runID, "failed to read recorded pages", classify(ErrPersistence, err))
	}
	if len(recorded) > 0 {
		logCtx.Info("Resuming content with recorded pages.", "recordedPages", len(recorded))
	}

	written := 0
	for i, imagePath := range images {
		page := i + 1
		pageLog := logCtx.With("pageNumber", page)
		inserted, err := v.processPage(ctx, pageLog, ref, runStart, page, imagePath, recorded[page])
		if err != nil {
			return written, v.handleError(ctx, pageLog, runID, fmt.Sprintf("failed to process page %d", page), err)
		}
		if inserted {
			written++
		}
	}
	return written, nil
}

// processPage embeds and records one page unless it is already recorded,
// then publishes its image. It reports whether a new row was written.
func (v *PageVectorizer) processPage(ctx context.Context, logCtx *slog.Logger, ref models.ContentRef, runStart time.Time, page int, imagePath string, alreadyRecorded bool) (bool, error) {
	key := RepublishKey(ref.FileName, page)
	objectName := path.Join(v.config.PublishDirectory, key)

	inserted := false
	if alreadyRecorded {
		logCtx.Info("SKIPPING: Page already recorded.", "pageImage", key)
	} else {
		image, err := os.ReadFile(imagePath)
		if err != nil {
			return false, classify(ErrRasterization, fmt.Errorf("read page image %s: %w", imagePath, err))
		}
		emb, err := v.embedder.Embed(ctx, image)
		if err != nil {
			return false, classify(ErrEmbedding, err)
		}
		rec := models.PageVectorRecord{
			ContentID:  ref.ContentID,
			PageNumber: page,
			Status:     models.PageStatusVectorized,
			CreatedAt:  runStart,
			UpdatedAt:  v.now(),
			Vector:     emb.Vector,
			PageImage:  key,
		}
		inserted, err = v.pages.Append(ctx, rec)
		if err != nil {
			return false, classify(ErrPersistence, err)
		}
		if !inserted {
			logCtx.Info("Page row already vectorized, write skipped.", "pageImage", key)
		}
	}

	if err := v.objects.Publish(ctx, imagePath, objectName, pageContentType); err != nil {
		return inserted, classify(ErrPublish, err)
	}
	logCtx.Info("Page published.", "objectName", objectName)
	return inserted, nil
}

func (v *PageVectorizer) handleError(ctx context.Context, logCtx *slog.Logger, runID, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	err := fmt.Errorf("%s: %w", message, originalErr)
	if trackErr := v.tracker.Failed(ctx, runID, err.Error()); trackErr != nil {
		logCtx.Error("CRITICAL: Failed to record run failure.", "updateError", trackErr)
	}
	return err
}

type noopTracker struct{}

func (noopTracker) Started(context.Context, string, string, time.Time) error { return nil }
func (noopTracker) Resolved(context.Context, string, int64, int) error       { return nil }
func (noopTracker) Failed(context.Context, string, string) error             { return nil }
func (noopTracker) Succeeded(context.Context, string, int) error             { return nil }
