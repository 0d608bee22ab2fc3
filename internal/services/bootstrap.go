package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/Lllllllleong/bookpagevectors/internal/config"
	"github.com/Lllllllleong/bookpagevectors/internal/embedding"
	"github.com/Lllllllleong/bookpagevectors/internal/gcp"
	"github.com/Lllllllleong/bookpagevectors/internal/raster"
	"github.com/Lllllllleong/bookpagevectors/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runtime owns the long-lived clients behind a service.
type Runtime struct {
	closers []func() error
}

func (r *Runtime) add(closer func() error) { r.closers = append(r.closers, closer) }

// Close releases clients in reverse creation order.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// NewPageVectorizerFromConfig connects every collaborator the batch
// pipeline needs.
func NewPageVectorizerFromConfig(ctx context.Context, cfg *config.Config) (*PageVectorizer, *Runtime, error) {
	if err := config.Err(cfg.Validate(config.ServiceVectorizer)); err != nil {
		return nil, nil, err
	}
	rt := &Runtime{}
	v, err := buildPageVectorizer(ctx, cfg, rt)
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}
	slog.Info("Page vectorizer initialized.",
		"bucket", cfg.Storage.Bucket,
		"publishDirectory", cfg.Storage.PublishDirectory,
		"embeddingBackend", cfg.Embedding.Backend,
		"rasterizer", cfg.Raster.Backend)
	return v, rt, nil
}

func buildPageVectorizer(ctx context.Context, cfg *config.Config, rt *Runtime) (*PageVectorizer, error) {
	pool, err := openPool(ctx, cfg, rt)
	if err != nil {
		return nil, err
	}
	objects, err := openObjectStore(ctx, cfg, rt)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(ctx, cfg, rt)
	if err != nil {
		return nil, err
	}
	rasterizer, err := newRasterizer(cfg.Raster)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if cfg.Tracking.Collection != "" {
		fsClient, err := gcp.NewFirestoreClient(ctx, cfg.Vertex.ProjectID)
		if err != nil {
			return nil, err
		}
		rt.add(fsClient.Close)
		ledger, err := gcp.NewRunLedger(fsClient, cfg.Tracking.Collection)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRunTracker(ledger))
	}
	if cfg.Tracking.WorkflowID != "" {
		execClient, err := executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
		rt.add(execClient.Close)
		trigger, err := gcp.NewWorkflowTrigger(execClient, cfg.Vertex.ProjectID, cfg.Tracking.WorkflowLocation, cfg.Tracking.WorkflowID)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCompletionNotifier(trigger))
	}

	return NewPageVectorizer(
		PageVectorizerConfig{PublishDirectory: cfg.Storage.PublishDirectory, StagingDir: cfg.Raster.StagingDir},
		store.NewContentRepository(pool, cfg.Database.Schema),
		objects,
		store.NewPageVectorRepository(pool, cfg.Database.Schema),
		embedder,
		rasterizer,
		opts...,
	)
}

// NewScannerFromConfig connects the collaborators of the lookup path.
func NewScannerFromConfig(ctx context.Context, cfg *config.Config) (*Scanner, *Runtime, error) {
	if err := config.Err(cfg.Validate(config.ServiceScanner)); err != nil {
		return nil, nil, err
	}
	rt := &Runtime{}
	s, err := buildScanner(ctx, cfg, rt)
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}
	slog.Info("Scanner initialized.", "threshold", cfg.Lookup.Threshold, "matchCount", cfg.Lookup.MatchCount)
	return s, rt, nil
}

func buildScanner(ctx context.Context, cfg *config.Config, rt *Runtime) (*Scanner, error) {
	pool, err := openPool(ctx, cfg, rt)
	if err != nil {
		return nil, err
	}
	objects, err := openObjectStore(ctx, cfg, rt)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(ctx, cfg, rt)
	if err != nil {
		return nil, err
	}
	return NewScanner(
		ScannerConfig{
			Threshold:    cfg.Lookup.Threshold,
			MatchCount:   cfg.Lookup.MatchCount,
			SignedURLTTL: cfg.Storage.SignedURLTTL(),
		},
		embedder,
		store.NewPageVectorRepository(pool, cfg.Database.Schema),
		store.NewContentRepository(pool, cfg.Database.Schema),
		objects,
	)
}

func openPool(ctx context.Context, cfg *config.Config, rt *Runtime) (*pgxpool.Pool, error) {
	pool, err := store.NewPool(ctx, cfg.Database.ConnString())
	if err != nil {
		return nil, err
	}
	rt.add(func() error { pool.Close(); return nil })
	return pool, nil
}

func openObjectStore(ctx context.Context, cfg *config.Config, rt *Runtime) (*gcp.ObjectStore, error) {
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	rt.add(storageClient.Close)
	return gcp.NewObjectStore(storageClient, cfg.Storage.Bucket)
}

func newEmbedder(ctx context.Context, cfg *config.Config, rt *Runtime) (Embedder, error) {
	switch cfg.Embedding.Backend {
	case "vertex":
		v, err := gcp.NewVertexEmbedder(ctx, cfg.Vertex.ProjectID, cfg.Vertex.Region, cfg.Vertex.Model, cfg.Embedding.Dimension)
		if err != nil {
			return nil, err
		}
		rt.add(v.Close)
		return v, nil
	default:
		return embedding.NewClient(embedding.Config{
			URL:       cfg.Embedding.URL,
			APIKey:    cfg.Embedding.APIKey,
			APISecret: cfg.Embedding.APISecret,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout(),
		})
	}
}

func newRasterizer(cfg config.RasterConfig) (raster.Rasterizer, error) {
	switch cfg.Backend {
	case "ghostscript":
		return raster.NewGhostscript(cfg.Binary, cfg.DPI, cfg.JPEGQuality), nil
	case "fitz":
		return raster.NewFitz(cfg.DPI, cfg.JPEGQuality), nil
	default:
		return nil, fmt.Errorf("unknown rasterizer %q", cfg.Backend)
	}
}
