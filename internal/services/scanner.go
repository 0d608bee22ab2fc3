package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"golang.org/x/sync/errgroup"
)

// MatchNotFoundMessage is returned when no stored page is close enough.
const MatchNotFoundMessage = "match not found"

const signConcurrency = 8

type MatchStore interface {
	Nearest(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]models.PageMatch, error)
}

type ContentDirectory interface {
	GroupOf(ctx context.Context, contentID int64) (models.ContentGroup, bool, error)
	ContentIDsInGroup(ctx context.Context, g models.ContentGroup) ([]int64, error)
	Details(ctx context.Context, ids []int64) ([]models.ContentDetails, error)
}

type URLSigner interface {
	SignedURL(key string, ttl time.Duration) (string, error)
}

type ScannerConfig struct {
	// Threshold is the largest cosine distance that still counts as a match.
	Threshold    float64
	MatchCount   int
	SignedURLTTL time.Duration
}

// Scanner identifies the document a captured page image belongs to and
// lists every document in the same chapter and topic.
type Scanner struct {
	embedder Embedder
	matches  MatchStore
	contents ContentDirectory
	signer   URLSigner
	config   ScannerConfig
}

func NewScanner(cfg ScannerConfig, embedder Embedder, matches MatchStore, contents ContentDirectory, signer URLSigner) (*Scanner, error) {
	if embedder == nil || matches == nil || contents == nil || signer == nil {
		return nil, fmt.Errorf("scanner requires an embedder, match store, content directory and signer")
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("scanner threshold must be positive, got %v", cfg.Threshold)
	}
	if cfg.MatchCount < 1 {
		cfg.MatchCount = 1
	}
	return &Scanner{embedder: embedder, matches: matches, contents: contents, signer: signer, config: cfg}, nil
}

// Match embeds image and resolves it to its sibling documents. A missing
// match is a successful response with MatchNotFoundMessage.
func (s *Scanner) Match(ctx context.Context, image []byte) (*models.UploadResponse, error) {
	emb, err := s.embedder.Embed(ctx, image)
	if err != nil {
		return nil, classify(ErrEmbedding, err)
	}

	matches, err := s.matches.Nearest(ctx, emb.Vector, s.config.Threshold, s.config.MatchCount)
	if err != nil {
		return nil, classify(ErrPersistence, err)
	}
	if len(matches) == 0 {
		slog.Info("No page within threshold.", "threshold", s.config.Threshold)
		return &models.UploadResponse{Status: models.StatusSuccess, Message: MatchNotFoundMessage}, nil
	}

	top := matches[0]
	logCtx := slog.With("contentId", top.ContentID, "pageNumber", top.PageNumber, "distance", top.Distance)
	logCtx.Info("Matched page.")

	group, ok, err := s.contents.GroupOf(ctx, top.ContentID)
	if err != nil {
		return nil, classify(ErrPersistence, err)
	}
	if !ok {
		logCtx.Warn("Matched content has no chapter/topic mapping.")
		return &models.UploadResponse{Status: models.StatusSuccess}, nil
	}

	ids, err := s.contents.ContentIDsInGroup(ctx, group)
	if err != nil {
		return nil, classify(ErrPersistence, err)
	}
	details, err := s.contents.Details(ctx, ids)
	if err != nil {
		return nil, classify(ErrPersistence, err)
	}

	s.attachSignedURLs(logCtx, details)
	return &models.UploadResponse{Status: models.StatusSuccess, ContentDetails: details}, nil
}

// attachSignedURLs signs each document's FileName concurrently. A signing
// failure leaves that document's URL nil.
func (s *Scanner) attachSignedURLs(logCtx *slog.Logger, details []models.ContentDetails) {
	var eg errgroup.Group
	eg.SetLimit(signConcurrency)

	for i := range details {
		d := &details[i]
		if d.FileName == nil || *d.FileName == "" {
			continue
		}
		eg.Go(func() error {
			url, err := s.signer.SignedURL(*d.FileName, s.config.SignedURLTTL)
			if err != nil {
				logCtx.Warn("Failed to sign content URL.", "fileName", *d.FileName, "error", err)
				return nil
			}
			d.SignedURL = &url
			return nil
		})
	}
	_ = eg.Wait()
}
