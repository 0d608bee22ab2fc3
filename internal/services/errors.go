package services

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/bookpagevectors/internal/embedding"
	"github.com/Lllllllleong/bookpagevectors/internal/raster"
	"github.com/Lllllllleong/bookpagevectors/internal/store"
)

// Stage errors. Every failure a run reports wraps exactly one of these.
var (
	ErrInvalidInput  = errors.New("invalid invocation")
	ErrNotFound      = errors.New("file not found")
	ErrDownload      = errors.New("download failed")
	ErrRasterization = raster.ErrRasterization
	ErrEmbedding     = embedding.ErrEmbedding
	ErrPersistence   = store.ErrPersistence
	ErrPublish       = errors.New("publish failed")
)

// NotFoundMessage is the result message for a storage key with no Content row.
const NotFoundMessage = "File not found"

// classify tags err with kind unless it already carries it.
func classify(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
