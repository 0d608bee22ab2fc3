package services

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	stagingPattern = "page-vectorizer-*"
	sourceFileName = "source.pdf"
	pagesDirName   = "pages"
)

// StagingArea is the local directory tree owned by one run: the downloaded
// source file and the pages/ subdirectory the rasterizer writes into.
type StagingArea struct {
	root string
}

// NewStagingArea creates a fresh directory under parent, or under the OS
// temp directory when parent is empty.
func NewStagingArea(parent string) (*StagingArea, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create staging parent %s: %w", parent, err)
		}
	}
	root, err := os.MkdirTemp(parent, stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &StagingArea{root: root}, nil
}

func (s *StagingArea) Root() string       { return s.root }
func (s *StagingArea) SourcePath() string { return filepath.Join(s.root, sourceFileName) }
func (s *StagingArea) PagesDir() string   { return filepath.Join(s.root, pagesDirName) }

// Cleanup removes the whole tree. Calling it again is a no-op.
func (s *StagingArea) Cleanup() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("failed to remove staging area %s: %w", s.root, err)
	}
	return nil
}
