package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Lllllllleong/bookpagevectors/internal/config"
	"github.com/Lllllllleong/bookpagevectors/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRasterizer(t *testing.T) {
	r, err := newRasterizer(config.RasterConfig{Backend: "ghostscript", Binary: "gswin64c.exe", DPI: 150, JPEGQuality: 90})
	require.NoError(t, err)
	gs, ok := r.(*raster.Ghostscript)
	require.True(t, ok)
	assert.Equal(t, "gswin64c.exe", gs.Binary)

	r, err = newRasterizer(config.RasterConfig{Backend: "fitz", DPI: 96, JPEGQuality: 80})
	require.NoError(t, err)
	assert.IsType(t, &raster.Fitz{}, r)

	_, err = newRasterizer(config.RasterConfig{Backend: "imagemagick"})
	assert.Error(t, err)
}

func TestRuntimeCloseReverseOrder(t *testing.T) {
	var order []int
	rt := &Runtime{}
	rt.add(func() error { order = append(order, 1); return nil })
	rt.add(func() error { order = append(order, 2); return errors.New("already closed") })
	rt.add(func() error { order = append(order, 3); return nil })

	err := rt.Close()
	assert.EqualError(t, err, "already closed")
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, rt.Close())
}

func TestFromConfigRejectsInvalidConfig(t *testing.T) {
	_, _, err := NewPageVectorizerFromConfig(context.Background(), &config.Config{})
	assert.ErrorContains(t, err, "STORAGE_BUCKET")

	_, _, err = NewScannerFromConfig(context.Background(), &config.Config{})
	assert.ErrorContains(t, err, "invalid configuration")
}
