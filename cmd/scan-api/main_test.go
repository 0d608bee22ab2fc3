package main

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMatcher struct {
	got  []byte
	resp *models.UploadResponse
	err  error
}

func (f *fakeMatcher) Match(ctx context.Context, image []byte) (*models.UploadResponse, error) {
	f.got = image
	return f.resp, f.err
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadReturnsContentDetails(t *testing.T) {
	title := "Reader A"
	m := &fakeMatcher{resp: &models.UploadResponse{
		Status:         models.StatusSuccess,
		ContentDetails: []models.ContentDetails{{ContentID: 3, Title: &title}},
	}}
	image := base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))

	rec := post(t, uploadHandler(m), `{"fileName":"capture.png","imageBase64":"`+image+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("jpeg bytes"), m.got)
	assert.Contains(t, rec.Body.String(), `"ContentID":3`)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestUploadAcceptsDataURL(t *testing.T) {
	m := &fakeMatcher{resp: &models.UploadResponse{Status: models.StatusSuccess, Message: "match not found"}}
	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))

	rec := post(t, uploadHandler(m), `{"imageBase64":"`+image+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("png"), m.got)
	assert.JSONEq(t, `{"status":"success","message":"match not found"}`, rec.Body.String())
}

func TestUploadMissingImage(t *testing.T) {
	m := &fakeMatcher{}
	rec := post(t, uploadHandler(m), `{"fileName":"capture.png"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded."}`, rec.Body.String())
	assert.Nil(t, m.got)
}

func TestUploadMatchFailure(t *testing.T) {
	m := &fakeMatcher{err: errors.New("embedding failed: 503")}
	image := base64.StdEncoding.EncodeToString([]byte("jpeg"))

	rec := post(t, uploadHandler(m), `{"imageBase64":"`+image+`"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"An error occurred while uploading the file."}`, rec.Body.String())
}

func TestUploadBadRequests(t *testing.T) {
	h := uploadHandler(&fakeMatcher{})

	assert.Equal(t, http.StatusBadRequest, post(t, h, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, `{"imageBase64":"%%%"}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoadConfigPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-api.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)

	t.Setenv("PORT", "7070")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port, "PORT overrides the file")

	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}
