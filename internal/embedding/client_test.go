package embedding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, dim int) *Client {
	t.Helper()
	c, err := NewClient(Config{URL: url, APIKey: "key-1", APISecret: "secret-1", Dimension: dim})
	require.NoError(t, err)
	return c
}

func TestEmbedSendsMultipartWithCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("apikey"))
		assert.Equal(t, "secret-1", r.Header.Get("apisecret"))

		file, header, err := r.FormFile("imageFile")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		assert.NoError(t, err)
		assert.Equal(t, "image.jpg", header.Filename)
		assert.Equal(t, []byte("jpeg-bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"filename":      "image.jpg",
			"aiModel":       "clip-ViT-L-14",
			"embeddingSize": 3,
			"vector":        []float32{0.13, -0.39, 1.96},
		})
	}))
	defer srv.Close()

	emb, err := newTestClient(t, srv.URL, 3).Embed(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.13, -0.39, 1.96}, emb.Vector)
	assert.Equal(t, "clip-ViT-L-14", emb.Model)
	assert.Equal(t, 3, emb.Dimension)
}

func TestEmbedDimensionDefaultsToVectorLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"vector":[1,2]}`))
	}))
	defer srv.Close()

	emb, err := newTestClient(t, srv.URL, 0).Embed(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 2, emb.Dimension)
}

func TestEmbedFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		dim     int
		image   []byte
		closeIt bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", image: []byte("x")},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "bad key", image: []byte("x")},
		{name: "missing vector", status: http.StatusOK, body: `{"aiModel":"m"}`, image: []byte("x")},
		{name: "empty vector", status: http.StatusOK, body: `{"vector":[]}`, image: []byte("x")},
		{name: "not json", status: http.StatusOK, body: `<html>`, image: []byte("x")},
		{name: "wrong dimension", status: http.StatusOK, body: `{"vector":[1,2,3]}`, dim: 4, image: []byte("x")},
		{name: "empty image", status: http.StatusOK, body: `{"vector":[1]}`},
		{name: "unreachable", closeIt: true, image: []byte("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			if tt.closeIt {
				srv.Close()
			} else {
				defer srv.Close()
			}

			_, err := newTestClient(t, srv.URL, tt.dim).Embed(context.Background(), tt.image)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmbedding)
		})
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k", APISecret: "s"})
	assert.Error(t, err)
	_, err = NewClient(Config{URL: "http://x", APIKey: "k"})
	assert.Error(t, err)
}
