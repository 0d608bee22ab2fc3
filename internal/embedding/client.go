// Package embedding calls the external image vector service.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Lllllllleong/bookpagevectors/internal/models"
)

// ErrEmbedding is returned for any failed or unusable embedding call.
var ErrEmbedding = errors.New("embedding failed")

const (
	formField     = "imageFile"
	formFileName  = "image.jpg"
	maxErrorBytes = 512
)

// Config holds embedding client configuration.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	// Dimension, when positive, is the vector length every response must have.
	Dimension int
	// Timeout of zero leaves calls unbounded; the caller's context decides.
	Timeout time.Duration
}

// Client posts image bytes to the vector service.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	apiSecret  string
	dimension  int
}

// response is the body returned by the vector service.
type response struct {
	Filename      string    `json:"filename"`
	AIModel       string    `json:"aiModel"`
	EmbeddingSize int       `json:"embeddingSize"`
	Vector        []float32 `json:"vector"`
}

// NewClient creates a new embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("embedding service URL is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("embedding service credentials are required")
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		dimension:  cfg.Dimension,
	}, nil
}

// Embed sends one image and returns its vector.
func (c *Client) Embed(ctx context.Context, image []byte) (*models.Embedding, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrEmbedding)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(formField, formFileName)
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %w", ErrEmbedding, err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("%w: write form file: %w", ErrEmbedding, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart body: %w", ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("apisecret", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %w", ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, fmt.Errorf("%w: service returned %s: %s", ErrEmbedding, resp.Status, bytes.TrimSpace(snippet))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrEmbedding, err)
	}
	if len(out.Vector) == 0 {
		return nil, fmt.Errorf("%w: response has no vector", ErrEmbedding)
	}
	if c.dimension > 0 && len(out.Vector) != c.dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, expected %d", ErrEmbedding, len(out.Vector), c.dimension)
	}

	size := out.EmbeddingSize
	if size == 0 {
		size = len(out.Vector)
	}
	return &models.Embedding{
		Vector:    out.Vector,
		Model:     out.AIModel,
		Dimension: size,
	}, nil
}
