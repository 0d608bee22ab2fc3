package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Service selects which section set Validate checks.
type Service string

const (
	ServiceVectorizer Service = "vectorizer"
	ServiceScanner    Service = "scanner"
)

type StorageConfig struct {
	Bucket           string `yaml:"bucket"`
	PublishDirectory string `yaml:"publish_directory"`
	SourcePrefix     string `yaml:"source_prefix"`
	SignedURLSecs    int    `yaml:"signed_url_secs"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	Schema   string `yaml:"schema"`
}

type EmbeddingConfig struct {
	Backend     string `yaml:"backend"`
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	APISecret   string `yaml:"api_secret"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type VertexConfig struct {
	ProjectID string `yaml:"project_id"`
	Region    string `yaml:"region"`
	Model     string `yaml:"model"`
}

type RasterConfig struct {
	Backend     string `yaml:"backend"`
	Binary      string `yaml:"binary"`
	DPI         int    `yaml:"dpi"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	StagingDir  string `yaml:"staging_dir"`
}

type LookupConfig struct {
	Threshold  float64 `yaml:"threshold"`
	MatchCount int     `yaml:"match_count"`
}

type TrackingConfig struct {
	Collection       string `yaml:"collection"`
	WorkflowID       string `yaml:"workflow_id"`
	WorkflowLocation string `yaml:"workflow_location"`
}

// Config is the root configuration shared by every entry point.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vertex    VertexConfig    `yaml:"vertex"`
	Raster    RasterConfig    `yaml:"raster"`
	Lookup    LookupConfig    `yaml:"lookup"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Port      string          `yaml:"port"`
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load reads an optional YAML file, then overlays environment variables
// and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}
	if err := mergeWithEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.PublishDirectory == "" {
		cfg.Storage.PublishDirectory = "mySpecificDirectory"
	}
	if cfg.Storage.SignedURLSecs == 0 {
		cfg.Storage.SignedURLSecs = 3600
	}
	if cfg.Database.Schema == "" {
		cfg.Database.Schema = "eSense"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "http"
	}
	if cfg.Vertex.Region == "" {
		cfg.Vertex.Region = "us-central1"
	}
	if cfg.Vertex.Model == "" {
		cfg.Vertex.Model = "multimodalembedding@001"
	}
	if cfg.Raster.Backend == "" {
		cfg.Raster.Backend = "ghostscript"
	}
	if cfg.Raster.Binary == "" {
		cfg.Raster.Binary = "gs"
	}
	if cfg.Raster.DPI == 0 {
		cfg.Raster.DPI = 150
	}
	if cfg.Raster.JPEGQuality == 0 {
		cfg.Raster.JPEGQuality = 90
	}
	if cfg.Lookup.Threshold == 0 {
		cfg.Lookup.Threshold = 0.3
	}
	if cfg.Lookup.MatchCount == 0 {
		cfg.Lookup.MatchCount = 2
	}
	if cfg.Tracking.WorkflowLocation == "" {
		cfg.Tracking.WorkflowLocation = "us-central1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
}

func mergeWithEnv(cfg *Config) error {
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.PublishDirectory, "PUBLISH_DIRECTORY")
	setString(&cfg.Storage.SourcePrefix, "SOURCE_PREFIX")

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.User, "PG_USER")
	setString(&cfg.Database.Password, "PG_PASSWORD")
	setString(&cfg.Database.Host, "PG_HOST")
	setString(&cfg.Database.Port, "PG_PORT")
	setString(&cfg.Database.Name, "PG_DATABASE")
	setString(&cfg.Database.Schema, "DB_SCHEMA")

	setString(&cfg.Embedding.Backend, "EMBEDDING_BACKEND")
	setString(&cfg.Embedding.URL, "VECTOR_API_URL")
	setString(&cfg.Embedding.APIKey, "VECTOR_API_KEY")
	setString(&cfg.Embedding.APISecret, "VECTOR_API_SECRET")

	setString(&cfg.Vertex.ProjectID, "PROJECT_ID")
	setString(&cfg.Vertex.Region, "VERTEX_AI_REGION")
	setString(&cfg.Vertex.Model, "VERTEX_EMBEDDING_MODEL")

	setString(&cfg.Raster.Backend, "RASTERIZER")
	setString(&cfg.Raster.Binary, "GHOSTSCRIPT_BIN")
	setString(&cfg.Raster.StagingDir, "STAGING_DIR")

	setString(&cfg.Tracking.Collection, "FIRESTORE_COLLECTION")
	setString(&cfg.Tracking.WorkflowID, "WORKFLOW_ID")
	setString(&cfg.Tracking.WorkflowLocation, "WORKFLOW_LOCATION")
	setString(&cfg.Port, "PORT")

	ints := []struct {
		key string
		dst *int
	}{
		{"SIGNED_URL_EXP_TIME_IN_SEC", &cfg.Storage.SignedURLSecs},
		{"VECTOR_DIMENSION", &cfg.Embedding.Dimension},
		{"EMBEDDING_TIMEOUT_SECS", &cfg.Embedding.TimeoutSecs},
		{"RASTER_DPI", &cfg.Raster.DPI},
		{"RASTER_JPEG_QUALITY", &cfg.Raster.JPEGQuality},
		{"VECTOR_MATCH_COUNT", &cfg.Lookup.MatchCount},
	}
	for _, v := range ints {
		raw, ok := os.LookupEnv(v.key)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", v.key, err)
		}
		*v.dst = n
	}

	if raw := os.Getenv("VECTOR_THRESHOLD"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("VECTOR_THRESHOLD must be a number: %w", err)
		}
		cfg.Lookup.Threshold = f
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ConnString returns DATABASE_URL if set, otherwise a postgres URL built
// from the discrete PG_* settings.
func (c DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.Name,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// SignedURLTTL is the lifetime of signed retrieval URLs.
func (c StorageConfig) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLSecs) * time.Second
}

// Timeout is the embedding HTTP timeout; zero means none.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}
