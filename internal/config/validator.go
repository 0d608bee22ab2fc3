package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the settings the given service needs to start.
func (c *Config) Validate(svc Service) []ValidationError {
	var errs []ValidationError

	if c.Storage.Bucket == "" {
		errs = append(errs, ValidationError{Field: "storage.bucket", Message: "STORAGE_BUCKET must be set"})
	}

	conn := c.Database.ConnString()
	if conn == "" {
		errs = append(errs, ValidationError{Field: "database.url", Message: "DATABASE_URL or PG_HOST must be set"})
	} else if _, err := url.Parse(conn); err != nil {
		errs = append(errs, ValidationError{Field: "database.url", Message: "invalid database URL"})
	}
	if c.Database.Schema == "" {
		errs = append(errs, ValidationError{Field: "database.schema", Message: "schema must not be empty"})
	}

	switch c.Embedding.Backend {
	case "http":
		if c.Embedding.URL == "" {
			errs = append(errs, ValidationError{Field: "embedding.url", Message: "VECTOR_API_URL must be set"})
		}
		if c.Embedding.APIKey == "" || c.Embedding.APISecret == "" {
			errs = append(errs, ValidationError{Field: "embedding.api_key", Message: "VECTOR_API_KEY and VECTOR_API_SECRET must be set"})
		}
	case "vertex":
		if c.Vertex.ProjectID == "" {
			errs = append(errs, ValidationError{Field: "vertex.project_id", Message: "PROJECT_ID must be set for the vertex backend"})
		}
	default:
		errs = append(errs, ValidationError{Field: "embedding.backend", Message: fmt.Sprintf("unknown backend %q", c.Embedding.Backend)})
	}
	if c.Embedding.Dimension < 0 {
		errs = append(errs, ValidationError{Field: "embedding.dimension", Message: "dimension must not be negative"})
	}

	switch svc {
	case ServiceVectorizer:
		if strings.Trim(c.Storage.PublishDirectory, "/") == "" {
			errs = append(errs, ValidationError{Field: "storage.publish_directory", Message: "publish directory must not be empty"})
		}
		if c.Raster.Backend != "ghostscript" && c.Raster.Backend != "fitz" {
			errs = append(errs, ValidationError{Field: "raster.backend", Message: fmt.Sprintf("unknown rasterizer %q", c.Raster.Backend)})
		}
		if c.Raster.JPEGQuality < 1 || c.Raster.JPEGQuality > 100 {
			errs = append(errs, ValidationError{Field: "raster.jpeg_quality", Message: "jpeg_quality must be between 1 and 100"})
		}
		if c.Raster.DPI < 1 {
			errs = append(errs, ValidationError{Field: "raster.dpi", Message: "dpi must be positive"})
		}
		if (c.Tracking.Collection != "" || c.Tracking.WorkflowID != "") && c.Vertex.ProjectID == "" {
			errs = append(errs, ValidationError{Field: "vertex.project_id", Message: "PROJECT_ID must be set when run tracking is enabled"})
		}
	case ServiceScanner:
		if c.Lookup.Threshold <= 0 || c.Lookup.Threshold > 2 {
			errs = append(errs, ValidationError{Field: "lookup.threshold", Message: "threshold must be in (0, 2]"})
		}
		if c.Lookup.MatchCount < 1 {
			errs = append(errs, ValidationError{Field: "lookup.match_count", Message: "match_count must be at least 1"})
		}
		if c.Storage.SignedURLSecs < 1 {
			errs = append(errs, ValidationError{Field: "storage.signed_url_secs", Message: "signed URL lifetime must be positive"})
		}
	}

	return errs
}

// Err folds validation errors into a single error, or nil.
func Err(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(parts, "; "))
}
