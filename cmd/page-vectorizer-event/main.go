package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/bookpagevectors/internal/config"
	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/Lllllllleong/bookpagevectors/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	vectorizerInstance *services.PageVectorizer
	eventFilter        services.EventFilter
	once               sync.Once
	initErr            error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("VectorizePages", vectorizePages)
}

// main is required by the Go Functions Framework.
func main() {}

func initialize(ctx context.Context) error {
	cfg, err := config.Load(config.GetEnv("CONFIG_FILE", ""))
	if err != nil {
		return err
	}
	eventFilter = services.EventFilter{
		Bucket:           cfg.Storage.Bucket,
		SourcePrefix:     cfg.Storage.SourcePrefix,
		PublishDirectory: cfg.Storage.PublishDirectory,
	}
	// The runtime lives as long as the function instance.
	vectorizerInstance, _, err = services.NewPageVectorizerFromConfig(ctx, cfg)
	return err
}

// vectorizePages runs the pipeline for a finalized source PDF.
func vectorizePages(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		initErr = initialize(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	if ok, reason := eventFilter.ShouldProcess(gcsEvent); !ok {
		slog.Info("Ignoring GCS object.", "gcsBucket", gcsEvent.Bucket, "gcsObject", gcsEvent.Name, "reason", reason)
		return nil
	}

	result := vectorizerInstance.Handle(ctx, gcsEvent.Invocation())
	if result.Status != models.StatusSuccess {
		return fmt.Errorf("vectorizing gs://%s/%s: %s", gcsEvent.Bucket, gcsEvent.Name, result.Message)
	}
	return nil
}
