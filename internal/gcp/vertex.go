package gcp

import (
	"context"
	"encoding/base64"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/Lllllllleong/bookpagevectors/internal/embedding"
	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

const DefaultEmbeddingModel = "multimodalembedding@001"

type predictFunc func(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error)

// VertexEmbedder derives page vectors with a Vertex AI multimodal embedding
// model instead of the HTTP embedding service.
type VertexEmbedder struct {
	endpoint   string
	model      string
	dimension  int
	predict    predictFunc
	baseClient *aiplatform.PredictionClient
}

// NewVertexEmbedder creates a regional prediction client for the publisher
// model. dimension of 0 keeps the model's default output size.
func NewVertexEmbedder(ctx context.Context, projectID, region, model string, dimension int) (*VertexEmbedder, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexEmbedder: projectID and region cannot be empty")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}

	baseClient, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", region)))
	if err != nil {
		return nil, fmt.Errorf("aiplatform.NewPredictionClient: %w", err)
	}

	return &VertexEmbedder{
		endpoint:  fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", projectID, region, model),
		model:     model,
		dimension: dimension,
		predict: func(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
			return baseClient.Predict(ctx, req)
		},
		baseClient: baseClient,
	}, nil
}

func (v *VertexEmbedder) Embed(ctx context.Context, image []byte) (*models.Embedding, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", embedding.ErrEmbedding)
	}

	req, err := v.request(image)
	if err != nil {
		return nil, fmt.Errorf("%w: build prediction request: %w", embedding.ErrEmbedding, err)
	}
	resp, err := v.predict(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: predict %s: %w", embedding.ErrEmbedding, v.model, err)
	}

	vector, err := imageEmbedding(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbedding, err)
	}
	if v.dimension > 0 && len(vector) != v.dimension {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", embedding.ErrEmbedding, v.dimension, len(vector))
	}
	return &models.Embedding{Vector: vector, Model: v.model, Dimension: len(vector)}, nil
}

func (v *VertexEmbedder) request(image []byte) (*aiplatformpb.PredictRequest, error) {
	instance, err := structpb.NewValue(map[string]any{
		"image": map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(image),
		},
	})
	if err != nil {
		return nil, err
	}
	req := &aiplatformpb.PredictRequest{
		Endpoint:  v.endpoint,
		Instances: []*structpb.Value{instance},
	}
	if v.dimension > 0 {
		params, err := structpb.NewValue(map[string]any{"dimension": v.dimension})
		if err != nil {
			return nil, err
		}
		req.Parameters = params
	}
	return req, nil
}

func imageEmbedding(resp *aiplatformpb.PredictResponse) ([]float32, error) {
	if resp == nil || len(resp.GetPredictions()) == 0 {
		return nil, fmt.Errorf("prediction response has no predictions")
	}
	fields := resp.GetPredictions()[0].GetStructValue().GetFields()
	list := fields["imageEmbedding"].GetListValue()
	if list == nil || len(list.GetValues()) == 0 {
		return nil, fmt.Errorf("prediction response has no imageEmbedding")
	}
	vector := make([]float32, len(list.GetValues()))
	for i, v := range list.GetValues() {
		vector[i] = float32(v.GetNumberValue())
	}
	return vector, nil
}

func (v *VertexEmbedder) Close() error {
	if v.baseClient != nil {
		return v.baseClient.Close()
	}
	return nil
}
