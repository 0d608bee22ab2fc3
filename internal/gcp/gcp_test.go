package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/bookpagevectors/internal/embedding"
	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func predictionWith(t *testing.T, values ...any) *aiplatformpb.PredictResponse {
	t.Helper()
	pred, err := structpb.NewValue(map[string]any{"imageEmbedding": values})
	require.NoError(t, err)
	return &aiplatformpb.PredictResponse{Predictions: []*structpb.Value{pred}}
}

func TestVertexEmbedderEmbed(t *testing.T) {
	var got *aiplatformpb.PredictRequest
	v := &VertexEmbedder{
		endpoint:  "projects/p/locations/us-central1/publishers/google/models/multimodalembedding@001",
		model:     DefaultEmbeddingModel,
		dimension: 3,
		predict: func(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
			got = req
			return predictionWith(t, 0.25, -0.5, 1.0), nil
		},
	}

	emb, err := v.Embed(context.Background(), []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1.0}, emb.Vector)
	assert.Equal(t, 3, emb.Dimension)
	assert.Equal(t, DefaultEmbeddingModel, emb.Model)

	require.NotNil(t, got)
	assert.Equal(t, v.endpoint, got.GetEndpoint())
	require.Len(t, got.GetInstances(), 1)
	image := got.GetInstances()[0].GetStructValue().GetFields()["image"].GetStructValue()
	assert.Equal(t, "/9g=", image.GetFields()["bytesBase64Encoded"].GetStringValue())
	assert.Equal(t, float64(3), got.GetParameters().GetStructValue().GetFields()["dimension"].GetNumberValue())
}

func TestVertexEmbedderFailures(t *testing.T) {
	tests := []struct {
		name      string
		dimension int
		resp      func(t *testing.T) *aiplatformpb.PredictResponse
		err       error
	}{
		{name: "rpc error", err: errors.New("unavailable")},
		{name: "no predictions", resp: func(t *testing.T) *aiplatformpb.PredictResponse { return &aiplatformpb.PredictResponse{} }},
		{name: "empty embedding", resp: func(t *testing.T) *aiplatformpb.PredictResponse { return predictionWith(t) }},
		{name: "wrong dimension", dimension: 4, resp: func(t *testing.T) *aiplatformpb.PredictResponse { return predictionWith(t, 1.0, 2.0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &VertexEmbedder{
				model:     DefaultEmbeddingModel,
				dimension: tt.dimension,
				predict: func(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return tt.resp(t), nil
				},
			}
			_, err := v.Embed(context.Background(), []byte("jpeg"))
			assert.ErrorIs(t, err, embedding.ErrEmbedding)
		})
	}

	v := &VertexEmbedder{}
	_, err := v.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, embedding.ErrEmbedding)
}

func TestWorkflowTriggerNotify(t *testing.T) {
	var got *executionspb.CreateExecutionRequest
	w := &WorkflowTrigger{
		parent: workflowParent("proj", "us-central1", "page-vectors-done"),
		create: func(ctx context.Context, req *executionspb.CreateExecutionRequest) (*executionspb.Execution, error) {
			got = req
			return &executionspb.Execution{}, nil
		},
	}

	payload := models.WorkflowPayload{ContentID: 3, StorageKey: "books/english-reader-A.pdf", PageCount: 3, RunID: "run-1"}
	require.NoError(t, w.Notify(context.Background(), payload))
	require.NotNil(t, got)
	assert.Equal(t, "projects/proj/locations/us-central1/workflows/page-vectors-done", got.GetParent())

	var decoded models.WorkflowPayload
	require.NoError(t, json.Unmarshal([]byte(got.GetExecution().GetArgument()), &decoded))
	assert.Equal(t, payload, decoded)

	w.create = func(ctx context.Context, req *executionspb.CreateExecutionRequest) (*executionspb.Execution, error) {
		return nil, errors.New("permission denied")
	}
	assert.Error(t, w.Notify(context.Background(), payload))
}

func TestNewWorkflowTriggerValidation(t *testing.T) {
	_, err := NewWorkflowTrigger(nil, "proj", "", "wf")
	assert.Error(t, err)
}

func TestRunLedgerUpdates(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, []firestore.Update{
		{Path: "status", Value: models.RunStatusFailed},
		{Path: "updatedAt", Value: at},
		{Path: "errorDetails", Value: "page 2: boom"},
	}, statusUpdates(models.RunStatusFailed, "page 2: boom", at))

	assert.Len(t, statusUpdates(models.RunStatusSucceeded, "", at), 2)

	assert.Equal(t, []firestore.Update{
		{Path: "contentId", Value: int64(3)},
		{Path: "pageCount", Value: 12},
		{Path: "updatedAt", Value: at},
	}, resolvedUpdates(3, 12, at))
}
