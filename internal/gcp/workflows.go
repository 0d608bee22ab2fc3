package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/bookpagevectors/internal/models"
)

type createExecutionFunc func(ctx context.Context, req *executionspb.CreateExecutionRequest) (*executionspb.Execution, error)

// WorkflowTrigger starts one Cloud Workflows execution per completed run.
type WorkflowTrigger struct {
	parent string
	create createExecutionFunc
}

func NewWorkflowTrigger(client *executions.Client, projectID, location, workflowID string) (*WorkflowTrigger, error) {
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("NewWorkflowTrigger: projectID, location and workflowID cannot be empty")
	}
	return &WorkflowTrigger{
		parent: workflowParent(projectID, location, workflowID),
		create: func(ctx context.Context, req *executionspb.CreateExecutionRequest) (*executionspb.Execution, error) {
			return client.CreateExecution(ctx, req)
		},
	}, nil
}

func workflowParent(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}

// Notify hands the finished run to the workflow as its JSON argument.
func (w *WorkflowTrigger) Notify(ctx context.Context, payload models.WorkflowPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: w.parent,
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	if _, err := w.create(ctx, req); err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return nil
}
