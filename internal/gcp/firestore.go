package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/bookpagevectors/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// RunLedger keeps one Firestore document per pipeline run, keyed by run ID.
type RunLedger struct {
	collection *firestore.CollectionRef
	now        func() time.Time
}

func NewRunLedger(client *firestore.Client, collection string) (*RunLedger, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name must be provided to create a run ledger")
	}
	return &RunLedger{collection: client.Collection(collection), now: time.Now}, nil
}

func (l *RunLedger) Started(ctx context.Context, runID, storageKey string, at time.Time) error {
	run := models.Run{
		StorageKey: storageKey,
		Status:     models.RunStatusRunning,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if _, err := l.collection.Doc(runID).Set(ctx, run); err != nil {
		return fmt.Errorf("failed to create run document %s: %w", runID, err)
	}
	return nil
}

func (l *RunLedger) Resolved(ctx context.Context, runID string, contentID int64, pageCount int) error {
	return l.update(ctx, runID, resolvedUpdates(contentID, pageCount, l.now()))
}

func (l *RunLedger) Failed(ctx context.Context, runID, details string) error {
	return l.update(ctx, runID, statusUpdates(models.RunStatusFailed, details, l.now()))
}

func (l *RunLedger) Succeeded(ctx context.Context, runID string, pagesWritten int) error {
	updates := append(statusUpdates(models.RunStatusSucceeded, "", l.now()),
		firestore.Update{Path: "pagesWritten", Value: pagesWritten})
	return l.update(ctx, runID, updates)
}

func (l *RunLedger) update(ctx context.Context, runID string, updates []firestore.Update) error {
	if _, err := l.collection.Doc(runID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update run document %s: %w", runID, err)
	}
	return nil
}

func resolvedUpdates(contentID int64, pageCount int, at time.Time) []firestore.Update {
	return []firestore.Update{
		{Path: "contentId", Value: contentID},
		{Path: "pageCount", Value: pageCount},
		{Path: "updatedAt", Value: at},
	}
}

func statusUpdates(status, errDetails string, at time.Time) []firestore.Update {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: at},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	return updates
}
