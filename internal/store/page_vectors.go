package store

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// PageVectorRepository writes ContentPageVector rows and searches them.
type PageVectorRepository struct {
	db     DB
	tables tables
}

func NewPageVectorRepository(db DB, schema string) *PageVectorRepository {
	return &PageVectorRepository{db: db, tables: tables{schema: schema}}
}

// Append writes one page record in its own statement. An existing row for
// (ContentId, PageNumber) with the same status is left alone and Append
// reports false. A row with any other status is overwritten, so pages left
// behind in an unfinished state are repaired on the next run.
func (r *PageVectorRepository) Append(ctx context.Context, rec models.PageVectorRecord) (bool, error) {
	if len(rec.Vector) == 0 {
		return false, fmt.Errorf("%w: page %d has an empty vector", ErrPersistence, rec.PageNumber)
	}
	stmt := fmt.Sprintf(`
		INSERT INTO %s AS pv
		("ContentId", "PageNumber", "Status", "CreatedAt", "PageVector", "UpdatedAt", "PageImage")
		VALUES ($1, $2, $3, $4, $5::vector, $6, $7)
		ON CONFLICT ("ContentId", "PageNumber") DO UPDATE SET
			"Status" = EXCLUDED."Status",
			"PageVector" = EXCLUDED."PageVector",
			"UpdatedAt" = EXCLUDED."UpdatedAt",
			"PageImage" = EXCLUDED."PageImage"
		WHERE pv."Status" IS DISTINCT FROM EXCLUDED."Status"`, r.tables.pageVector())

	tag, err := r.db.Exec(ctx, stmt,
		rec.ContentID,
		rec.PageNumber,
		rec.Status,
		rec.CreatedAt,
		pgvector.NewVector(rec.Vector),
		rec.UpdatedAt,
		rec.PageImage,
	)
	if err != nil {
		return false, persistenceErr(fmt.Sprintf("insert page %d", rec.PageNumber), err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordedPages returns the page numbers already vectorized for a Content.
func (r *PageVectorRepository) RecordedPages(ctx context.Context, contentID int64) (map[int]bool, error) {
	query := fmt.Sprintf(`
		SELECT "PageNumber"
		FROM %s
		WHERE "ContentId" = $1 AND "Status" = $2`, r.tables.pageVector())

	rows, err := r.db.Query(ctx, query, contentID, models.PageStatusVectorized)
	if err != nil {
		return nil, persistenceErr("fetch recorded pages", err)
	}
	pages, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, persistenceErr("scan recorded pages", err)
	}

	recorded := make(map[int]bool, len(pages))
	for _, p := range pages {
		recorded[int(p)] = true
	}
	return recorded, nil
}

// Nearest returns up to limit vectorized pages whose cosine distance to
// vector is at most maxDistance, closest first.
func (r *PageVectorRepository) Nearest(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]models.PageMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT "ContentId", "PageNumber", "PageImage", "PageVector" <=> $1::vector AS distance
		FROM %s
		WHERE "Status" = $2 AND "PageVector" <=> $1::vector <= $3
		ORDER BY distance
		LIMIT $4`, r.tables.pageVector())

	rows, err := r.db.Query(ctx, query, pgvector.NewVector(vector), models.PageStatusVectorized, maxDistance, limit)
	if err != nil {
		return nil, persistenceErr("search page vectors", err)
	}
	defer rows.Close()

	var matches []models.PageMatch
	for rows.Next() {
		var (
			m    models.PageMatch
			page int64
		)
		if err := rows.Scan(&m.ContentID, &page, &m.PageImage, &m.Distance); err != nil {
			return nil, persistenceErr("scan page match", err)
		}
		m.PageNumber = int(page)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate page matches", err)
	}
	return matches, nil
}
