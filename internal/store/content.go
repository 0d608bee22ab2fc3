package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/jackc/pgx/v5"
)

// ContentRepository reads Content and ContentMap. It never writes.
type ContentRepository struct {
	db     DB
	tables tables
}

func NewContentRepository(db DB, schema string) *ContentRepository {
	return &ContentRepository{db: db, tables: tables{schema: schema}}
}

// Resolve returns the Content whose FileName equals storageKey. When several
// rows share the key the lowest ContentID wins.
func (r *ContentRepository) Resolve(ctx context.Context, storageKey string) (models.ContentRef, error) {
	query := fmt.Sprintf(`
		SELECT "ContentID", "FileName"
		FROM %s
		WHERE "FileName" = $1
		ORDER BY "ContentID" ASC
		LIMIT 1`, r.tables.content())

	var ref models.ContentRef
	err := r.db.QueryRow(ctx, query, storageKey).Scan(&ref.ContentID, &ref.FileName)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ContentRef{}, fmt.Errorf("%w: %s", ErrContentNotFound, storageKey)
	}
	if err != nil {
		return models.ContentRef{}, persistenceErr("resolve content", err)
	}
	return ref, nil
}

// GroupOf returns the chapter/topic a Content is mapped to. The bool is
// false when the Content has no ContentMap row.
func (r *ContentRepository) GroupOf(ctx context.Context, contentID int64) (models.ContentGroup, bool, error) {
	query := fmt.Sprintf(`
		SELECT "ChapterID", "TopicID"
		FROM %s
		WHERE "ContentID" = $1
		LIMIT 1`, r.tables.contentMap())

	var g models.ContentGroup
	err := r.db.QueryRow(ctx, query, contentID).Scan(&g.ChapterID, &g.TopicID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ContentGroup{}, false, nil
	}
	if err != nil {
		return models.ContentGroup{}, false, persistenceErr("fetch chapter and topic", err)
	}
	return g, true, nil
}

// ContentIDsInGroup lists the distinct ContentIDs sharing a chapter/topic.
func (r *ContentRepository) ContentIDsInGroup(ctx context.Context, g models.ContentGroup) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT "ContentID"
		FROM %s
		WHERE "ChapterID" = $1 AND "TopicID" = $2
		ORDER BY "ContentID"`, r.tables.contentMap())

	rows, err := r.db.Query(ctx, query, g.ChapterID, g.TopicID)
	if err != nil {
		return nil, persistenceErr("fetch content ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, persistenceErr("scan content ids", err)
	}
	return ids, nil
}

// Details loads the Content metadata for ids, ordered by ContentID.
func (r *ContentRepository) Details(ctx context.Context, ids []int64) ([]models.ContentDetails, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT "ContentID", "Title", "ContentName", "ContentDescription", "FilePath",
		       "FileName", "DisplayFileName", "FileTypeID", "FileSize", "Duration",
		       "VideoResolution", "Publisher", "Author", "Thumbnail", "StatusID",
		       "UpdatedBy", "UpdatedOn", "ThumbnailPath", "SpriteSheetPath", "H5PID",
		       "ThumbnailType", "IsEncrypted", "IsEncryptionRequire", "TempPath"
		FROM %s
		WHERE "ContentID" = ANY($1)
		ORDER BY "ContentID"`, r.tables.content())

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, persistenceErr("fetch content details", err)
	}
	defer rows.Close()

	var out []models.ContentDetails
	for rows.Next() {
		var d models.ContentDetails
		if err := rows.Scan(
			&d.ContentID, &d.Title, &d.ContentName, &d.ContentDescription, &d.FilePath,
			&d.FileName, &d.DisplayFileName, &d.FileTypeID, &d.FileSize, &d.Duration,
			&d.VideoResolution, &d.Publisher, &d.Author, &d.Thumbnail, &d.StatusID,
			&d.UpdatedBy, &d.UpdatedOn, &d.ThumbnailPath, &d.SpriteSheetPath, &d.H5PID,
			&d.ThumbnailType, &d.IsEncrypted, &d.IsEncryptionRequire, &d.TempPath,
		); err != nil {
			return nil, persistenceErr("scan content details", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate content details", err)
	}
	return out, nil
}
