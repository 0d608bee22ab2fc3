package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EnsureSchema creates the pieces the vectorizer writes to: the vector
// extension, ContentPageVector, and the unique index on (ContentId,
// PageNumber) that makes Append idempotent. Content and ContentMap are
// owned elsewhere and are not touched. dimension of 0 leaves the vector
// column unsized.
func EnsureSchema(ctx context.Context, db DB, schema string, dimension int) error {
	t := tables{schema: schema}

	vectorType := "vector"
	if dimension > 0 {
		vectorType = fmt.Sprintf("vector(%d)", dimension)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			"ContentId"  BIGINT      NOT NULL,
			"PageNumber" INTEGER     NOT NULL,
			"Status"     INTEGER     NOT NULL,
			"CreatedAt"  TIMESTAMPTZ NOT NULL,
			"PageVector" %s          NOT NULL,
			"UpdatedAt"  TIMESTAMPTZ NOT NULL,
			"PageImage"  TEXT        NOT NULL
		)`, t.pageVector(), vectorType),
		fmt.Sprintf(`
		CREATE UNIQUE INDEX IF NOT EXISTS %s
		ON %s ("ContentId", "PageNumber")`,
			pgx.Identifier{"ContentPageVector_ContentId_PageNumber_key"}.Sanitize(), t.pageVector()),
		fmt.Sprintf(`
		CREATE UNIQUE INDEX IF NOT EXISTS %s
		ON %s ("PageImage")`,
			pgx.Identifier{"ContentPageVector_PageImage_key"}.Sanitize(), t.pageVector()),
	}
	if schema != "" {
		stmts = append([]string{fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{schema}.Sanitize())}, stmts...)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return persistenceErr("ensure schema", err)
		}
	}
	return nil
}
