// Package postgres provides a PostgreSQL-backed pose dictionary implementing
// [pose.Renderer].
//
// Each dictionary row maps one upper-case gloss token to its captured pose
// frame sequence, stored as JSONB. Single-letter entries (A–Z) double as the
// fingerspelling alphabet. Tokens without an exact row are phonetically
// matched against the cached vocabulary before being skipped.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	frames, err := store.Render(ctx, "HELLO MY NAME FS-SAM")
package postgres

import (
	"context"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — pose dictionary
// ─────────────────────────────────────────────────────────────────────────────

const ddlPoses = `
CREATE TABLE IF NOT EXISTS poses (
    gloss        TEXT         PRIMARY KEY,
    frames       JSONB        NOT NULL,
    frame_count  INTEGER      NOT NULL DEFAULT 0,
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_poses_updated_at
    ON poses (updated_at);
`

// Migrate creates or ensures the pose dictionary table exists. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, ddlPoses); err != nil {
		return fmt.Errorf("pose store migrate: %w", err)
	}
	return nil
}
