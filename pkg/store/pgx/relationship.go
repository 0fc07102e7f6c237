package pgx

import (
	"context"

	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const relationshipChunk = 500

const upsertRelationshipSQL = `
INSERT INTO relationships (id, project_id, source_id, target_id, source_type, target_type, label, confidence, quote_id, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, now())
ON CONFLICT (id) DO UPDATE SET
	source_type = EXCLUDED.source_type,
	target_type = EXCLUDED.target_type,
	confidence = EXCLUDED.confidence,
	quote_id = EXCLUDED.quote_id,
	status = EXCLUDED.status,
	updated_at = now()`

// UpsertRelationships persists edges. Both endpoint types must already be
// resolved; the extractor drops anything unresolvable long before it
// reaches this layer.
func (s *CodingDBStorage) UpsertRelationships(ctx context.Context, projectID string, relationships []coding.Relationship) error {
	if len(relationships) == 0 {
		return nil
	}

	committed := 0
	err := store.ChunkRange(len(relationships), relationshipChunk, func(start, end int) error {
		chunk := relationships[start:end]
		logger.Debug("[Store] Upserting relationship chunk", "project", projectID, "count", len(chunk))

		s.dbLock.Lock()
		defer s.dbLock.Unlock()

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		batch := &pgxv5.Batch{}
		for _, r := range chunk {
			batch.Queue(upsertRelationshipSQL,
				r.ID, projectID, r.SourceID, r.TargetID, r.SourceType, r.TargetType,
				r.Label, r.Confidence, r.QuoteID, string(r.Status))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}

		committed += len(chunk)
		return nil
	})
	if err != nil {
		return store.NewPersistenceError("upsert relationships", committed, len(relationships)-committed, err)
	}
	return nil
}
