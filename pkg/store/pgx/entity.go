package pgx

import (
	"context"

	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const entityChunk = 250

const upsertEntitySQL = `
INSERT INTO entities (id, project_id, name, type, description, quote_ids, confidence, status, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	type = EXCLUDED.type,
	description = EXCLUDED.description,
	quote_ids = EXCLUDED.quote_ids,
	confidence = EXCLUDED.confidence,
	status = EXCLUDED.status,
	embedding = EXCLUDED.embedding,
	updated_at = now()`

// UpsertEntities persists entities in chunks, one transaction per chunk.
// A failure reports how many records were committed; the whole batch is
// safe to resubmit because upserts are keyed by stable identifier.
func (s *CodingDBStorage) UpsertEntities(ctx context.Context, projectID string, entities []coding.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	committed := 0
	err := store.ChunkRange(len(entities), entityChunk, func(start, end int) error {
		chunk := entities[start:end]
		logger.Debug("[Store] Upserting entity chunk", "project", projectID, "count", len(chunk))

		inputs := make([][]byte, len(chunk))
		for i := range chunk {
			inputs[i] = []byte(chunk[i].Description)
		}
		embeddings := s.embedDescriptions(ctx, inputs)

		s.dbLock.Lock()
		defer s.dbLock.Unlock()

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		batch := &pgxv5.Batch{}
		for i, e := range chunk {
			batch.Queue(upsertEntitySQL,
				e.ID, projectID, e.Name, e.Type, e.Description,
				store.DedupeStrings(e.QuoteIDs), e.Confidence, string(e.Status), embeddings[i])
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
		return store.NewPersistenceError("upsert entities", committed, len(entities)-committed, err)
	}
	return nil
}
