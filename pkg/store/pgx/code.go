package pgx

import (
	"context"

	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const codeChunk = 250

const upsertCodeSQL = `
INSERT INTO codes (id, project_id, name, description, level, parent_id, frequency, quote_ids, confidence, status, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	level = EXCLUDED.level,
	parent_id = EXCLUDED.parent_id,
	frequency = EXCLUDED.frequency,
	quote_ids = EXCLUDED.quote_ids,
	confidence = EXCLUDED.confidence,
	status = EXCLUDED.status,
	embedding = EXCLUDED.embedding,
	updated_at = now()`

// UpsertCodes persists the taxonomy's codes. Parent references are stored
// as written; callers persist a whole taxonomy at once so parents and
// children land in the same batch.
func (s *CodingDBStorage) UpsertCodes(ctx context.Context, projectID string, codes []coding.Code) error {
	if len(codes) == 0 {
		return nil
	}

	committed := 0
	err := store.ChunkRange(len(codes), codeChunk, func(start, end int) error {
		chunk := codes[start:end]
		logger.Debug("[Store] Upserting code chunk", "project", projectID, "count", len(chunk))

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
		for i, c := range chunk {
			batch.Queue(upsertCodeSQL,
				c.ID, projectID, c.Name, c.Description, c.Level, c.ParentID,
				c.Frequency, store.DedupeStrings(c.QuoteIDs), c.Confidence, string(c.Status), embeddings[i])
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
		return store.NewPersistenceError("upsert codes", committed, len(codes)-committed, err)
	}
	return nil
}

// Codebook loads the persisted codes for a project, parents before
// children, so closed and mixed runs can seed extraction with it.
func (s *CodingDBStorage) Codebook(ctx context.Context, projectID string) ([]coding.Code, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, name, description, level, COALESCE(parent_id, ''), frequency, quote_ids, confidence, status
		FROM codes
		WHERE project_id = $1
		ORDER BY level, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coding.Code
	for rows.Next() {
		var c coding.Code
		var status string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Level, &c.ParentID,
			&c.Frequency, &c.QuoteIDs, &c.Confidence, &status); err != nil {
			return nil, err
		}
		c.Status = coding.ReviewStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}
