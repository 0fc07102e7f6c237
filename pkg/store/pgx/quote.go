package pgx

import (
	"context"

	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const quoteChunk = 500

const upsertQuoteSQL = `
INSERT INTO quotes (id, project_id, interview_id, text, speaker, paragraph, start_offset, end_offset, code_ids, link_target_id, link_label, link_confidence, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, now())
ON CONFLICT (id) DO UPDATE SET
	speaker = EXCLUDED.speaker,
	code_ids = EXCLUDED.code_ids,
	link_target_id = EXCLUDED.link_target_id,
	link_label = EXCLUDED.link_label,
	link_confidence = EXCLUDED.link_confidence,
	updated_at = now()`

// UpsertQuotes persists quotes. The verbatim text and offsets are written
// once and never overwritten; re-upserts only refresh mutable annotations
// such as code references and speaker attribution.
func (s *CodingDBStorage) UpsertQuotes(ctx context.Context, projectID string, quotes []coding.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	committed := 0
	err := store.ChunkRange(len(quotes), quoteChunk, func(start, end int) error {
		chunk := quotes[start:end]
		logger.Debug("[Store] Upserting quote chunk", "project", projectID, "count", len(chunk))

		s.dbLock.Lock()
		defer s.dbLock.Unlock()

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		batch := &pgxv5.Batch{}
		for _, q := range chunk {
			linkTarget, linkLabel := "", ""
			var linkConfidence *float64
			if q.Link != nil {
				linkTarget = q.Link.TargetQuoteID
				linkLabel = q.Link.Label
				linkConfidence = &q.Link.Confidence
			}
			batch.Queue(upsertQuoteSQL,
				q.ID, projectID, q.InterviewID, q.Text, q.Speaker, q.Paragraph,
				q.StartOffset, q.EndOffset, store.DedupeStrings(q.CodeIDs),
				linkTarget, linkLabel, linkConfidence)
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
		return store.NewPersistenceError("upsert quotes", committed, len(quotes)-committed, err)
	}
	return nil
}
