package pgx

import (
	"context"

	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/store"

	"github.com/pgvector/pgvector-go"
)

// embedDescriptions turns description texts into pgvector values. A failed
// or absent embedding degrades to the zero vector instead of failing the
// write; similarity search quality suffers but persistence never blocks on
// the embedding endpoint.
func (s *CodingDBStorage) embedDescriptions(ctx context.Context, inputs [][]byte) []pgvector.Vector {
	out := make([]pgvector.Vector, len(inputs))

	var embeddings [][]float32
	if s.aiClient != nil {
		var err error
		embeddings, err = store.GenerateEmbeddings(ctx, s.aiClient, inputs, s.maxParallel)
		if err != nil {
			logger.Warn("[Store] Embedding generation failed, storing zero vectors", "err", err)
			embeddings = nil
		}
	}

	for i := range out {
		if embeddings != nil && len(embeddings[i]) == EmbeddingDim {
			out[i] = pgvector.NewVector(embeddings[i])
			continue
		}
		out[i] = pgvector.NewVector(make([]float32, EmbeddingDim))
	}
	return out
}
