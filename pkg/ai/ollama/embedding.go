package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/tessera-labs/weave/pkg/ai"

	"github.com/ollama/ollama/api"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model.
func (c *CodingOllamaClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	text := strings.TrimSpace(string(input))
	if text == "" {
		return nil, fmt.Errorf("empty embedding input")
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, ai.NewLLMError(ai.KindTransient, "embedding", err)
	}
	if len(res.Embeddings) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res.Embeddings))
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
	})

	return res.Embeddings[0], nil
}
