package openai

import (
	"sync"

	"github.com/tessera-labs/weave/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// CodingOpenAIClient implements ai.CodingAIClient against any
// OpenAI-compatible endpoint. Separate clients are held for chat and
// embedding tasks so the two can point at different providers.
//
// A CodingOpenAIClient should be created using NewCodingOpenAIClient.
type CodingOpenAIClient struct {
	extractionModel string
	embeddingModel  string

	chatURL      string
	embeddingURL string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewCodingOpenAIClientParams defines the configuration parameters for
// creating a new CodingOpenAIClient.
type NewCodingOpenAIClientParams struct {
	ExtractionModel string
	EmbeddingModel  string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string
}

// NewCodingOpenAIClient creates a client configured with the provided
// parameters.
//
// Example:
//
//	client := openai.NewCodingOpenAIClient(openai.NewCodingOpenAIClientParams{
//		ExtractionModel: "gpt-4o-mini",
//		EmbeddingModel:  "text-embedding-3-small",
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//		EmbeddingKey:    os.Getenv("OPENAI_API_KEY"),
//	})
func NewCodingOpenAIClient(params NewCodingOpenAIClientParams) *CodingOpenAIClient {
	return &CodingOpenAIClient{
		extractionModel: params.ExtractionModel,
		embeddingModel:  params.EmbeddingModel,

		chatURL:      params.ChatURL,
		embeddingURL: params.EmbeddingURL,

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

func (c *CodingOpenAIClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// ResetMetrics clears the accumulated usage metrics.
func (c *CodingOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns a snapshot of the accumulated usage metrics.
func (c *CodingOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
