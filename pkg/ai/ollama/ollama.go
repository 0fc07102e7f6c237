package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/tessera-labs/weave/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// CodingOllamaClient implements ai.CodingAIClient using locally-hosted
// Ollama models. A weighted semaphore bounds concurrent requests so the
// local server is not overwhelmed by parallel interview extraction.
type CodingOllamaClient struct {
	extractionModel string
	embeddingModel  string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL *url.URL

	Client *api.Client
}

// NewCodingOllamaClientParams contains configuration options for creating
// a new CodingOllamaClient.
type NewCodingOllamaClientParams struct {
	ExtractionModel string
	EmbeddingModel  string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewCodingOllamaClient creates a new Ollama-based AI client. It connects
// to the Ollama server at the given BaseURL (or the default if empty).
func NewCodingOllamaClient(params NewCodingOllamaClientParams) (*CodingOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &CodingOllamaClient{
		extractionModel: params.ExtractionModel,
		embeddingModel:  params.EmbeddingModel,

		reqLock: semaphore.NewWeighted(maxConcurrent),

		baseURL: u,

		Client: api.NewClient(u, httpClient),
	}, nil
}

func (c *CodingOllamaClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// ResetMetrics clears the accumulated usage metrics.
func (c *CodingOllamaClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns a snapshot of the accumulated usage metrics.
func (c *CodingOllamaClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
