package extract

import (
	"context"
	"strings"

	"github.com/tessera-labs/weave/internal/util"
	"github.com/tessera-labs/weave/pkg/ai"
	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/segment"
)

// Options configures an Extractor.
type Options struct {
	// ProjectID scopes all generated identifiers.
	ProjectID string
	// EntityTypes is the vocabulary offered to the model. Defaults to the
	// standard types when empty.
	EntityTypes []string
	// AllowNewCodes permits codes outside the existing codebook. Disabled
	// for closed coding, where only pre-supplied codes may be applied.
	AllowNewCodes bool
	// BatchTokens bounds quote text per LLM call.
	BatchTokens int
	// Structured is forwarded to every structured LLM call.
	Structured ai.StructuredCallOptions
}

// Result holds one interview's draft extraction output. Everything in it
// is raw model output after repair rules; filtering on confidence happens
// later in validation.
type Result struct {
	InterviewID   string
	Quotes        []coding.Quote
	Codes         []coding.Code
	Entities      []coding.Entity
	Relationships []coding.Relationship
}

// Extractor turns one interview's segmented quotes into draft codes,
// entities and relationships via two LLM passes. Pass A applies thematic
// codes and quote-to-quote links; pass B extracts entities and
// relationships conditioned on the same quotes. Pass B never starts
// before pass A has completed for the interview.
type Extractor struct {
	client ai.CodingAIClient
	opts   Options
}

// New creates an Extractor using the given AI client.
func New(client ai.CodingAIClient, opts Options) *Extractor {
	if len(opts.EntityTypes) == 0 {
		opts.EntityTypes = coding.StandardEntityTypes
	}
	if opts.BatchTokens <= 0 {
		opts.BatchTokens = segment.DefaultBatchTokens
	}
	return &Extractor{client: client, opts: opts}
}

// ExtractInterview runs both passes for a single interview. An empty quote
// set short-circuits to an empty result without any LLM call. existingCodes
// provides the codebook-so-far for reuse across interviews.
func (e *Extractor) ExtractInterview(
	ctx context.Context,
	interview coding.Interview,
	quotes []coding.Quote,
	existingCodes []coding.Code,
) (*Result, error) {
	result := &Result{InterviewID: interview.ID}
	if len(quotes) == 0 {
		logger.Debug("[Extract] No quotes, skipping LLM passes", "interview", interview.ID)
		return result, nil
	}

	batches, err := segment.BatchQuotes(quotes, e.opts.BatchTokens)
	if err != nil {
		return nil, err
	}

	codes, err := e.runCodingPass(ctx, interview.ID, quotes, batches, existingCodes)
	if err != nil {
		return nil, err
	}

	entities, relationships, err := e.runEntityPass(ctx, interview.ID, quotes, batches)
	if err != nil {
		return nil, err
	}

	result.Quotes = quotes
	result.Codes = codes
	result.Entities = entities
	result.Relationships = relationships

	logger.Info("[Extract] Interview extracted",
		"interview", interview.ID,
		"quotes", len(quotes),
		"codes", len(codes),
		"entities", len(entities),
		"relationships", len(relationships))

	return result, nil
}

// clampConfidence guarantees a usable confidence score. Model output may
// omit the field or exceed the valid range; absent values default to 0.5.
func clampConfidence(c float64) float64 {
	if c <= 0 {
		return 0.5
	}
	if c > 1 {
		return 1
	}
	return c
}

func normalizeKey(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = util.NormalizeName(p)
	}
	return strings.Join(normalized, "|")
}
