package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tessera-labs/weave/pkg/ai"
	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/consolidate"
	"github.com/tessera-labs/weave/pkg/extract"
	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/segment"
	"github.com/tessera-labs/weave/pkg/store"
	"github.com/tessera-labs/weave/pkg/taxonomy"
	"github.com/tessera-labs/weave/pkg/validate"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

// Pipeline runs the full coding workflow: segmentation, two-pass
// extraction per interview, cross-interview consolidation, hierarchy
// construction, validation, and idempotent persistence.
type Pipeline struct {
	client   ai.CodingAIClient
	storage  store.GraphStorage
	detector *segment.SpeakerDetector
	cfg      Config
}

// New creates a Pipeline after validating the configuration.
func New(client ai.CodingAIClient, storage store.GraphStorage, cfg Config) (*Pipeline, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &Pipeline{
		client:  client,
		storage: storage,
		cfg:     cfg,
	}
	if cfg.UseLLMSpeakerDetection {
		p.detector = segment.NewSpeakerDetector(client)
	}
	return p, nil
}

// Run processes all interviews and persists the validated result. Per
// interview failures are isolated: a failing interview is recorded in the
// summary and its siblings continue. The returned RunResult and its
// summary are produced even when persistence fails; in that case the
// error carries the commit report and the whole run is safe to repeat
// because every write is an idempotent upsert.
func (p *Pipeline) Run(ctx context.Context, interviews []coding.Interview) (*coding.RunResult, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	p.client.ResetMetrics()

	logger.Info("[Pipeline] Run starting",
		"run", runID,
		"project", p.cfg.ProjectID,
		"interviews", len(interviews),
		"approach", p.cfg.CodingApproach)

	codebook, err := p.loadCodebook(ctx)
	if err != nil {
		return nil, err
	}

	results, interviewErrors := p.extractAll(ctx, interviews, codebook)

	result := p.assemble(runID, results)
	result.Summary.InterviewsProcessed = len(interviews) - len(interviewErrors)
	result.Summary.Errors = interviewErrors

	persistErr := p.persist(ctx, result)
	if persistErr != nil {
		logger.Error("[Pipeline] Persistence failed", "run", runID, "err", persistErr)
	}

	metrics := p.client.GetMetrics()
	logger.Info("[Pipeline] Run finished",
		"run", runID,
		"interviews", result.Summary.InterviewsProcessed,
		"codes", result.Summary.CodesFound,
		"entities", result.Summary.EntitiesFound,
		"relationships", result.Summary.RelationshipsFound,
		"failed", len(interviewErrors),
		"tokens", metrics.TotalTokens)

	return result, persistErr
}

func (p *Pipeline) loadCodebook(ctx context.Context) ([]coding.Code, error) {
	if p.storage == nil {
		return nil, nil
	}
	codebook, err := p.storage.Codebook(ctx, p.cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("loading codebook: %w", err)
	}
	if p.cfg.CodingApproach == ApproachClosed && len(codebook) == 0 {
		logger.Warn("[Pipeline] Closed coding with empty codebook, no codes can be applied", "project", p.cfg.ProjectID)
	}
	return codebook, nil
}

// extractAll runs segmentation and extraction for every interview under a
// bounded concurrency limit. Results and errors are collected per
// interview; no failure aborts the group.
func (p *Pipeline) extractAll(
	ctx context.Context,
	interviews []coding.Interview,
	codebook []coding.Code,
) ([]*extract.Result, []coding.InterviewError) {
	extractor := extract.New(p.client, extract.Options{
		ProjectID:     p.cfg.ProjectID,
		AllowNewCodes: p.cfg.CodingApproach != ApproachClosed,
	})

	var (
		mu              sync.Mutex
		results         []*extract.Result
		interviewErrors []coding.InterviewError
	)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.MaxConcurrentInterviews)

	for _, interview := range interviews {
		interview := interview
		eg.Go(func() error {
			res, err := p.extractOne(ectx, extractor, interview, codebook)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("[Pipeline] Interview failed", "interview", interview.ID, "err", err)
				interviewErrors = append(interviewErrors, coding.InterviewError{
					InterviewID: interview.ID,
					Reason:      err.Error(),
				})
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	// Goroutines never return errors; Wait only observes ctx cancellation.
	_ = eg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].InterviewID < results[j].InterviewID })
	sort.Slice(interviewErrors, func(i, j int) bool { return interviewErrors[i].InterviewID < interviewErrors[j].InterviewID })
	return results, interviewErrors
}

func (p *Pipeline) extractOne(
	ctx context.Context,
	extractor *extract.Extractor,
	interview coding.Interview,
	codebook []coding.Code,
) (*extract.Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	quotes := segment.Segment(interview)
	if p.detector != nil && len(quotes) > 0 {
		quotes = p.detector.Annotate(ctx, quotes)
	}

	return extractor.ExtractInterview(ctx, interview, quotes, codebook)
}

// assemble unions the per-interview drafts and runs the cross-interview
// stages: consolidation, hierarchy construction and validation.
func (p *Pipeline) assemble(runID string, results []*extract.Result) *coding.RunResult {
	consolidateOpts := consolidate.Options{
		Mode:      p.cfg.matchMode(),
		Threshold: p.cfg.ConsolidationThreshold,
	}

	var (
		allCodes         []coding.Code
		allEntities      []coding.Entity
		allRelationships []coding.Relationship
	)
	quotesByInterview := make(map[string][]coding.Quote)
	for _, res := range results {
		allCodes = append(allCodes, res.Codes...)
		allEntities = append(allEntities, res.Entities...)
		allRelationships = append(allRelationships, res.Relationships...)
		if len(res.Quotes) > 0 {
			quotesByInterview[res.InterviewID] = res.Quotes
		}
	}

	entityReplacements := consolidate.EntityReplacements(allEntities, consolidateOpts)
	entities := consolidate.Entities(allEntities, consolidateOpts)
	relationships := consolidate.Relationships(allRelationships, entityReplacements)

	codeReplacements := consolidate.CodeReplacements(allCodes, consolidateOpts)
	codes := consolidate.Codes(allCodes, consolidateOpts)

	tax, pruneRedirects := taxonomy.Build(codes, taxonomy.Options{
		MaxDepth:     p.cfg.MaxTaxonomyDepth,
		MinFrequency: p.cfg.MinimumCodeFrequency,
	})

	validationOpts := p.cfg.validationOptions()
	acceptedEntities, rejectedEntities := validate.Entities(entities, validationOpts)
	rejectedEntityIDs := make(map[string]bool, len(rejectedEntities))
	for _, e := range rejectedEntities {
		rejectedEntityIDs[e.ID] = true
	}
	acceptedRelationships, _ := validate.Relationships(relationships, rejectedEntityIDs, validationOpts)

	acceptedCodes, rejectedCodes := validate.Codes(tax.Codes, validationOpts)
	tax.Codes = acceptedCodes
	// Rejected codes leave the tree like pruned ones: children reattach to
	// the nearest surviving ancestor and quote references follow.
	for id, target := range taxonomy.Detach(&tax, rejectedCodes) {
		pruneRedirects[id] = target
	}

	rewriteQuoteCodes(quotesByInterview, codeReplacements, pruneRedirects)

	summary := coding.RunSummary{
		CodesFound:         len(tax.Codes),
		EntitiesFound:      len(acceptedEntities),
		RelationshipsFound: len(acceptedRelationships),
	}

	return &coding.RunResult{
		RunID:         runID,
		ProjectID:     p.cfg.ProjectID,
		Taxonomy:      tax,
		Entities:      acceptedEntities,
		Relationships: acceptedRelationships,
		Quotes:        quotesByInterview,
		Summary:       summary,
	}
}

// rewriteQuoteCodes rewrites quote code references through consolidation
// merges and taxonomy pruning so no quote points at a code absent from
// the final taxonomy.
func rewriteQuoteCodes(
	quotesByInterview map[string][]coding.Quote,
	codeReplacements map[string]string,
	pruneRedirects map[string]string,
) {
	resolve := func(id string) string {
		for {
			next, ok := codeReplacements[id]
			if !ok {
				break
			}
			id = next
		}
		for {
			next, ok := pruneRedirects[id]
			if !ok {
				break
			}
			id = next
		}
		return id
	}

	for interviewID, quotes := range quotesByInterview {
		for i := range quotes {
			if len(quotes[i].CodeIDs) == 0 {
				continue
			}
			rewritten := make([]string, 0, len(quotes[i].CodeIDs))
			for _, id := range quotes[i].CodeIDs {
				final := resolve(id)
				if final == "" {
					continue
				}
				rewritten = appendUnique(rewritten, final)
			}
			quotes[i].CodeIDs = rewritten
		}
		quotesByInterview[interviewID] = quotes
	}
}

// persist writes the validated result. Quotes land first so code and
// entity quote references always point at stored rows, then codes and
// entities, then edges.
func (p *Pipeline) persist(ctx context.Context, result *coding.RunResult) error {
	if p.storage == nil {
		return nil
	}

	var allQuotes []coding.Quote
	interviewIDs := make([]string, 0, len(result.Quotes))
	for id := range result.Quotes {
		interviewIDs = append(interviewIDs, id)
	}
	sort.Strings(interviewIDs)
	for _, id := range interviewIDs {
		allQuotes = append(allQuotes, result.Quotes[id]...)
	}

	if err := p.storage.UpsertQuotes(ctx, result.ProjectID, allQuotes); err != nil {
		return err
	}
	if err := p.storage.UpsertCodes(ctx, result.ProjectID, result.Taxonomy.Codes); err != nil {
		return err
	}
	if err := p.storage.UpsertEntities(ctx, result.ProjectID, result.Entities); err != nil {
		return err
	}
	if err := p.storage.UpsertRelationships(ctx, result.ProjectID, result.Relationships); err != nil {
		return err
	}
	return nil
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
