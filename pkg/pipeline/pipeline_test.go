package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tessera-labs/weave/pkg/ai"
	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/store/memory"
	"github.com/tessera-labs/weave/pkg/validate"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   int
	handler func(name, prompt string, out any) error
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.handler(name, prompt, out)
}

func (f *fakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return make([]float32, 4), nil
}

func (f *fakeClient) ResetMetrics() {}

func (f *fakeClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func respond(out any, payload string) error {
	return json.Unmarshal([]byte(payload), out)
}

// johnHandler codes every quote with the same theme and extracts JOHN from
// every interview, so two interviews produce mergeable drafts.
func johnHandler(name, prompt string, out any) error {
	switch name {
	case "quote_coding":
		return respond(out, `{"codings":[
			{"quote_index":0,"codes":[{"name":"trust in tools","description":"Trust placed in tooling.","confidence":0.9}]}
		]}`)
	case "entity_extraction":
		return respond(out, `{"entities":[
			{"entity_name":"JOHN","entity_type":"PERSON","entity_description":"An engineer.","quote_indices":[0],"confidence":0.9}
		],"relationships":[]}`)
	}
	return errors.New("unexpected call: " + name)
}

func TestRunConsolidatesAcrossInterviews(t *testing.T) {
	client := &fakeClient{handler: johnHandler}
	storage := memory.New()

	p, err := New(client, storage, DefaultConfig("proj"))
	if err != nil {
		t.Fatal(err)
	}

	interviews := []coding.Interview{
		{ID: "int-1", Content: "John: I trust our tools completely.\n"},
		{ID: "int-2", Content: "John: I still trust the tools we chose.\n"},
	}

	result, err := p.Run(context.Background(), interviews)
	if err != nil {
		t.Fatal(err)
	}

	if result.Summary.InterviewsProcessed != 2 {
		t.Errorf("interviews processed = %d", result.Summary.InterviewsProcessed)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("expected 1 consolidated entity, got %d", len(result.Entities))
	}
	if result.Entities[0].Name != "JOHN" || len(result.Entities[0].QuoteIDs) != 2 {
		t.Errorf("entity = %+v, want JOHN with 2 quotes", result.Entities[0])
	}

	if len(result.Taxonomy.Codes) != 1 {
		t.Fatalf("expected 1 code, got %d", len(result.Taxonomy.Codes))
	}
	code := result.Taxonomy.Codes[0]
	if code.Level != 0 {
		t.Errorf("code level = %d, want root", code.Level)
	}
	if code.Frequency != 2 {
		t.Errorf("code frequency = %d, want 2", code.Frequency)
	}

	// No quote may reference a code missing from the final taxonomy.
	codeIDs := map[string]bool{code.ID: true}
	for _, quotes := range result.Quotes {
		for _, q := range quotes {
			for _, id := range q.CodeIDs {
				if !codeIDs[id] {
					t.Errorf("quote %s references unknown code %s", q.ID, id)
				}
			}
		}
	}

	if got := storage.Entities("proj"); len(got) != 1 {
		t.Errorf("persisted entities = %d, want 1", len(got))
	}
	if got := storage.Quotes("proj"); len(got) != 2 {
		t.Errorf("persisted quotes = %d, want 2", len(got))
	}
}

func TestRunEmptyInterviewShortCircuits(t *testing.T) {
	client := &fakeClient{handler: johnHandler}
	storage := memory.New()

	p, err := New(client, storage, DefaultConfig("proj"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.Run(context.Background(), []coding.Interview{
		{ID: "int-1", Content: "   \n \n"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if client.callCount() != 0 {
		t.Errorf("empty interview must not trigger LLM calls, got %d", client.callCount())
	}
	if result.Summary.InterviewsProcessed != 1 {
		t.Errorf("interviews processed = %d", result.Summary.InterviewsProcessed)
	}
	if result.Summary.CodesFound != 0 || result.Summary.EntitiesFound != 0 {
		t.Errorf("summary should be empty: %+v", result.Summary)
	}
}

func TestRunIsolatesFailingInterview(t *testing.T) {
	client := &fakeClient{handler: func(name, prompt string, out any) error {
		if strings.Contains(prompt, "the broken transcript") {
			return ai.NewLLMError(ai.KindFatal, name, errors.New("model refused"))
		}
		return johnHandler(name, prompt, out)
	}}
	storage := memory.New()

	p, err := New(client, storage, DefaultConfig("proj"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.Run(context.Background(), []coding.Interview{
		{ID: "int-bad", Content: "John: the broken transcript.\n"},
		{ID: "int-good", Content: "John: I trust our tools completely.\n"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Summary.InterviewsProcessed != 1 {
		t.Errorf("interviews processed = %d, want 1", result.Summary.InterviewsProcessed)
	}
	if len(result.Summary.Errors) != 1 || result.Summary.Errors[0].InterviewID != "int-bad" {
		t.Errorf("errors = %+v, want one for int-bad", result.Summary.Errors)
	}
	if len(result.Entities) != 1 {
		t.Errorf("surviving interview should still produce output, got %d entities", len(result.Entities))
	}
}

// remoteWorkHandler produces a frequent low-confidence theme with a rarer
// high-confidence subtheme, so the hierarchy builder nests them and
// validation later rejects the parent.
func remoteWorkHandler(name, prompt string, out any) error {
	switch name {
	case "quote_coding":
		return respond(out, `{"codings":[
			{"quote_index":0,"codes":[{"name":"remote work","description":"Working remotely.","confidence":0.4}]},
			{"quote_index":1,"codes":[{"name":"remote work","description":"Working remotely.","confidence":0.4}]},
			{"quote_index":2,"codes":[{"name":"remote work","description":"Working remotely.","confidence":0.4}]},
			{"quote_index":3,"codes":[{"name":"remote work fatigue","description":"Exhaustion from remote work.","confidence":0.9}]}
		]}`)
	case "entity_extraction":
		return respond(out, `{"entities":[],"relationships":[]}`)
	}
	return errors.New("unexpected call: " + name)
}

func TestRunReparentsChildrenOfRejectedCodes(t *testing.T) {
	client := &fakeClient{handler: remoteWorkHandler}
	storage := memory.New()

	p, err := New(client, storage, DefaultConfig("proj"))
	if err != nil {
		t.Fatal(err)
	}

	content := "Remote work suits me.\n" +
		"Remote work keeps me focused.\n" +
		"Remote work saves the commute.\n" +
		"Remote work fatigue sets in by Friday.\n"
	result, err := p.Run(context.Background(), []coding.Interview{{ID: "int-1", Content: content}})
	if err != nil {
		t.Fatal(err)
	}

	// The low-confidence parent is rejected; its surviving child must be
	// promoted to a root with a recomputed level, not left pointing at a
	// code absent from the taxonomy.
	if len(result.Taxonomy.Codes) != 1 {
		t.Fatalf("expected 1 surviving code, got %d", len(result.Taxonomy.Codes))
	}
	survivor := result.Taxonomy.Codes[0]
	if survivor.Name != "remote work fatigue" {
		t.Fatalf("survivor = %q, want the high-confidence child", survivor.Name)
	}
	if survivor.ParentID != "" {
		t.Errorf("survivor parent = %q, want promoted to root", survivor.ParentID)
	}
	if survivor.Level != 0 {
		t.Errorf("survivor level = %d, want 0", survivor.Level)
	}
	if result.Taxonomy.Depth != 1 || result.Taxonomy.LevelCounts[0] != 1 {
		t.Errorf("taxonomy aggregates = depth %d counts %v, want depth 1 with 1 root",
			result.Taxonomy.Depth, result.Taxonomy.LevelCounts)
	}

	// Quote references to the rejected code are gone, and no reference
	// points outside the final taxonomy.
	codeIDs := map[string]bool{survivor.ID: true}
	for _, quotes := range result.Quotes {
		for _, q := range quotes {
			for _, id := range q.CodeIDs {
				if !codeIDs[id] {
					t.Errorf("quote %s references code %s missing from taxonomy", q.ID, id)
				}
			}
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig("proj")
	cfg.Thresholds = validate.Thresholds{AutoApprove: 0.3, FlagReview: 0.5, RequireValidation: 0.8}
	if _, err := New(&fakeClient{}, memory.New(), cfg); err == nil {
		t.Error("inverted thresholds must fail construction")
	}

	cfg = DefaultConfig("proj")
	cfg.CodingApproach = "freestyle"
	if _, err := New(&fakeClient{}, memory.New(), cfg); err == nil {
		t.Error("unknown coding approach must fail construction")
	}

	cfg = DefaultConfig("")
	if _, err := New(&fakeClient{}, memory.New(), cfg); err == nil {
		t.Error("missing project id must fail construction")
	}
}

func TestRunIdempotentPersistence(t *testing.T) {
	client := &fakeClient{handler: johnHandler}
	storage := memory.New()

	p, err := New(client, storage, DefaultConfig("proj"))
	if err != nil {
		t.Fatal(err)
	}

	interviews := []coding.Interview{
		{ID: "int-1", Content: "John: I trust our tools completely.\n"},
	}

	if _, err := p.Run(context.Background(), interviews); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), interviews); err != nil {
		t.Fatal(err)
	}

	if got := storage.Entities("proj"); len(got) != 1 {
		t.Errorf("re-run duplicated entities: %d", len(got))
	}
	if got := storage.Quotes("proj"); len(got) != 1 {
		t.Errorf("re-run duplicated quotes: %d", len(got))
	}
}
