package consolidate

import (
	"reflect"
	"testing"

	"github.com/tessera-labs/weave/pkg/coding"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"JOHN", "john", 1, 1},
		{"remote work", "Remote  Work", 1, 1},
		{"collaboration", "colaboration", 0.9, 1},
		{"trust in automation", "automation trust in", 0.99, 1},
		{"budget", "taxonomy", 0, 0.4},
		{"", "anything", 0, 0},
	}
	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("Similarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func entity(id, name, typ string, confidence float64, quotes ...string) coding.Entity {
	return coding.Entity{
		ID:         id,
		Name:       name,
		Type:       typ,
		Confidence: confidence,
		QuoteIDs:   quotes,
		Provenance: []coding.Provenance{{InterviewID: "int-" + id, Pass: 2}},
	}
}

func TestEntitiesMergeNearDuplicates(t *testing.T) {
	in := []coding.Entity{
		entity("e1", "JOHN SMITH", "PERSON", 0.9, "q1"),
		entity("e2", "JOHN SMIHT", "PERSON", 0.7, "q2", "q3"),
	}

	out := Entities(in, Options{Mode: MatchHybrid})
	if len(out) != 1 {
		t.Fatalf("expected 1 entity after merge, got %d", len(out))
	}

	survivor := out[0]
	if survivor.Name != "JOHN SMITH" {
		t.Errorf("survivor name = %q, want higher-confidence spelling", survivor.Name)
	}
	if survivor.Confidence != 0.9 {
		t.Errorf("survivor confidence = %v, want max", survivor.Confidence)
	}
	if len(survivor.QuoteIDs) != 3 {
		t.Errorf("survivor quotes = %v, want all 3 absorbed", survivor.QuoteIDs)
	}
	if len(survivor.Provenance) != 2 {
		t.Errorf("survivor provenance entries = %d, want 2", len(survivor.Provenance))
	}
}

func TestEntitiesClosedModeRespectsTypes(t *testing.T) {
	in := []coding.Entity{
		entity("e1", "JIRA", "TOOL", 0.9, "q1"),
		entity("e2", "JIRA", "PLATFORM", 0.8, "q2"),
	}

	out := Entities(in, Options{Mode: MatchClosed})
	if len(out) != 2 {
		t.Errorf("closed mode must not merge across types, got %d entities", len(out))
	}

	out = Entities(in, Options{Mode: MatchOpen})
	if len(out) != 1 {
		t.Errorf("open mode should merge identical names, got %d entities", len(out))
	}

	out = Entities(in, Options{Mode: MatchHybrid})
	if len(out) != 1 {
		t.Errorf("hybrid mode should let standard type absorb non-standard, got %d", len(out))
	}
	if len(out) == 1 && out[0].Type != "TOOL" {
		t.Errorf("hybrid survivor type = %q, want standard TOOL", out[0].Type)
	}
}

func TestEntitiesHybridStandardTypeSurvives(t *testing.T) {
	// The non-standard record scores higher confidence, but the merged
	// record must keep the standard type.
	in := []coding.Entity{
		entity("e1", "FIGMA", "PLATFORM", 0.95, "q1"),
		entity("e2", "FIGMA", "TOOL", 0.7, "q2"),
	}

	out := Entities(in, Options{Mode: MatchHybrid})
	if len(out) != 1 {
		t.Fatalf("expected merge, got %d entities", len(out))
	}
	if out[0].Type != "TOOL" {
		t.Errorf("survivor type = %q, want standard TOOL", out[0].Type)
	}
	if out[0].Confidence != 0.95 {
		t.Errorf("survivor confidence = %v, want max of the pair", out[0].Confidence)
	}
	if len(out[0].QuoteIDs) != 2 {
		t.Errorf("survivor quotes = %v, want both absorbed", out[0].QuoteIDs)
	}

	replacements := EntityReplacements(in, Options{Mode: MatchHybrid})
	if replacements["e1"] != "e2" {
		t.Errorf("replacements = %v, want e1 -> e2 toward the standard-typed survivor", replacements)
	}
}

func TestEntitiesIdempotent(t *testing.T) {
	in := []coding.Entity{
		entity("e1", "ACME CORP", "ORGANIZATION", 0.9, "q1"),
		entity("e2", "ACME CORP.", "ORGANIZATION", 0.8, "q2"),
		entity("e3", "MARIA", "PERSON", 0.95, "q3"),
	}

	once := Entities(in, Options{})
	twice := Entities(once, Options{})

	if !reflect.DeepEqual(once, twice) {
		t.Error("consolidation must be a no-op on already-consolidated input")
	}
}

func TestEntitiesTieBreakDeterministic(t *testing.T) {
	in := []coding.Entity{
		entity("e-bbb", "PIPELINE", "CONCEPT", 0.8, "q1"),
		entity("e-aaa", "PIPELINE", "CONCEPT", 0.8, "q2"),
	}

	out := Entities(in, Options{})
	if len(out) != 1 {
		t.Fatalf("expected merge, got %d", len(out))
	}
	if out[0].ID != "e-aaa" {
		t.Errorf("survivor = %q, want lexicographically smaller e-aaa", out[0].ID)
	}
}

func TestCodesMergeRecomputesFrequency(t *testing.T) {
	in := []coding.Code{
		{ID: "c1", Name: "validation burden", Confidence: 0.9, QuoteIDs: []string{"q1", "q2"}},
		{ID: "c2", Name: "validation burdens", Confidence: 0.7, QuoteIDs: []string{"q2", "q3"}},
	}

	out := Codes(in, Options{})
	if len(out) != 1 {
		t.Fatalf("expected 1 code, got %d", len(out))
	}
	if out[0].Frequency != 3 {
		t.Errorf("frequency = %d, want 3 unique quotes", out[0].Frequency)
	}
}

func TestRelationshipsDedupeKeepsMaxConfidence(t *testing.T) {
	in := []coding.Relationship{
		{ID: "r1", SourceID: "e1", TargetID: "e2", Label: "works_at", Confidence: 0.6},
		{ID: "r2", SourceID: "e1", TargetID: "e2", Label: "works_at", Confidence: 0.9},
		{ID: "r3", SourceID: "e1", TargetID: "e2", Label: "distrusts", Confidence: 0.5},
	}

	out := Relationships(in, nil)
	if len(out) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(out))
	}
	for _, rel := range out {
		if rel.Label == "works_at" && rel.Confidence != 0.9 {
			t.Errorf("works_at confidence = %v, want max 0.9", rel.Confidence)
		}
	}
}

func TestRelationshipsRemapMergedEndpoints(t *testing.T) {
	in := []coding.Relationship{
		{ID: "r1", SourceID: "e2", TargetID: "e3", Label: "uses", Confidence: 0.8},
	}
	replacements := map[string]string{"e2": "e1"}

	out := Relationships(in, replacements)
	if len(out) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(out))
	}
	if out[0].SourceID != "e1" {
		t.Errorf("source = %q, want remapped e1", out[0].SourceID)
	}
}

func TestRelationshipsDropCollapsedEdges(t *testing.T) {
	in := []coding.Relationship{
		{ID: "r1", SourceID: "e2", TargetID: "e1", Label: "duplicates", Confidence: 0.8},
	}
	replacements := map[string]string{"e2": "e1"}

	out := Relationships(in, replacements)
	if len(out) != 0 {
		t.Errorf("edge between merged entities must be dropped, got %d", len(out))
	}
}

func TestEntityReplacementsMirrorsMerges(t *testing.T) {
	in := []coding.Entity{
		entity("e1", "SLACK", "TOOL", 0.9, "q1"),
		entity("e2", "SLACK", "TOOL", 0.7, "q2"),
	}

	replacements := EntityReplacements(in, Options{})
	if replacements["e2"] != "e1" {
		t.Errorf("replacements = %v, want e2 -> e1", replacements)
	}

	out := Entities(in, Options{})
	if len(out) != 1 || out[0].ID != "e1" {
		t.Errorf("Entities result inconsistent with replacements: %v", out)
	}
}
