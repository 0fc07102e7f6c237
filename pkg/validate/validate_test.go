package validate

import (
	"testing"

	"github.com/tessera-labs/weave/pkg/coding"
)

func TestThresholdsCheck(t *testing.T) {
	if err := DefaultThresholds().Check(); err != nil {
		t.Errorf("default thresholds should be valid: %v", err)
	}

	bad := Thresholds{AutoApprove: 0.5, FlagReview: 0.5, RequireValidation: 0.3}
	if err := bad.Check(); err == nil {
		t.Error("equal tiers must fail the ordering check")
	}

	inverted := Thresholds{AutoApprove: 0.3, FlagReview: 0.5, RequireValidation: 0.8}
	if err := inverted.Check(); err == nil {
		t.Error("inverted tiers must fail the ordering check")
	}
}

func TestEntitiesClassification(t *testing.T) {
	opts := Options{Thresholds: DefaultThresholds()}
	entities := []coding.Entity{
		{ID: "e1", Name: "A", Type: "PERSON", Confidence: 0.9, QuoteIDs: []string{"q1"}},
		{ID: "e2", Name: "B", Type: "PERSON", Confidence: 0.6, QuoteIDs: []string{"q2"}},
		{ID: "e3", Name: "C", Type: "PERSON", Confidence: 0.2, QuoteIDs: []string{"q3"}},
	}

	accepted, rejected := Entities(entities, opts)
	if len(accepted) != 2 || len(rejected) != 1 {
		t.Fatalf("accepted = %d, rejected = %d", len(accepted), len(rejected))
	}
	if accepted[0].Status != coding.StatusAutoApproved {
		t.Errorf("e1 status = %s", accepted[0].Status)
	}
	if accepted[1].Status != coding.StatusFlaggedForReview {
		t.Errorf("e2 status = %s", accepted[1].Status)
	}
	if rejected[0].Status != coding.StatusRejected {
		t.Errorf("e3 status = %s", rejected[0].Status)
	}
}

func TestEntitiesRequireEvidence(t *testing.T) {
	opts := Options{Thresholds: DefaultThresholds(), RequireEvidence: true}
	entities := []coding.Entity{
		{ID: "e1", Name: "A", Type: "PERSON", Confidence: 0.95},
	}

	accepted, _ := Entities(entities, opts)
	if len(accepted) != 1 {
		t.Fatal("entity should still be kept")
	}
	if accepted[0].Status != coding.StatusFlaggedForReview {
		t.Errorf("evidence-free entity must not be auto-approved, got %s", accepted[0].Status)
	}
}

func TestEntitiesAutoRejectUnknown(t *testing.T) {
	opts := Options{Thresholds: DefaultThresholds(), AutoRejectUnknown: true}
	entities := []coding.Entity{
		{ID: "e1", Name: "A", Type: "PLATFORM", Confidence: 0.95, QuoteIDs: []string{"q1"}},
		{ID: "e2", Name: "B", Type: "TOOL", Confidence: 0.95, QuoteIDs: []string{"q2"}},
	}

	accepted, rejected := Entities(entities, opts)
	if len(accepted) != 1 || accepted[0].ID != "e2" {
		t.Errorf("only the standard-typed entity should survive, got %v", accepted)
	}
	if len(rejected) != 1 || rejected[0].ID != "e1" {
		t.Errorf("non-standard type must be rejected, got %v", rejected)
	}
}

func TestRelationshipsRejectDanglingEndpoints(t *testing.T) {
	opts := Options{Thresholds: DefaultThresholds()}
	relationships := []coding.Relationship{
		{ID: "r1", SourceID: "e1", TargetID: "e2", Label: "uses", Confidence: 0.9, QuoteID: "q1"},
		{ID: "r2", SourceID: "e1", TargetID: "e3", Label: "uses", Confidence: 0.9, QuoteID: "q2"},
	}
	rejectedEntities := map[string]bool{"e3": true}

	accepted, rejected := Relationships(relationships, rejectedEntities, opts)
	if len(accepted) != 1 || accepted[0].ID != "r1" {
		t.Errorf("accepted = %v", accepted)
	}
	if len(rejected) != 1 || rejected[0].ID != "r2" {
		t.Errorf("relationship to rejected entity must be rejected, got %v", rejected)
	}
}

func TestCodesClassification(t *testing.T) {
	opts := Options{Thresholds: DefaultThresholds(), RequireEvidence: true}
	codes := []coding.Code{
		{ID: "c1", Name: "a", Confidence: 0.85, QuoteIDs: []string{"q1"}},
		{ID: "c2", Name: "b", Confidence: 0.1, QuoteIDs: []string{"q2"}},
	}

	accepted, rejected := Codes(codes, opts)
	if len(accepted) != 1 || accepted[0].Status != coding.StatusAutoApproved {
		t.Errorf("accepted = %v", accepted)
	}
	if len(rejected) != 1 {
		t.Errorf("rejected = %v", rejected)
	}
}
