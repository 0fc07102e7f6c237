package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tessera-labs/weave/pkg/coding"
)

func sampleResult() *coding.RunResult {
	return &coding.RunResult{
		RunID:     "run-1",
		ProjectID: "proj",
		Taxonomy: coding.Taxonomy{
			Codes: []coding.Code{
				{ID: "c-root", Name: "trust", Frequency: 5, Level: 0},
				{ID: "c-child", Name: "trust in tools", Frequency: 3, Level: 1, ParentID: "c-root"},
				{ID: "c-other", Name: "friction", Frequency: 4, Level: 0, Description: "Sources of friction."},
			},
			Depth:       2,
			LevelCounts: map[int]int{0: 2, 1: 1},
		},
		Entities: []coding.Entity{
			{ID: "e-1", Name: "JOHN", Type: "PERSON", QuoteIDs: []string{"q1"}, Confidence: 0.9, Status: coding.StatusAutoApproved},
		},
		Relationships: []coding.Relationship{
			{ID: "r-1", SourceName: "JOHN", TargetName: "ACME", Label: "works_at", Confidence: 0.8, Status: coding.StatusAutoApproved},
		},
		Quotes: map[string][]coding.Quote{
			"int-1": {
				{ID: "q1", Text: "I trust our tools.", Speaker: "John", InterviewID: "int-1", CodeIDs: []string{"c-child"}},
			},
		},
		Summary: coding.RunSummary{
			InterviewsProcessed: 2,
			CodesFound:          3,
			EntitiesFound:       1,
			RelationshipsFound:  1,
			Errors:              []coding.InterviewError{{InterviewID: "int-bad", Reason: "model refused"}},
		},
	}
}

func TestWriteMarkdownTree(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	// Roots ordered by frequency, child indented under its parent.
	trustIdx := strings.Index(out, "- **trust** (5)")
	frictionIdx := strings.Index(out, "- **friction** (4)")
	childIdx := strings.Index(out, "  - **trust in tools** (3)")
	if trustIdx == -1 || frictionIdx == -1 || childIdx == -1 {
		t.Fatalf("missing tree entries in output:\n%s", out)
	}
	if !(trustIdx < childIdx && childIdx < frictionIdx) {
		t.Errorf("tree ordering wrong: trust=%d child=%d friction=%d", trustIdx, childIdx, frictionIdx)
	}

	if !strings.Contains(out, "| JOHN | PERSON | 1 | 0.90 | auto_approved |") {
		t.Errorf("entity row missing:\n%s", out)
	}
	if !strings.Contains(out, "| JOHN | works_at | ACME | 0.80 | auto_approved |") {
		t.Errorf("relationship row missing:\n%s", out)
	}
	if !strings.Contains(out, "`int-bad`: model refused") {
		t.Errorf("failed interview missing:\n%s", out)
	}
	if !strings.Contains(out, "### int-1") || !strings.Contains(out, "> I trust our tools.") {
		t.Errorf("quote listing missing:\n%s", out)
	}
	if !strings.Contains(out, "John (codes: trust in tools)") {
		t.Errorf("quote speaker/codes line missing:\n%s", out)
	}
}

func TestWriteMarkdownEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMarkdown(&buf, &coding.RunResult{RunID: "run-1", ProjectID: "proj"})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"_No codes were produced._", "_No entities were extracted._", "_No relationships were extracted._", "_No quotes were segmented._"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output", want)
		}
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}

	var decoded coding.RunResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.RunID != "run-1" || len(decoded.Taxonomy.Codes) != 3 {
		t.Errorf("decoded result mismatch: %+v", decoded)
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFiles(dir+"/out", sampleResult()); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"out/codebook.md", "out/result.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
