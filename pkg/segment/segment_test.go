package segment

import (
	"strings"
	"testing"

	"github.com/tessera-labs/weave/pkg/coding"
)

func TestSegmentSpeakerPrefix(t *testing.T) {
	content := "Interviewer: How did the migration go?\n\nMaria: I was skeptical at first.\n"
	quotes := Segment(coding.Interview{ID: "int-1", Content: content})

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Speaker != "Interviewer" {
		t.Errorf("quote 0 speaker = %q, want Interviewer", quotes[0].Speaker)
	}
	if quotes[0].Text != "How did the migration go?" {
		t.Errorf("quote 0 text = %q", quotes[0].Text)
	}
	if quotes[1].Speaker != "Maria" {
		t.Errorf("quote 1 speaker = %q, want Maria", quotes[1].Speaker)
	}
	if quotes[1].Paragraph != 2 {
		t.Errorf("quote 1 paragraph = %d, want 2", quotes[1].Paragraph)
	}
}

func TestSegmentOffsetsAreVerbatim(t *testing.T) {
	content := "Alice: We adopted the tool in March.\nIt changed how the team plans sprints.\n"
	quotes := Segment(coding.Interview{ID: "int-2", Content: content})

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	for i, q := range quotes {
		got := content[q.StartOffset:q.EndOffset]
		if got != q.Text {
			t.Errorf("quote %d: offsets select %q, text is %q", i, got, q.Text)
		}
	}
}

func TestSegmentSkipsEmptyParagraphs(t *testing.T) {
	content := "\n\n   \nBob: Something real.\n\n\n"
	quotes := Segment(coding.Interview{ID: "int-3", Content: content})

	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	if quotes[0].Text != "Something real." {
		t.Errorf("text = %q", quotes[0].Text)
	}
}

func TestSegmentEmptyContent(t *testing.T) {
	if got := Segment(coding.Interview{ID: "int-4", Content: "   \n \n"}); got != nil {
		t.Errorf("expected nil for blank content, got %d quotes", len(got))
	}
}

func TestSegmentStableIDs(t *testing.T) {
	content := "Carol: The rollout took six weeks.\n"
	a := Segment(coding.Interview{ID: "int-5", Content: content})
	b := Segment(coding.Interview{ID: "int-5", Content: content})

	if a[0].ID != b[0].ID {
		t.Errorf("quote IDs differ across runs: %q vs %q", a[0].ID, b[0].ID)
	}

	other := Segment(coding.Interview{ID: "int-6", Content: content})
	if a[0].ID == other[0].ID {
		t.Error("quote IDs should differ across interviews")
	}
}

func TestInferSpeakerRole(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"What made you choose that vendor?", SpeakerInterviewer},
		{"I think the biggest issue was training.", SpeakerParticipant},
		{"We've been doing it this way for years.", SpeakerParticipant},
		{"The system was replaced in 2019.", SpeakerUnknown},
	}
	for _, tt := range tests {
		if got := inferSpeakerRole(tt.text); got != tt.want {
			t.Errorf("inferSpeakerRole(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDetectSpeakerPrefixRejectsSentences(t *testing.T) {
	speaker, remainder := detectSpeakerPrefix("The main lesson we learned there: always test in staging.")
	if speaker != "" {
		t.Errorf("expected no speaker, got %q", speaker)
	}
	if !strings.HasPrefix(remainder, "The main lesson") {
		t.Errorf("remainder altered: %q", remainder)
	}
}

func TestLocate(t *testing.T) {
	doc := "Intro line.\nThe budget doubled overnight.\nClosing line.\n"
	q := coding.Quote{Text: "The budget doubled overnight."}

	start, end, found := Locate(doc, q)
	if !found {
		t.Fatal("expected quote to be found")
	}
	if doc[start:end] != q.Text {
		t.Errorf("span selects %q", doc[start:end])
	}

	if _, _, found := Locate(doc, coding.Quote{Text: "never said this"}); found {
		t.Error("expected missing quote to report not found")
	}
}

func TestBatchQuotesPreservesOrder(t *testing.T) {
	quotes := make([]coding.Quote, 0, 10)
	for i := 0; i < 10; i++ {
		quotes = append(quotes, coding.Quote{
			Text:      strings.Repeat("budget planning overhead ", 20),
			Paragraph: i + 1,
		})
	}

	batches, err := BatchQuotes(quotes, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) < 2 {
		t.Fatalf("expected multiple batches, got %d", len(batches))
	}

	seen := 0
	for _, batch := range batches {
		for _, q := range batch {
			seen++
			if q.Paragraph != seen {
				t.Fatalf("order broken: paragraph %d at position %d", q.Paragraph, seen)
			}
		}
	}
	if seen != len(quotes) {
		t.Errorf("batched %d quotes, want %d", seen, len(quotes))
	}
}

func TestBatchQuotesEmpty(t *testing.T) {
	batches, err := BatchQuotes(nil, 100)
	if err != nil {
		t.Fatal(err)
	}
	if batches != nil {
		t.Errorf("expected nil batches, got %v", batches)
	}
}
