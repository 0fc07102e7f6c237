package segment

import (
	"strings"

	"github.com/tessera-labs/weave/internal/util"
	"github.com/tessera-labs/weave/pkg/coding"
)

// Segment splits raw transcript text into an ordered sequence of quote
// drafts with best-effort speaker attribution and paragraph offsets for
// traceability. Empty paragraphs are skipped, never emitted as quotes.
//
// Speaker detection here is the deterministic heuristic path; LLM-backed
// detection (when enabled) runs afterwards via SpeakerDetector and only
// fills in quotes the heuristic left unattributed.
func Segment(interview coding.Interview) []coding.Quote {
	content := interview.Content
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var quotes []coding.Quote
	paragraph := 0
	offset := 0

	for _, line := range strings.SplitAfter(content, "\n") {
		lineStart := offset
		offset += len(line)

		text := strings.TrimRight(line, "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		paragraph++

		speaker, remainder := detectSpeakerPrefix(text)
		quoteText := text
		start := lineStart
		if speaker != "" {
			start = lineStart + (len(text) - len(remainder))
			quoteText = remainder
		}
		if strings.TrimSpace(quoteText) == "" {
			continue
		}
		if speaker == "" {
			speaker = inferSpeakerRole(quoteText)
		}

		quotes = append(quotes, coding.Quote{
			ID:          util.StableID("quote", interview.ID, quoteText),
			Text:        quoteText,
			Speaker:     speaker,
			InterviewID: interview.ID,
			Paragraph:   paragraph,
			StartOffset: start,
			EndOffset:   start + len(quoteText),
		})
	}

	return quotes
}

// Locate finds the verbatim quote text within its parent document and
// returns its character span. When the quote cannot be located, found is
// false; quote text is never truncated or altered to force a match.
func Locate(document string, quote coding.Quote) (start int, end int, found bool) {
	idx := strings.Index(document, quote.Text)
	if idx < 0 {
		return 0, 0, false
	}
	return idx, idx + len(quote.Text), true
}
