package segment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tessera-labs/weave/pkg/ai"
	"github.com/tessera-labs/weave/pkg/breaker"
	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
)

const (
	// SpeakerUnknown marks quotes whose speaker could not be determined.
	SpeakerUnknown = "Unknown"
	// SpeakerInterviewer is the inferred role for question-style paragraphs.
	SpeakerInterviewer = "Interviewer"
	// SpeakerParticipant is the inferred role for first-person paragraphs.
	SpeakerParticipant = "Participant"
)

// speakerPrefixRe matches explicit transcript attribution such as
// "Maria: we switched tools last year" or "INTERVIEWER: why was that?".
var speakerPrefixRe = regexp.MustCompile(`^([A-Z][A-Za-z .'\-]{0,40}?)\s*:\s+(\S.*)$`)

var firstPersonRe = regexp.MustCompile(`(?i)\b(I|I'm|I've|I'd|my|we|we're|we've|our)\b`)

// detectSpeakerPrefix extracts an explicit "Name: text" attribution from a
// paragraph. It returns the speaker name and the remaining quote text, or
// an empty speaker when no attribution prefix is present.
func detectSpeakerPrefix(text string) (speaker string, remainder string) {
	m := speakerPrefixRe.FindStringSubmatch(text)
	if m == nil {
		return "", text
	}
	name := strings.TrimSpace(m[1])
	// A long "prefix" with many words is almost certainly a sentence that
	// happens to contain a colon, not an attribution.
	if len(strings.Fields(name)) > 3 {
		return "", text
	}
	return name, m[2]
}

// inferSpeakerRole guesses the conversational role of an unattributed
// paragraph. Questions lean interviewer, first-person narration leans
// participant. Anything ambiguous stays Unknown rather than guessing.
func inferSpeakerRole(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") && !firstPersonRe.MatchString(trimmed) {
		return SpeakerInterviewer
	}
	if firstPersonRe.MatchString(trimmed) {
		return SpeakerParticipant
	}
	return SpeakerUnknown
}

type speakerAnnotation struct {
	Paragraph  int     `json:"paragraph" jsonschema_description:"Paragraph number the attribution applies to"`
	Speaker    string  `json:"speaker" jsonschema_description:"Speaker name or role for the paragraph"`
	Confidence float64 `json:"confidence" jsonschema_description:"Attribution confidence between 0 and 1"`
}

type speakerResponse struct {
	Speakers []speakerAnnotation `json:"speakers" jsonschema_description:"Speaker attribution per paragraph"`
}

// SpeakerDetector resolves speakers for quotes the prefix heuristic could
// not attribute. LLM calls run behind a circuit breaker; when the model is
// unavailable or repeatedly failing, detection degrades to the heuristic
// role inference already present on the quotes instead of failing the run.
type SpeakerDetector struct {
	client  ai.CodingAIClient
	breaker *breaker.Breaker[map[int]string]
}

// NewSpeakerDetector creates a detector around the given AI client.
func NewSpeakerDetector(client ai.CodingAIClient) *SpeakerDetector {
	return &SpeakerDetector{
		client:  client,
		breaker: breaker.New[map[int]string](breaker.Options{}),
	}
}

// Annotate fills in speakers for quotes currently marked Unknown. Quotes
// already attributed by the heuristic are left untouched. The input slice
// is modified in place and returned for convenience.
func (d *SpeakerDetector) Annotate(ctx context.Context, quotes []coding.Quote) []coding.Quote {
	unknown := make([]int, 0, len(quotes))
	for i, q := range quotes {
		if q.Speaker == SpeakerUnknown {
			unknown = append(unknown, i)
		}
	}
	if len(unknown) == 0 {
		return quotes
	}

	resolved, err := d.breaker.Call(ctx,
		func(ctx context.Context) (map[int]string, error) {
			return d.detectWithLLM(ctx, quotes, unknown)
		},
		func(ctx context.Context) (map[int]string, error) {
			// Heuristic fallback: nothing further to resolve.
			return nil, nil
		},
	)
	if err != nil || len(resolved) == 0 {
		return quotes
	}

	for _, i := range unknown {
		if speaker, ok := resolved[quotes[i].Paragraph]; ok && strings.TrimSpace(speaker) != "" {
			quotes[i].Speaker = speaker
		}
	}
	return quotes
}

func (d *SpeakerDetector) detectWithLLM(ctx context.Context, quotes []coding.Quote, unknown []int) (map[int]string, error) {
	var excerpt strings.Builder
	for _, i := range unknown {
		fmt.Fprintf(&excerpt, "[%d] %s\n", quotes[i].Paragraph, quotes[i].Text)
	}

	var res speakerResponse
	opts := ai.StructuredCallOptions{}
	if err := ai.GenerateStructured(ctx, d.client,
		"speaker_detection",
		"Attribute transcript paragraphs to speakers",
		fmt.Sprintf(ai.SpeakerPrompt, excerpt.String()),
		&res,
		opts,
	); err != nil {
		logger.Warn("[Segment] LLM speaker detection failed", "err", err)
		return nil, err
	}

	out := make(map[int]string, len(res.Speakers))
	for _, s := range res.Speakers {
		out[s.Paragraph] = strings.TrimSpace(s.Speaker)
	}
	return out, nil
}
