package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tessera-labs/weave/internal/util"
	"github.com/tessera-labs/weave/pkg/ai"
	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
)

type codeAssignment struct {
	Name        string  `json:"name" jsonschema_description:"Short thematic code name in lower case"`
	Description string  `json:"description" jsonschema_description:"One sentence description of the theme"`
	Confidence  float64 `json:"confidence" jsonschema_description:"Assignment confidence between 0 and 1"`
}

type quoteConnection struct {
	TargetIndex int     `json:"target_index" jsonschema_description:"Index of the quote this one responds to"`
	Label       string  `json:"label" jsonschema_description:"One of responds_to, clarifies, supports"`
	Confidence  float64 `json:"confidence" jsonschema_description:"Connection confidence between 0 and 1"`
}

type quoteCoding struct {
	QuoteIndex int              `json:"quote_index" jsonschema_description:"Index of the quote being coded"`
	Codes      []codeAssignment `json:"codes" jsonschema_description:"Codes applied to this quote"`
	Connection *quoteConnection `json:"connection,omitempty" jsonschema_description:"Optional link to another quote"`
}

type codingResponse struct {
	Codings []quoteCoding `json:"codings" jsonschema_description:"Coding decisions per quote"`
}

// runCodingPass applies thematic codes and quote links to the interview's
// quotes (pass A). Codes are accumulated across batches so later batches
// can reuse codes found in earlier ones. The quotes slice is annotated in
// place with code references and links.
func (e *Extractor) runCodingPass(
	ctx context.Context,
	interviewID string,
	quotes []coding.Quote,
	batches [][]coding.Quote,
	existingCodes []coding.Code,
) ([]coding.Code, error) {
	codebook := make(map[string]*coding.Code, len(existingCodes))
	for i := range existingCodes {
		codebook[util.NormalizeName(existingCodes[i].Name)] = &existingCodes[i]
	}
	found := make(map[string]*coding.Code)

	base := 0
	for _, batch := range batches {
		prompt := fmt.Sprintf(ai.CodingPrompt,
			formatQuoteList(quotes, base, len(batch)),
			formatCodebook(codebook, found),
		)

		var res codingResponse
		if err := ai.GenerateStructured(ctx, e.client,
			"quote_coding",
			"Apply grounded theory codes to interview quotes",
			prompt, &res, e.opts.Structured,
		); err != nil {
			return nil, fmt.Errorf("coding pass for interview %s: %w", interviewID, err)
		}

		e.applyCodings(interviewID, quotes, base, len(batch), res.Codings, codebook, found)
		base += len(batch)
	}

	out := make([]coding.Code, 0, len(found))
	for _, c := range found {
		sort.Strings(c.QuoteIDs)
		c.Frequency = len(c.QuoteIDs)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (e *Extractor) applyCodings(
	interviewID string,
	quotes []coding.Quote,
	base, batchLen int,
	codings []quoteCoding,
	codebook, found map[string]*coding.Code,
) {
	for _, qc := range codings {
		if qc.QuoteIndex < base || qc.QuoteIndex >= base+batchLen {
			logger.Debug("[Extract] Coding references unknown quote index", "interview", interviewID, "index", qc.QuoteIndex)
			continue
		}
		quote := &quotes[qc.QuoteIndex]

		for _, assignment := range qc.Codes {
			name := strings.TrimSpace(assignment.Name)
			if name == "" {
				continue
			}
			key := util.NormalizeName(name)

			code, known := found[key]
			if !known {
				if existing, ok := codebook[key]; ok {
					clone := *existing
					clone.QuoteIDs = append([]string(nil), existing.QuoteIDs...)
					clone.Provenance = append(append([]coding.Provenance(nil), existing.Provenance...),
						coding.Provenance{InterviewID: interviewID, Pass: 1})
					code = &clone
				} else if e.opts.AllowNewCodes {
					code = &coding.Code{
						ID:          util.StableID("code", e.opts.ProjectID, key),
						Name:        name,
						Description: strings.TrimSpace(assignment.Description),
						Confidence:  clampConfidence(assignment.Confidence),
						Provenance:  []coding.Provenance{{InterviewID: interviewID, Pass: 1}},
					}
				} else {
					logger.Debug("[Extract] Dropping code outside closed codebook", "interview", interviewID, "code", name)
					continue
				}
				found[key] = code
			}

			if c := clampConfidence(assignment.Confidence); c > code.Confidence {
				code.Confidence = c
			}
			code.QuoteIDs = appendUnique(code.QuoteIDs, quote.ID)
			quote.CodeIDs = appendUnique(quote.CodeIDs, code.ID)
		}

		if qc.Connection != nil {
			e.applyConnection(interviewID, quotes, base, batchLen, qc.QuoteIndex, qc.Connection)
		}
	}
}

func (e *Extractor) applyConnection(
	interviewID string,
	quotes []coding.Quote,
	base, batchLen, quoteIndex int,
	conn *quoteConnection,
) {
	if conn.TargetIndex == quoteIndex {
		logger.Debug("[Extract] Dropping quote self-connection", "interview", interviewID, "index", quoteIndex)
		return
	}
	if conn.TargetIndex < base || conn.TargetIndex >= base+batchLen {
		logger.Debug("[Extract] Dropping connection to unknown quote index", "interview", interviewID, "target", conn.TargetIndex)
		return
	}

	quotes[quoteIndex].Link = &coding.ThematicLink{
		TargetQuoteID: quotes[conn.TargetIndex].ID,
		Label:         strings.TrimSpace(conn.Label),
		Confidence:    clampConfidence(conn.Confidence),
	}
}

func formatQuoteList(quotes []coding.Quote, base, batchLen int) string {
	var b strings.Builder
	for i := base; i < base+batchLen; i++ {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i, quotes[i].Speaker, quotes[i].Text)
	}
	return b.String()
}

func formatCodebook(codebook, found map[string]*coding.Code) string {
	names := make([]string, 0, len(codebook)+len(found))
	seen := make(map[string]bool, len(codebook)+len(found))
	for _, m := range []map[string]*coding.Code{codebook, found} {
		for _, c := range m {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			names = append(names, fmt.Sprintf("- %s: %s", c.Name, c.Description))
		}
	}
	if len(names) == 0 {
		return "(none yet)"
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
