package segment

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/tessera-labs/weave/pkg/coding"
)

// DefaultBatchTokens bounds the quote text included in a single LLM pass.
// Prompt scaffolding and the response budget come on top of this.
const DefaultBatchTokens = 3000

// BatchQuotes groups quotes into consecutive batches whose combined token
// count stays under maxTokens, so each extraction pass fits the model's
// context window. A single oversized quote still gets its own batch rather
// than being dropped. Order within and across batches is preserved.
func BatchQuotes(quotes []coding.Quote, maxTokens int) ([][]coding.Quote, error) {
	if len(quotes) == 0 {
		return nil, nil
	}
	if maxTokens <= 0 {
		maxTokens = DefaultBatchTokens
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, err
	}

	var (
		batches [][]coding.Quote
		current []coding.Quote
		used    int
	)

	for _, q := range quotes {
		tokens := len(enc.Encode(q.Text, nil, nil))
		if len(current) > 0 && used+tokens > maxTokens {
			batches = append(batches, current)
			current = nil
			used = 0
		}
		current = append(current, q)
		used += tokens
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches, nil
}
