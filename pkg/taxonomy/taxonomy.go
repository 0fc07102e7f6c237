package taxonomy

import (
	"sort"

	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/consolidate"
	"github.com/tessera-labs/weave/pkg/logger"
)

// Options configures hierarchy construction.
type Options struct {
	// MaxDepth bounds the tree: level 0 roots down to level MaxDepth-1.
	MaxDepth int
	// AttachThreshold is the minimum name similarity for attaching a code
	// under an existing node instead of opening a new root category.
	AttachThreshold float64
	// MinFrequency prunes codes applied to fewer quotes than this after
	// the tree is built. Pruned codes' quotes are redirected to the
	// nearest surviving ancestor.
	MinFrequency int
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = 3
	}
	if o.AttachThreshold <= 0 {
		o.AttachThreshold = 0.3
	}
	return o
}

// Build organizes a flat consolidated code set into a tree of bounded
// depth. High-frequency codes are placed first and become the core
// categories; every other code either attaches below its most similar
// existing node or opens a new root. Parent pointers are set exactly once
// and children only ever hang below already-placed nodes, so the result
// is acyclic by construction and a child's level is always its parent's
// level plus one.
//
// The returned redirects map points each pruned code to the surviving
// ancestor that absorbed its quotes, so quote code references can be
// rewritten to match the final tree.
func Build(codes []coding.Code, opts Options) (coding.Taxonomy, map[string]string) {
	opts = opts.withDefaults()

	placed := make([]*coding.Code, 0, len(codes))
	order := make([]coding.Code, len(codes))
	copy(order, codes)
	sort.Slice(order, func(i, j int) bool {
		if order[i].Frequency != order[j].Frequency {
			return order[i].Frequency > order[j].Frequency
		}
		if order[i].Confidence != order[j].Confidence {
			return order[i].Confidence > order[j].Confidence
		}
		return order[i].ID < order[j].ID
	})

	for i := range order {
		code := order[i]
		code.ParentID = ""
		code.Level = 0

		parent := bestParent(placed, code, opts)
		if parent != nil {
			code.ParentID = parent.ID
			code.Level = parent.Level + 1
		}
		placed = append(placed, &code)
	}

	placed, redirects := prune(placed, opts)

	out := make([]coding.Code, 0, len(placed))
	depth := 0
	levelCounts := make(map[int]int)
	for _, c := range placed {
		out = append(out, *c)
		levelCounts[c.Level]++
		if c.Level+1 > depth {
			depth = c.Level + 1
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})

	return coding.Taxonomy{
		Codes:       out,
		Depth:       depth,
		LevelCounts: levelCounts,
	}, redirects
}

// bestParent returns the most similar placed node that still has room for
// a child within the depth bound, or nil when no candidate is similar
// enough and the code should become a new root.
func bestParent(placed []*coding.Code, code coding.Code, opts Options) *coding.Code {
	var (
		best      *coding.Code
		bestScore float64
	)
	for _, candidate := range placed {
		if candidate.Level >= opts.MaxDepth-1 {
			continue
		}
		score := consolidate.Similarity(candidate.Name, code.Name)
		if score < opts.AttachThreshold {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && candidate.ID < best.ID) {
			best = candidate
			bestScore = score
		}
	}
	return best
}

// prune removes codes below the frequency floor. A pruned code's quotes
// and children are redirected to its nearest surviving ancestor; a pruned
// root's children are promoted to roots. Quotes are never silently
// orphaned: with no surviving ancestor the code is kept despite its low
// frequency.
func prune(placed []*coding.Code, opts Options) ([]*coding.Code, map[string]string) {
	redirects := make(map[string]string)
	if opts.MinFrequency <= 1 {
		return placed, redirects
	}

	byID := make(map[string]*coding.Code, len(placed))
	for _, c := range placed {
		byID[c.ID] = c
	}

	pruned := make(map[string]bool)
	// Deepest first, so a chain of low-frequency codes collapses upward
	// one level at a time.
	order := make([]*coding.Code, len(placed))
	copy(order, placed)
	sort.Slice(order, func(i, j int) bool { return order[i].Level > order[j].Level })

	for _, c := range order {
		if c.Frequency >= opts.MinFrequency {
			continue
		}

		ancestor := survivingAncestor(c, byID, pruned)
		if ancestor == nil && c.ParentID == "" {
			// A root with no surviving ancestor keeps its quotes.
			if len(c.QuoteIDs) > 0 {
				continue
			}
		}
		pruned[c.ID] = true
		logger.Debug("[Taxonomy] Pruned low-frequency code", "code", c.Name, "frequency", c.Frequency)

		if ancestor != nil {
			for _, q := range c.QuoteIDs {
				ancestor.QuoteIDs = appendUnique(ancestor.QuoteIDs, q)
			}
			ancestor.Frequency = len(ancestor.QuoteIDs)
			redirects[c.ID] = ancestor.ID
		} else {
			redirects[c.ID] = ""
		}
	}

	var out []*coding.Code
	for _, c := range placed {
		if pruned[c.ID] {
			continue
		}
		reparent(c, byID, pruned)
		out = append(out, c)
	}
	relevel(out)
	return out, redirects
}

// Detach removes the given codes from an already-built tree. Surviving
// children are reattached to their nearest surviving ancestor, or promoted
// to roots when the whole chain above them was removed; the removed codes'
// quotes are absorbed into that ancestor; levels and aggregate counts are
// recomputed. The returned redirects map each removed code to its
// surviving ancestor, "" when none survives.
//
// tax.Codes must already exclude the removed codes; removed supplies their
// parent pointers for chain walking.
func Detach(tax *coding.Taxonomy, removed []coding.Code) map[string]string {
	redirects := make(map[string]string)
	if len(removed) == 0 {
		return redirects
	}

	gone := make(map[string]*coding.Code, len(removed))
	goneIDs := make([]string, 0, len(removed))
	for i := range removed {
		gone[removed[i].ID] = &removed[i]
		goneIDs = append(goneIDs, removed[i].ID)
	}
	sort.Strings(goneIDs)

	survivors := make([]*coding.Code, len(tax.Codes))
	byID := make(map[string]*coding.Code, len(tax.Codes))
	for i := range tax.Codes {
		survivors[i] = &tax.Codes[i]
		byID[tax.Codes[i].ID] = survivors[i]
	}

	resolve := func(parentID string) string {
		for parentID != "" {
			if _, ok := byID[parentID]; ok {
				return parentID
			}
			parent, ok := gone[parentID]
			if !ok {
				return ""
			}
			parentID = parent.ParentID
		}
		return ""
	}

	for _, id := range goneIDs {
		c := gone[id]
		target := resolve(c.ParentID)
		redirects[id] = target
		if target == "" {
			continue
		}
		ancestor := byID[target]
		for _, q := range c.QuoteIDs {
			ancestor.QuoteIDs = appendUnique(ancestor.QuoteIDs, q)
		}
		ancestor.Frequency = len(ancestor.QuoteIDs)
	}

	for _, c := range survivors {
		if c.ParentID == "" {
			continue
		}
		if _, ok := byID[c.ParentID]; !ok {
			c.ParentID = resolve(c.ParentID)
		}
	}
	relevel(survivors)

	depth := 0
	levelCounts := make(map[int]int)
	for _, c := range survivors {
		levelCounts[c.Level]++
		if c.Level+1 > depth {
			depth = c.Level + 1
		}
	}
	tax.Depth = depth
	tax.LevelCounts = levelCounts

	sort.Slice(tax.Codes, func(i, j int) bool {
		if tax.Codes[i].Level != tax.Codes[j].Level {
			return tax.Codes[i].Level < tax.Codes[j].Level
		}
		return tax.Codes[i].ID < tax.Codes[j].ID
	})
	return redirects
}

func survivingAncestor(c *coding.Code, byID map[string]*coding.Code, pruned map[string]bool) *coding.Code {
	parentID := c.ParentID
	for parentID != "" {
		parent, ok := byID[parentID]
		if !ok {
			return nil
		}
		if !pruned[parent.ID] {
			return parent
		}
		parentID = parent.ParentID
	}
	return nil
}

// reparent walks a surviving code's parent chain past pruned nodes.
func reparent(c *coding.Code, byID map[string]*coding.Code, pruned map[string]bool) {
	parentID := c.ParentID
	for parentID != "" {
		parent, ok := byID[parentID]
		if !ok || pruned[parent.ID] {
			if !ok {
				parentID = ""
				break
			}
			parentID = parent.ParentID
			continue
		}
		break
	}
	c.ParentID = parentID
}

// relevel recomputes levels from parent pointers after pruning so the
// child level invariant holds in the final tree.
func relevel(codes []*coding.Code) {
	byID := make(map[string]*coding.Code, len(codes))
	for _, c := range codes {
		byID[c.ID] = c
	}

	var levelOf func(c *coding.Code, seen map[string]bool) int
	levelOf = func(c *coding.Code, seen map[string]bool) int {
		if c.ParentID == "" {
			return 0
		}
		parent, ok := byID[c.ParentID]
		if !ok || seen[c.ID] {
			return 0
		}
		seen[c.ID] = true
		return levelOf(parent, seen) + 1
	}

	for _, c := range codes {
		c.Level = levelOf(c, make(map[string]bool))
	}
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
