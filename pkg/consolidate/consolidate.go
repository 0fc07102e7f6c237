package consolidate

import (
	"sort"

	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
)

// MatchMode controls which type combinations may merge.
type MatchMode string

const (
	// MatchClosed merges only entities whose types both belong to the
	// standard vocabulary and are equal.
	MatchClosed MatchMode = "closed"
	// MatchOpen merges by name similarity alone, regardless of type.
	MatchOpen MatchMode = "open"
	// MatchHybrid merges equal types freely and lets a standard-typed
	// record absorb a similarly named non-standard one.
	MatchHybrid MatchMode = "hybrid"
)

// DefaultThreshold is the name similarity above which two records are
// merge candidates.
const DefaultThreshold = 0.85

// Options configures a consolidation run.
type Options struct {
	Mode      MatchMode
	Threshold float64
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = MatchHybrid
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Entities deduplicates the unioned draft entities from all interviews.
// Merging is deterministic: candidates are compared in a stable order and
// the surviving record is chosen by confidence, then supporting quote
// count, then lexicographically smaller identifier, except that a hybrid
// merge across a standard and a non-standard type always keeps the
// standard-typed record. The survivor keeps its
// own name and type; the loser's quotes, description and provenance are
// absorbed, and confidence becomes the max of the two.
//
// Running Entities on an already consolidated set is a no-op.
func Entities(entities []coding.Entity, opts Options) []coding.Entity {
	opts = opts.withDefaults()
	if len(entities) < 2 {
		return entities
	}

	pool := make([]*coding.Entity, len(entities))
	for i := range entities {
		clone := entities[i]
		clone.QuoteIDs = append([]string(nil), entities[i].QuoteIDs...)
		clone.Provenance = append([]coding.Provenance(nil), entities[i].Provenance...)
		pool[i] = &clone
	}
	sortEntityPool(pool)

	// Merge tracking is positional: the same interview set can legally
	// produce two records with the same content-derived identifier, and
	// the survivor must not be flagged alongside the record it absorbed.
	merged := make([]bool, len(pool))
	for i := 0; i < len(pool); i++ {
		if merged[i] {
			continue
		}
		for j := i + 1; j < len(pool); j++ {
			if merged[j] {
				continue
			}
			if !typesCompatible(pool[i].Type, pool[j].Type, opts.Mode) {
				continue
			}
			if Similarity(pool[i].Name, pool[j].Name) < opts.Threshold {
				continue
			}

			preferStandardSurvivor(pool, i, j, opts.Mode)
			absorbEntity(pool[i], pool[j])
			merged[j] = true
			logger.Debug("[Consolidate] Merged entity", "survivor", pool[i].Name, "absorbed", pool[j].Name)
		}
	}

	out := make([]coding.Entity, 0, len(pool))
	for i, e := range pool {
		if merged[i] {
			continue
		}
		sort.Strings(e.QuoteIDs)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Codes deduplicates codes by name similarity. Codes have no type axis,
// so the matching mode does not constrain them. Quote references and
// provenance are combined; frequency is recomputed from the merged quote
// set.
func Codes(codes []coding.Code, opts Options) []coding.Code {
	opts = opts.withDefaults()
	if len(codes) < 2 {
		return codes
	}

	pool := make([]*coding.Code, len(codes))
	for i := range codes {
		clone := codes[i]
		clone.QuoteIDs = append([]string(nil), codes[i].QuoteIDs...)
		clone.Provenance = append([]coding.Provenance(nil), codes[i].Provenance...)
		pool[i] = &clone
	}
	sortCodePool(pool)

	merged := make([]bool, len(pool))
	for i := 0; i < len(pool); i++ {
		if merged[i] {
			continue
		}
		for j := i + 1; j < len(pool); j++ {
			if merged[j] {
				continue
			}
			if Similarity(pool[i].Name, pool[j].Name) < opts.Threshold {
				continue
			}

			absorbCode(pool[i], pool[j])
			merged[j] = true
			logger.Debug("[Consolidate] Merged code", "survivor", pool[i].Name, "absorbed", pool[j].Name)
		}
	}

	out := make([]coding.Code, 0, len(pool))
	for i, c := range pool {
		if merged[i] {
			continue
		}
		sort.Strings(c.QuoteIDs)
		c.Frequency = len(c.QuoteIDs)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CodeReplacements reports which code identifiers were absorbed into which
// survivors in the given consolidation, so quote references can be
// rewritten. It re-runs the same deterministic matching.
func CodeReplacements(codes []coding.Code, opts Options) map[string]string {
	opts = opts.withDefaults()
	replaced := make(map[string]string)
	if len(codes) < 2 {
		return replaced
	}

	pool := make([]*coding.Code, len(codes))
	for i := range codes {
		clone := codes[i]
		pool[i] = &clone
	}
	sortCodePool(pool)

	merged := make([]bool, len(pool))
	for i := 0; i < len(pool); i++ {
		if merged[i] {
			continue
		}
		for j := i + 1; j < len(pool); j++ {
			if merged[j] {
				continue
			}
			if Similarity(pool[i].Name, pool[j].Name) < opts.Threshold {
				continue
			}
			merged[j] = true
			if pool[j].ID != pool[i].ID {
				replaced[pool[j].ID] = pool[i].ID
			}
		}
	}
	return replaced
}

// Relationships deduplicates edges and remaps endpoints of merged
// entities. Edges sharing source, target and label collapse into one
// record keeping the maximum confidence seen. entityReplacements maps an
// absorbed entity ID to its survivor's ID.
func Relationships(
	relationships []coding.Relationship,
	entityReplacements map[string]string,
) []coding.Relationship {
	byKey := make(map[string]*coding.Relationship)

	resolve := func(id string) string {
		for {
			next, ok := entityReplacements[id]
			if !ok {
				return id
			}
			id = next
		}
	}

	for i := range relationships {
		rel := relationships[i]
		rel.SourceID = resolve(rel.SourceID)
		rel.TargetID = resolve(rel.TargetID)
		if rel.SourceID == rel.TargetID {
			// Endpoints merged into the same entity; the edge is now
			// self-referential and meaningless.
			continue
		}

		key := rel.SourceID + "|" + rel.TargetID + "|" + rel.Label
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = &rel
			continue
		}
		if rel.Confidence > existing.Confidence {
			existing.Confidence = rel.Confidence
		}
		if existing.QuoteID == "" {
			existing.QuoteID = rel.QuoteID
		}
	}

	out := make([]coding.Relationship, 0, len(byKey))
	for _, rel := range byKey {
		out = append(out, *rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntityReplacements reports which entity identifiers were absorbed into
// which survivors, mirroring the matching performed by Entities.
func EntityReplacements(entities []coding.Entity, opts Options) map[string]string {
	opts = opts.withDefaults()
	replaced := make(map[string]string)
	if len(entities) < 2 {
		return replaced
	}

	pool := make([]*coding.Entity, len(entities))
	for i := range entities {
		clone := entities[i]
		pool[i] = &clone
	}
	sortEntityPool(pool)

	merged := make([]bool, len(pool))
	for i := 0; i < len(pool); i++ {
		if merged[i] {
			continue
		}
		for j := i + 1; j < len(pool); j++ {
			if merged[j] {
				continue
			}
			if !typesCompatible(pool[i].Type, pool[j].Type, opts.Mode) {
				continue
			}
			if Similarity(pool[i].Name, pool[j].Name) < opts.Threshold {
				continue
			}
			preferStandardSurvivor(pool, i, j, opts.Mode)
			merged[j] = true
			if pool[j].ID != pool[i].ID {
				replaced[pool[j].ID] = pool[i].ID
			}
		}
	}
	return replaced
}

// preferStandardSurvivor swaps a mixed-type hybrid pair so the record with
// the standard type survives the merge, regardless of which scored higher
// confidence. Same-type pairs and the other modes keep the confidence
// ordering.
func preferStandardSurvivor(pool []*coding.Entity, i, j int, mode MatchMode) {
	if mode != MatchHybrid || pool[i].Type == pool[j].Type {
		return
	}
	if !coding.IsStandardEntityType(pool[i].Type) && coding.IsStandardEntityType(pool[j].Type) {
		pool[i], pool[j] = pool[j], pool[i]
	}
}

// sortEntityPool orders candidates so the preferred survivor comes first:
// higher confidence, then more supporting quotes, then smaller identifier.
func sortEntityPool(pool []*coding.Entity) {
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Confidence != pool[j].Confidence {
			return pool[i].Confidence > pool[j].Confidence
		}
		if len(pool[i].QuoteIDs) != len(pool[j].QuoteIDs) {
			return len(pool[i].QuoteIDs) > len(pool[j].QuoteIDs)
		}
		return pool[i].ID < pool[j].ID
	})
}

func sortCodePool(pool []*coding.Code) {
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Confidence != pool[j].Confidence {
			return pool[i].Confidence > pool[j].Confidence
		}
		if len(pool[i].QuoteIDs) != len(pool[j].QuoteIDs) {
			return len(pool[i].QuoteIDs) > len(pool[j].QuoteIDs)
		}
		return pool[i].ID < pool[j].ID
	})
}

func typesCompatible(a, b string, mode MatchMode) bool {
	switch mode {
	case MatchOpen:
		return true
	case MatchClosed:
		return a == b && coding.IsStandardEntityType(a)
	case MatchHybrid:
		if a == b {
			return true
		}
		// A standard-typed record may absorb a non-standard near-duplicate,
		// but two distinct standard types never merge.
		return coding.IsStandardEntityType(a) != coding.IsStandardEntityType(b)
	}
	return false
}

func absorbEntity(survivor, loser *coding.Entity) {
	for _, q := range loser.QuoteIDs {
		survivor.QuoteIDs = appendUnique(survivor.QuoteIDs, q)
	}
	survivor.Provenance = append(survivor.Provenance, loser.Provenance...)
	if loser.Description != "" && loser.Description != survivor.Description {
		if survivor.Description == "" {
			survivor.Description = loser.Description
		} else {
			survivor.Description += " " + loser.Description
		}
	}
	if loser.Confidence > survivor.Confidence {
		survivor.Confidence = loser.Confidence
	}
}

func absorbCode(survivor, loser *coding.Code) {
	for _, q := range loser.QuoteIDs {
		survivor.QuoteIDs = appendUnique(survivor.QuoteIDs, q)
	}
	survivor.Provenance = append(survivor.Provenance, loser.Provenance...)
	if loser.Description != "" && survivor.Description == "" {
		survivor.Description = loser.Description
	}
	if loser.Confidence > survivor.Confidence {
		survivor.Confidence = loser.Confidence
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
