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

type extractedEntity struct {
	EntityName        string  `json:"entity_name" jsonschema_description:"Entity name in capital letters"`
	EntityType        string  `json:"entity_type" jsonschema_description:"One of the provided entity types"`
	EntityDescription string  `json:"entity_description" jsonschema_description:"Description of the entity from the quotes"`
	QuoteIndices      []int   `json:"quote_indices" jsonschema_description:"Indices of quotes mentioning the entity"`
	Confidence        float64 `json:"confidence" jsonschema_description:"Extraction confidence between 0 and 1"`
}

type extractedRelationship struct {
	SourceEntity string  `json:"source_entity" jsonschema_description:"Name of the source entity"`
	TargetEntity string  `json:"target_entity" jsonschema_description:"Name of the target entity"`
	Label        string  `json:"label" jsonschema_description:"Short verb phrase naming the relation"`
	QuoteIndex   int     `json:"quote_index" jsonschema_description:"Index of the quote supporting the relation"`
	Confidence   float64 `json:"confidence" jsonschema_description:"Extraction confidence between 0 and 1"`
}

type extractResponse struct {
	Entities      []extractedEntity       `json:"entities" jsonschema_description:"Entities found in the quotes"`
	Relationships []extractedRelationship `json:"relationships" jsonschema_description:"Relationships between found entities"`
}

// runEntityPass extracts entities and relationships from the interview's
// quotes (pass B). Entities recurring across batches are merged by
// normalized name and type. Relationship endpoints are resolved against
// the co-extracted entity set by exact name; unresolvable relationships
// are dropped with a logged reason, never emitted with an unknown type.
func (e *Extractor) runEntityPass(
	ctx context.Context,
	interviewID string,
	quotes []coding.Quote,
	batches [][]coding.Quote,
) ([]coding.Entity, []coding.Relationship, error) {
	typeList := strings.Join(e.opts.EntityTypes, ", ")

	entities := make(map[string]*coding.Entity)
	byName := make(map[string]*coding.Entity)
	var rawRelationships []extractedRelationship

	base := 0
	for _, batch := range batches {
		prompt := fmt.Sprintf(ai.ExtractPrompt,
			typeList,
			formatQuoteList(quotes, base, len(batch)),
			typeList,
			typeList,
		)

		var res extractResponse
		if err := ai.GenerateStructured(ctx, e.client,
			"entity_extraction",
			"Extract entities and relationships from interview quotes",
			prompt, &res, e.opts.Structured,
		); err != nil {
			return nil, nil, fmt.Errorf("entity pass for interview %s: %w", interviewID, err)
		}

		for _, ent := range res.Entities {
			e.mergeEntity(interviewID, quotes, base, len(batch), ent, entities, byName)
		}
		rawRelationships = append(rawRelationships, res.Relationships...)
		base += len(batch)
	}

	relationships := e.resolveRelationships(interviewID, quotes, rawRelationships, byName)

	out := make([]coding.Entity, 0, len(entities))
	for _, ent := range entities {
		sort.Strings(ent.QuoteIDs)
		out = append(out, *ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, relationships, nil
}

func (e *Extractor) mergeEntity(
	interviewID string,
	quotes []coding.Quote,
	base, batchLen int,
	raw extractedEntity,
	entities, byName map[string]*coding.Entity,
) {
	name := strings.TrimSpace(raw.EntityName)
	if name == "" {
		return
	}
	entityType := strings.ToUpper(strings.TrimSpace(raw.EntityType))
	key := normalizeKey(name, entityType)

	ent, ok := entities[key]
	if !ok {
		ent = &coding.Entity{
			ID:          util.StableID("entity", e.opts.ProjectID, util.NormalizeName(name), entityType),
			Name:        strings.ToUpper(name),
			Type:        entityType,
			Description: strings.TrimSpace(raw.EntityDescription),
			Confidence:  clampConfidence(raw.Confidence),
			Provenance:  []coding.Provenance{{InterviewID: interviewID, Pass: 2}},
		}
		entities[key] = ent
		// First extraction of a name wins the name lookup; later same-name
		// entities of a different type do not steal relationship endpoints.
		if _, taken := byName[util.NormalizeName(name)]; !taken {
			byName[util.NormalizeName(name)] = ent
		}
	} else {
		if c := clampConfidence(raw.Confidence); c > ent.Confidence {
			ent.Confidence = c
		}
		if desc := strings.TrimSpace(raw.EntityDescription); desc != "" && !strings.Contains(ent.Description, desc) {
			if ent.Description == "" {
				ent.Description = desc
			} else {
				ent.Description += " " + desc
			}
		}
	}

	for _, idx := range raw.QuoteIndices {
		if idx < base || idx >= base+batchLen {
			continue
		}
		ent.QuoteIDs = appendUnique(ent.QuoteIDs, quotes[idx].ID)
	}
}

func (e *Extractor) resolveRelationships(
	interviewID string,
	quotes []coding.Quote,
	raw []extractedRelationship,
	byName map[string]*coding.Entity,
) []coding.Relationship {
	var out []coding.Relationship
	seen := make(map[string]bool)

	for _, rel := range raw {
		source, sourceOK := byName[util.NormalizeName(rel.SourceEntity)]
		target, targetOK := byName[util.NormalizeName(rel.TargetEntity)]
		if !sourceOK || !targetOK {
			logger.Warn("[Extract] Dropping relationship with unresolvable endpoint",
				"interview", interviewID,
				"source", rel.SourceEntity,
				"target", rel.TargetEntity,
				"label", rel.Label)
			continue
		}
		if source.ID == target.ID {
			logger.Debug("[Extract] Dropping self-referential relationship", "interview", interviewID, "entity", source.Name)
			continue
		}

		label := util.NormalizeName(rel.Label)
		if label == "" {
			label = "related_to"
		}

		id := util.StableID("rel", e.opts.ProjectID, source.ID, target.ID, label)
		if seen[id] {
			continue
		}
		seen[id] = true

		quoteID := ""
		if rel.QuoteIndex >= 0 && rel.QuoteIndex < len(quotes) {
			quoteID = quotes[rel.QuoteIndex].ID
		}

		out = append(out, coding.Relationship{
			ID:         id,
			SourceID:   source.ID,
			SourceName: source.Name,
			SourceType: source.Type,
			TargetID:   target.ID,
			TargetName: target.Name,
			TargetType: target.Type,
			Label:      label,
			Confidence: clampConfidence(rel.Confidence),
			QuoteID:    quoteID,
			Provenance: coding.Provenance{InterviewID: interviewID, Pass: 2},
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
