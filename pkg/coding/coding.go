package coding

// StandardEntityTypes is the closed type vocabulary used when the run is
// configured with the CLOSED coding approach.
var StandardEntityTypes = []string{
	"PERSON",
	"ORGANIZATION",
	"TOOL",
	"CONCEPT",
	"LOCATION",
	"EVENT",
	"PRACTICE",
}

// IsStandardEntityType reports whether typ belongs to the closed vocabulary.
func IsStandardEntityType(typ string) bool {
	for _, t := range StandardEntityTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// ReviewStatus classifies an item after validation.
type ReviewStatus string

const (
	StatusAutoApproved     ReviewStatus = "auto_approved"
	StatusFlaggedForReview ReviewStatus = "flagged_for_review"
	StatusRejected         ReviewStatus = "rejected"
)

// Provenance records where an extracted item came from.
type Provenance struct {
	InterviewID string `json:"interview_id"`
	Pass        int    `json:"pass"`
}

// Entity represents a named real-world thing mentioned in transcripts:
// a person, organization, tool, concept and so on.
//
// Entities are created during extraction and mutated during consolidation.
// They are never deleted, only merged into a surviving record that absorbs
// the losing record's quotes and provenance.
type Entity struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Description string       `json:"description"`
	QuoteIDs    []string     `json:"quote_ids"`
	Confidence  float64      `json:"confidence"`
	Provenance  []Provenance `json:"provenance"`
	Status      ReviewStatus `json:"status,omitempty"`
}

// Relationship is a directed, typed edge between two entities.
// Source and target types must be resolved before persistence; a
// relationship whose endpoint type cannot be determined is dropped.
type Relationship struct {
	ID         string       `json:"id"`
	SourceID   string       `json:"source_id"`
	SourceName string       `json:"source_name"`
	SourceType string       `json:"source_type"`
	TargetID   string       `json:"target_id"`
	TargetName string       `json:"target_name"`
	TargetType string       `json:"target_type"`
	Label      string       `json:"label"`
	Confidence float64      `json:"confidence"`
	QuoteID    string       `json:"quote_id,omitempty"`
	Provenance Provenance   `json:"provenance"`
	Status     ReviewStatus `json:"status,omitempty"`
}

// Code is a thematic label applied to one or more quotes, the atomic unit
// of the coding taxonomy. Level 0 codes are roots; a child's level always
// equals its parent's level plus one.
type Code struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Level       int          `json:"level"`
	ParentID    string       `json:"parent_id,omitempty"`
	Frequency   int          `json:"frequency"`
	QuoteIDs    []string     `json:"quote_ids"`
	Confidence  float64      `json:"confidence"`
	Provenance  []Provenance `json:"provenance"`
	Status      ReviewStatus `json:"status,omitempty"`
}

// ThematicLink connects a quote to another quote with a labeled relation
// such as "responds_to", "clarifies" or "supports".
type ThematicLink struct {
	TargetQuoteID string  `json:"target_quote_id"`
	Label         string  `json:"label"`
	Confidence    float64 `json:"confidence"`
}

// Quote is a verbatim excerpt of transcript text. The text is immutable
// once created; code assignments are appended during the coding passes.
type Quote struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	Speaker     string        `json:"speaker,omitempty"`
	InterviewID string        `json:"interview_id"`
	Paragraph   int           `json:"paragraph"`
	StartOffset int           `json:"start_offset"`
	EndOffset   int           `json:"end_offset"`
	CodeIDs     []string      `json:"code_ids"`
	Link        *ThematicLink `json:"link,omitempty"`
}

// Taxonomy is the full hierarchical set of codes for a run plus aggregate
// statistics. It is owned by the pipeline run that produced it and is
// read-only for downstream consumers.
type Taxonomy struct {
	Codes       []Code      `json:"codes"`
	Depth       int         `json:"depth"`
	LevelCounts map[int]int `json:"level_counts"`
}

// CodeByID returns the code with the given identifier, or nil.
func (t *Taxonomy) CodeByID(id string) *Code {
	for i := range t.Codes {
		if t.Codes[i].ID == id {
			return &t.Codes[i]
		}
	}
	return nil
}

// Interview is one transcript handed to the pipeline.
type Interview struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// InterviewError captures a per-interview failure without aborting the run.
type InterviewError struct {
	InterviewID string `json:"interview_id"`
	Reason      string `json:"reason"`
}

// RunSummary is the final accounting of a pipeline run. It is produced
// regardless of partial failure.
type RunSummary struct {
	InterviewsProcessed int              `json:"interviews_processed"`
	CodesFound          int              `json:"codes_found"`
	EntitiesFound       int              `json:"entities_found"`
	RelationshipsFound  int              `json:"relationships_found"`
	Errors              []InterviewError `json:"errors"`
}

// RunResult is the complete output of one pipeline run.
type RunResult struct {
	RunID         string             `json:"run_id"`
	ProjectID     string             `json:"project_id"`
	Taxonomy      Taxonomy           `json:"taxonomy"`
	Entities      []Entity           `json:"entities"`
	Relationships []Relationship     `json:"relationships"`
	Quotes        map[string][]Quote `json:"quotes"`
	Summary       RunSummary         `json:"summary"`
}
