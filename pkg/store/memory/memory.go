package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tessera-labs/weave/pkg/coding"
)

// Storage is an in-memory store.GraphStorage used by tests and dry runs.
// Upserts are keyed by the record's stable identifier, mirroring the
// idempotence contract of the database-backed implementation.
type Storage struct {
	mu            sync.Mutex
	entities      map[string]map[string]coding.Entity
	relationships map[string]map[string]coding.Relationship
	codes         map[string]map[string]coding.Code
	quotes        map[string]map[string]coding.Quote
}

// New creates an empty in-memory storage.
func New() *Storage {
	return &Storage{
		entities:      make(map[string]map[string]coding.Entity),
		relationships: make(map[string]map[string]coding.Relationship),
		codes:         make(map[string]map[string]coding.Code),
		quotes:        make(map[string]map[string]coding.Quote),
	}
}

func (s *Storage) UpsertEntities(ctx context.Context, projectID string, entities []coding.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entities[projectID] == nil {
		s.entities[projectID] = make(map[string]coding.Entity)
	}
	for _, e := range entities {
		s.entities[projectID][e.ID] = e
	}
	return nil
}

func (s *Storage) UpsertRelationships(ctx context.Context, projectID string, relationships []coding.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.relationships[projectID] == nil {
		s.relationships[projectID] = make(map[string]coding.Relationship)
	}
	for _, r := range relationships {
		s.relationships[projectID][r.ID] = r
	}
	return nil
}

func (s *Storage) UpsertCodes(ctx context.Context, projectID string, codes []coding.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes[projectID] == nil {
		s.codes[projectID] = make(map[string]coding.Code)
	}
	for _, c := range codes {
		s.codes[projectID][c.ID] = c
	}
	return nil
}

func (s *Storage) UpsertQuotes(ctx context.Context, projectID string, quotes []coding.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quotes[projectID] == nil {
		s.quotes[projectID] = make(map[string]coding.Quote)
	}
	for _, q := range quotes {
		s.quotes[projectID][q.ID] = q
	}
	return nil
}

func (s *Storage) Codebook(ctx context.Context, projectID string) ([]coding.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coding.Code, 0, len(s.codes[projectID]))
	for _, c := range s.codes[projectID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Entities returns a project's persisted entities sorted by identifier.
func (s *Storage) Entities(projectID string) []coding.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coding.Entity, 0, len(s.entities[projectID]))
	for _, e := range s.entities[projectID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Relationships returns a project's persisted relationships sorted by identifier.
func (s *Storage) Relationships(projectID string) []coding.Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coding.Relationship, 0, len(s.relationships[projectID]))
	for _, r := range s.relationships[projectID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Quotes returns a project's persisted quotes sorted by identifier.
func (s *Storage) Quotes(projectID string) []coding.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coding.Quote, 0, len(s.quotes[projectID]))
	for _, q := range s.quotes[projectID] {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
