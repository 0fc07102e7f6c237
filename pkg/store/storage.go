package store

import (
	"context"
	"fmt"

	"github.com/tessera-labs/weave/pkg/coding"
)

// GraphStorage persists a run's coding output. All upserts are idempotent
// by stable identifier: re-submitting the same record updates its
// properties without creating a duplicate node or edge. Identifiers are
// content-derived before persistence, never database-generated.
type GraphStorage interface {
	UpsertEntities(ctx context.Context, projectID string, entities []coding.Entity) error
	UpsertRelationships(ctx context.Context, projectID string, relationships []coding.Relationship) error
	UpsertCodes(ctx context.Context, projectID string, codes []coding.Code) error
	UpsertQuotes(ctx context.Context, projectID string, quotes []coding.Quote) error

	// Codebook returns the codes already persisted for a project, used to
	// seed closed and mixed coding runs.
	Codebook(ctx context.Context, projectID string) ([]coding.Code, error)
}

// PersistenceError reports a failed batch write together with how far the
// batch got. Because upserts are idempotent, the whole batch is safe to
// retry after the connection recovers.
type PersistenceError struct {
	Op        string
	Committed int
	Remaining int
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %d records committed, %d not committed: %v", e.Op, e.Committed, e.Remaining, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps a batch write failure with its commit report.
func NewPersistenceError(op string, committed, remaining int, err error) *PersistenceError {
	return &PersistenceError{Op: op, Committed: committed, Remaining: remaining, Err: err}
}
