package pgx

import (
	"context"
	"strings"
	"sync"

	"github.com/tessera-labs/weave/migrations"
	"github.com/tessera-labs/weave/pkg/ai"
	"github.com/tessera-labs/weave/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
)

// EmbeddingDim is the dimensionality of stored description embeddings.
const EmbeddingDim = 1536

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// CodingDBStorage implements store.GraphStorage on PostgreSQL with
// pgvector for description embeddings. A mutex serializes writes so one
// pipeline run is the only writer on its connection; concurrent runs are
// excluded at a higher level by the run lease.
type CodingDBStorage struct {
	conn        pgxIConn
	aiClient    ai.CodingAIClient
	maxParallel int
	dbLock      sync.Mutex
}

// NewCodingDBStorageParams configures NewCodingDBStorage.
type NewCodingDBStorageParams struct {
	Conn     pgxIConn
	AIClient ai.CodingAIClient
	// MaxParallelEmbeddings bounds concurrent embedding requests while
	// saving a batch. Defaults to 8.
	MaxParallelEmbeddings int
}

// NewCodingDBStorage creates a storage layer over an existing connection
// or pool. The AI client is used to embed entity and code descriptions for
// similarity search; it may be nil, in which case embeddings are skipped.
func NewCodingDBStorage(params NewCodingDBStorageParams) *CodingDBStorage {
	maxParallel := params.MaxParallelEmbeddings
	if maxParallel <= 0 {
		maxParallel = 8
	}
	return &CodingDBStorage{
		conn:        params.Conn,
		aiClient:    params.AIClient,
		maxParallel: maxParallel,
	}
}

// Migrate brings the database schema up to date using the embedded
// migration files. An already-current schema is not an error.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}

	// The migrate pgx/v5 driver registers under the pgx5 scheme.
	if rest, ok := strings.CutPrefix(databaseURL, "postgres://"); ok {
		databaseURL = "pgx5://" + rest
	} else if rest, ok := strings.CutPrefix(databaseURL, "postgresql://"); ok {
		databaseURL = "pgx5://" + rest
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	logger.Info("[Store] Database schema up to date")
	return nil
}
