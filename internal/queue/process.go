package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tessera-labs/weave/pkg/ai"
	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/leaselock"
	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/pipeline"
	graphstorage "github.com/tessera-labs/weave/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CodingJobMsg is one coding run submitted to the worker: the transcripts
// to process plus the run configuration.
type CodingJobMsg struct {
	CorrelationID string             `json:"correlation_id"`
	Config        pipeline.Config    `json:"config"`
	Interviews    []coding.Interview `json:"interviews"`
}

// ProcessCodingMessage runs one coding job under the project's run lease,
// so two workers never write the same project's graph concurrently. The
// job is idempotent end to end; a redelivered message re-upserts the same
// records.
func ProcessCodingMessage(
	ctx context.Context,
	aiClient ai.CodingAIClient,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(CodingJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	storage := graphstorage.NewCodingDBStorage(graphstorage.NewCodingDBStorageParams{
		Conn:     conn,
		AIClient: aiClient,
	})

	p, err := pipeline.New(aiClient, storage, data.Config)
	if err != nil {
		return err
	}

	locks := leaselock.New(conn)
	return locks.WithLease(ctx, "coding:"+data.Config.ProjectID, leaselock.Options{
		TTL:  5 * time.Minute,
		Wait: true,
	}, func(ctx context.Context) error {
		result, err := p.Run(ctx, data.Interviews)
		if err != nil {
			return err
		}

		logger.Info("[Queue] Coding job finished",
			"correlation_id", data.CorrelationID,
			"project", data.Config.ProjectID,
			"run", result.RunID,
			"codes", result.Summary.CodesFound,
			"entities", result.Summary.EntitiesFound,
			"failed_interviews", len(result.Summary.Errors))
		return nil
	})
}
