// Command coder runs the coding pipeline over a directory of transcript
// files without going through the job queue. Each *.txt file in the input
// directory becomes one interview; the file name (without extension) is
// the interview ID.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/tessera-labs/weave/internal/util"
	"github.com/tessera-labs/weave/pkg/ai"
	oai "github.com/tessera-labs/weave/pkg/ai/ollama"
	gai "github.com/tessera-labs/weave/pkg/ai/openai"
	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/export"
	"github.com/tessera-labs/weave/pkg/logger"
	"github.com/tessera-labs/weave/pkg/logger/console"
	"github.com/tessera-labs/weave/pkg/pipeline"
	"github.com/tessera-labs/weave/pkg/store"
	"github.com/tessera-labs/weave/pkg/store/memory"
	graphstorage "github.com/tessera-labs/weave/pkg/store/pgx"
	"github.com/tessera-labs/weave/pkg/validate"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func main() {
	util.LoadEnv()

	var (
		inputDir  = flag.String("dir", "interviews", "directory of *.txt transcripts")
		outputDir = flag.String("out", "export", "directory for codebook.md and result.json")
		projectID = flag.String("project", util.GetEnvString("PROJECT_ID", "default"), "project identifier")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
	})
	logger.Init(consoleLogger)

	interviews, err := loadInterviews(*inputDir)
	if err != nil {
		logger.Fatal("Failed to load transcripts", "dir", *inputDir, "err", err)
	}
	if len(interviews) == 0 {
		logger.Fatal("No *.txt transcripts found", "dir", *inputDir)
	}
	logger.Info("Loaded transcripts", "count", len(interviews), "dir", *inputDir)

	aiClient := newAIClient()
	storage := newStorage(ctx, aiClient)

	p, err := pipeline.New(aiClient, storage, configFromEnv(*projectID))
	if err != nil {
		logger.Fatal("Invalid pipeline configuration", "err", err)
	}

	result, err := p.Run(ctx, interviews)
	if err != nil {
		logger.Error("Run finished with errors", "err", err)
	}
	if result == nil {
		os.Exit(1)
	}

	if err := export.WriteFiles(*outputDir, result); err != nil {
		logger.Fatal("Failed to write export files", "dir", *outputDir, "err", err)
	}

	logger.Info("Export written",
		"dir", *outputDir,
		"codes", result.Summary.CodesFound,
		"entities", result.Summary.EntitiesFound,
		"relationships", result.Summary.RelationshipsFound,
		"failed_interviews", len(result.Summary.Errors))
}

func loadInterviews(dir string) ([]coding.Interview, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var interviews []coding.Interview
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, coding.Interview{
			ID:      strings.TrimSuffix(entry.Name(), ".txt"),
			Content: string(content),
		})
	}
	sort.Slice(interviews, func(i, j int) bool { return interviews[i].ID < interviews[j].ID })
	return interviews, nil
}

func configFromEnv(projectID string) pipeline.Config {
	cfg := pipeline.DefaultConfig(projectID)
	cfg.CodingApproach = util.GetEnvString("CODING_APPROACH", cfg.CodingApproach)
	cfg.ValidationLevel = util.GetEnvString("VALIDATION_LEVEL", cfg.ValidationLevel)
	cfg.MinimumConfidence = util.GetEnvFloat("MIN_CONFIDENCE", cfg.MinimumConfidence)
	cfg.ConsolidationThreshold = util.GetEnvFloat("CONSOLIDATION_THRESHOLD", cfg.ConsolidationThreshold)
	cfg.MinimumCodeFrequency = util.GetEnvInt("MIN_CODE_FREQUENCY", cfg.MinimumCodeFrequency)
	cfg.MaxTaxonomyDepth = util.GetEnvInt("MAX_TAXONOMY_DEPTH", cfg.MaxTaxonomyDepth)
	cfg.MaxConcurrentInterviews = util.GetEnvInt("MAX_PARALLEL_INTERVIEWS", cfg.MaxConcurrentInterviews)
	cfg.UseLLMSpeakerDetection = util.GetEnvBool("LLM_SPEAKER_DETECTION", cfg.UseLLMSpeakerDetection)
	cfg.Thresholds = validate.Thresholds{
		AutoApprove:       util.GetEnvFloat("THRESHOLD_AUTO_APPROVE", cfg.Thresholds.AutoApprove),
		FlagReview:        util.GetEnvFloat("THRESHOLD_FLAG_REVIEW", cfg.Thresholds.FlagReview),
		RequireValidation: util.GetEnvFloat("THRESHOLD_REQUIRE_VALIDATION", cfg.Thresholds.RequireValidation),
	}
	return cfg
}

// newStorage returns a postgres-backed graph store when DATABASE_URL is
// set, otherwise an in-memory store for local experimentation.
func newStorage(ctx context.Context, aiClient ai.CodingAIClient) store.GraphStorage {
	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		logger.Info("DATABASE_URL not set, using in-memory storage")
		return memory.New()
	}

	if err := graphstorage.Migrate(databaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	pgCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Invalid DATABASE_URL", "err", err)
	}
	pgCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}

	return graphstorage.NewCodingDBStorage(graphstorage.NewCodingDBStorageParams{
		Conn:     pgConn,
		AIClient: aiClient,
	})
}

func newAIClient() ai.CodingAIClient {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewCodingOllamaClient(oai.NewCodingOllamaClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewCodingOpenAIClient(gai.NewCodingOpenAIClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),

			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
		})
	}
}
