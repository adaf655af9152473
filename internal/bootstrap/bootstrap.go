// Package bootstrap builds the shared dependencies of the stencil binaries
// from a config.Config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OFFIS-RIT/stencil/internal/config"
	"github.com/OFFIS-RIT/stencil/pkg/ai"
	oai "github.com/OFFIS-RIT/stencil/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/stencil/pkg/ai/openai"
	"github.com/OFFIS-RIT/stencil/pkg/interpret"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
	"github.com/OFFIS-RIT/stencil/pkg/logger/console"
	"github.com/OFFIS-RIT/stencil/pkg/logger/structured"
	"github.com/OFFIS-RIT/stencil/pkg/pipeline"
	"github.com/OFFIS-RIT/stencil/pkg/store"
	"github.com/OFFIS-RIT/stencil/pkg/store/badger"
	"github.com/OFFIS-RIT/stencil/pkg/store/memory"
	"github.com/OFFIS-RIT/stencil/pkg/store/postgres"
)

// InitLogger installs the console logger, or the zap JSON logger when
// LOG_JSON is set.
func InitLogger(cfg *config.Config, service string) {
	instances := []logger.LoggerInstance{
		console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug, Prefix: service}),
	}
	if cfg.LogJSON {
		structuredLogger, err := structured.NewStructuredLogger(structured.StructuredLoggerParams{
			Debug:   cfg.Debug,
			Service: service,
		})
		if err == nil {
			instances = []logger.LoggerInstance{structuredLogger}
		} else {
			logger.Init(instances...)
			logger.Warn("Could not create JSON logger, falling back to console", "err", err)
		}
	}
	logger.Init(instances...)
}

// NewAIClient creates the chat client selected by AI_ADAPTER.
func NewAIClient(cfg config.AI) (ai.GraphAIClient, error) {
	switch cfg.Adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:             cfg.ChatModel,
			BaseURL:               cfg.ChatURL,
			ApiKey:                cfg.ChatKey,
			MaxConcurrentRequests: int64(cfg.ParallelRequests),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil
	case "openai":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel: cfg.ChatModel,
			ChatURL:   cfg.ChatURL,
			ChatKey:   cfg.ChatKey,
		}), nil
	default:
		return nil, fmt.Errorf("unknown ai adapter %q", cfg.Adapter)
	}
}

// Store is an opened store together with the pool backing it, if any.
type Store struct {
	store.Store
	Pool *pgxpool.Pool
}

// OpenStore opens the store selected by STORE_ADAPTER. The postgres store
// is migrated before use.
func OpenStore(ctx context.Context, cfg config.Store) (*Store, error) {
	switch cfg.Adapter {
	case "memory":
		return &Store{Store: memory.New()}, nil
	case "badger":
		st, err := badger.New(badger.DefaultConfig(cfg.BadgerPath))
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return &Store{Store: st}, nil
	case "postgres":
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &Store{Store: postgres.New(pool), Pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown store adapter %q", cfg.Adapter)
	}
}

// NewPipeline wires a pipeline client. aiClient may be nil, which leaves
// the client without interpreter.
func NewPipeline(cfg *config.Config, st store.Store, aiClient ai.GraphAIClient) (*pipeline.Client, error) {
	var interp interpret.Interpreter
	if aiClient != nil {
		opts := interpret.DefaultLLMOptions()
		opts.RequestsPerSecond = cfg.AI.RequestsPerSecond
		opts.MaxPromptTokens = cfg.AI.MaxPromptTokens
		opts.Retries = cfg.AI.Retries
		interp = interpret.NewLLMInterpreter(aiClient, st, opts)
	}
	return pipeline.NewClient(pipeline.NewClientParams{
		Store:            st,
		Interpreter:      interp,
		InterpretOptions: cfg.Interpret,
		HarvestOptions:   cfg.Harvest,
	})
}
