// Package bootstrap wires infrastructure into the usecases shared by the
// api, worker, and mcp entrypoints.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/adscope/marketing-rag/internal/config"
	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
	"github.com/adscope/marketing-rag/internal/core/usecase"
	"github.com/adscope/marketing-rag/internal/infrastructure/chunking"
	"github.com/adscope/marketing-rag/internal/infrastructure/extractor"
	"github.com/adscope/marketing-rag/internal/infrastructure/index/lexical"
	"github.com/adscope/marketing-rag/internal/infrastructure/index/metadata"
	"github.com/adscope/marketing-rag/internal/infrastructure/llm/ollama"
	natsqueue "github.com/adscope/marketing-rag/internal/infrastructure/queue/nats"
	"github.com/adscope/marketing-rag/internal/infrastructure/repository/postgres"
	"github.com/adscope/marketing-rag/internal/infrastructure/resilience"
	"github.com/adscope/marketing-rag/internal/infrastructure/storage/localfs"
	"github.com/adscope/marketing-rag/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Registry ports.DocumentRegistry
	Ingestor ports.Ingestor
	Searcher ports.Searcher
	Router   ports.StrategyRouter
	Planner  ports.QueryPlanner
	Answerer ports.Answerer
	Health   ports.HealthReporter
	Lexical  ports.LexicalIndex
	Metadata ports.MetadataIndex

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewDocumentRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSIndexSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(ollama.Config{
		BaseURL:         cfg.OllamaURL,
		GenModel:        cfg.OllamaGenModel,
		EmbedModel:      cfg.OllamaEmbedModel,
		Timeout:         time.Duration(cfg.OllamaTimeoutSecs) * time.Second,
		EmbedRatePerSec: cfg.EmbedRatePerSec,
		EmbedBurst:      cfg.EmbedBurst,
	})
	embedder := ollama.NewResilientEmbedder(ollama.NewEmbedder(ollamaClient, cfg.EmbeddingDimension), executor)
	classifier := ollama.NewResilientClassifier(ollama.NewRouteClassifier(ollamaClient), executor)
	generator := ollama.NewResilientGenerator(ollama.NewGenerator(ollamaClient), executor)

	qdrantClient, err := qdrant.NewClient(qdrant.Config{
		BaseURL:   cfg.QdrantURL,
		APIKey:    cfg.QdrantAPIKey,
		Dimension: cfg.EmbeddingDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("init qdrant client: %w", err)
	}
	if err := qdrantClient.EnsureCollections(ctx); err != nil {
		return nil, fmt.Errorf("ensure qdrant collections: %w", err)
	}
	vectors := qdrant.NewResilientStore(qdrantClient, executor)

	lexicalStore, err := lexical.NewStore(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("init lexical store: %w", err)
	}
	lexicalIndex, err := lexical.NewIndex(lexicalStore)
	if err != nil {
		return nil, fmt.Errorf("init lexical index: %w", err)
	}
	metadataStore, err := metadata.NewStore(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("init metadata store: %w", err)
	}
	metadataIndex, err := metadata.NewIndex(metadataStore)
	if err != nil {
		return nil, fmt.Errorf("init metadata index: %w", err)
	}

	vocab := chunking.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		vocab, err = chunking.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return nil, fmt.Errorf("load section vocabulary: %w", err)
		}
	}
	chunker := chunking.New(chunking.Config{
		NarrativeTokens:    cfg.NarrativeTokens,
		ContractTokens:     cfg.ContractTokens,
		OverlapTokens:      cfg.ChunkOverlapTokens,
		TabularRows:        cfg.TabularWindowRows,
		ShortSectionTokens: cfg.ShortSectionTokens,
	}, vocab)

	heuristic := usecase.NewHeuristic(domain.KnownCategories())
	searcher := usecase.NewSearchUseCase(embedder, vectors, lexicalIndex, metadataIndex, usecase.SearchConfig{
		TopK:                cfg.SearchTopK,
		CandidateMultiplier: cfg.CandidateMultiplier,
		RRFK:                cfg.FusionRRFK,
	})
	planner := usecase.NewPlanUseCase(searcher, heuristic, usecase.PlanConfig{
		MaxConcurrency: cfg.PlannerMaxConcurrent,
		MaxSubQueries:  cfg.PlannerMaxSubQueries,
		SubQueryTopK:   cfg.SearchTopK,
	})
	router := usecase.NewRouteUseCase(classifier, heuristic, searcher, planner, metadataIndex, embedder, vectors, usecase.RouteConfig{
		Mode:            cfg.RouterMode,
		ClassifyTimeout: time.Duration(cfg.RouterClassifySecs) * time.Second,
		RecursiveDocs:   cfg.RecursiveDocs,
	})
	answerer := usecase.NewAnswerUseCase(router, generator)
	ingestor := usecase.NewIngestUseCase(registry, storage, extractor.New(), chunker, embedder, vectors, lexicalIndex, metadataIndex, queue)
	health := usecase.NewHealthUseCase(vectors, lexicalIndex, metadataIndex)

	return &App{
		Config: cfg,

		Queue:    queue,
		Registry: registry,
		Ingestor: ingestor,
		Searcher: searcher,
		Router:   router,
		Planner:  planner,
		Answerer: answerer,
		Health:   health,
		Lexical:  lexicalIndex,
		Metadata: metadataIndex,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
