package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/citebase/citebase/internal/agents"
	"github.com/citebase/citebase/internal/approval"
	"github.com/citebase/citebase/internal/config"
	"github.com/citebase/citebase/internal/core"
	db "github.com/citebase/citebase/internal/core/database"
	"github.com/citebase/citebase/internal/core/ingestion"
	"github.com/citebase/citebase/internal/core/llm"
	objectclient "github.com/citebase/citebase/internal/core/object-client"
	"github.com/citebase/citebase/internal/core/vectorstore"
	"github.com/citebase/citebase/internal/tools/websearch"
)

// App owns every long-lived client and hands them to the HTTP server.
// Nothing here is a package-level global; each handle is constructed once
// and injected downward.
type App struct {
	DBClient    *db.DatabaseClient
	VectorStore *vectorstore.Client
	Server      *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	vecClient, err := vectorstore.NewClient(appCtx, cfg.VectorDBURL)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the vector store, %w", err)
	}
	log.Println("Vector store initialized and ready.")

	var objClient core.ObjectClient
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		objClient, err = objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		log.Println("Object client initialized and ready.")
	} else {
		log.Println("AWS credentials not set; original files will not be archived.")
	}

	geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	// Every configured model gets its client at startup; request handling
	// only ever looks one up.
	clients := map[string]core.LLMProvider{}
	for _, model := range []string{cfg.GenModel, cfg.DecomposeModel, cfg.RetrieveModel} {
		if _, done := clients[model]; done {
			continue
		}
		c, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize llm for model %s, %w", model, err)
		}
		clients[model] = c
	}
	llmFor := llmFactory(clients, clients[cfg.GenModel])

	extractor := ingestion.NewDocconvExtractor(false)
	ingCfg := ingestion.Config{
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		EmbedBatchSize: 16,
	}
	ingestor := ingestion.NewService(dbClient, objClient, vecClient, geminiEmbedder, extractor, ingCfg, cfg.BucketName)

	registry, err := agents.NewRegistry(agents.DefaultSpecs(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("couldn't build the agent registry, %w", err)
	}
	orchestrator := agents.NewOrchestrator(registry, llmFor, cfg.RetrievalWorkers)

	var searcher websearch.Searcher
	if cfg.SearchAPIKey != "" {
		searcher, err = websearch.NewSearcher(websearch.Provider(cfg.SearchProvider), cfg.SearchAPIKey)
		if err != nil {
			return nil, err
		}
	} else {
		log.Println("Search API key not set; web search tool is disabled.")
	}

	approvals := approval.NewPgStore(dbClient.DB())
	reasoningSpec, _ := registry.Spec(agents.AgentReasoning)
	reasoner := agents.NewReasoningAgent(llmFor(reasoningSpec.Model), searcher, approvals, registry)

	server := NewServer(cfg, dbClient, vecClient, geminiEmbedder, ingestor, registry, llmFor, orchestrator, reasoner)

	return &App{DBClient: dbClient, VectorStore: vecClient, Server: server}, nil
}

// llmFactory resolves model names against the clients constructed at
// startup. Unknown names fall back to the default client rather than
// constructing anything at request time.
func llmFactory(clients map[string]core.LLMProvider, fallback core.LLMProvider) agents.LLMFactory {
	return func(model string) core.LLMProvider {
		if c, ok := clients[model]; ok {
			return c
		}
		return fallback
	}
}

func (a *App) Close() {
	if a.VectorStore != nil {
		_ = a.VectorStore.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
