package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/citebase/citebase/internal/agents"
	"github.com/citebase/citebase/internal/api/handlers"
	appMiddleware "github.com/citebase/citebase/internal/api/middlewares"
	"github.com/citebase/citebase/internal/config"
	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/core/ingestion"
	"github.com/citebase/citebase/internal/core/vectorstore"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	db core.DbClient,
	store vectorstore.Store,
	emb core.EmbeddingProvider,
	ingestor *ingestion.Service,
	registry *agents.Registry,
	llmFor agents.LLMFactory,
	orch *agents.Orchestrator,
	reasoner *agents.ReasoningAgent,
) *Server {
	secret := []byte(cfg.JWTSecret)
	tokenTTL := time.Duration(cfg.TokenExpireMins) * time.Minute

	authHandler := handlers.NewAuthHandler(db, secret, tokenTTL)
	docHandler := handlers.NewDocumentHandler(db, store, emb, ingestor)
	agentHandler := handlers.NewAgentHandler(db, store, emb, registry, llmFor, orch, reasoner, cfg.TopK)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// public endpoints
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/auth/register", authHandler.Register)
	r.Post("/auth/token", authHandler.Token)

	// protected endpoints
	r.Group(func(protected chi.Router) {
		protected.Use(appMiddleware.JWT(secret, db))

		protected.Get("/auth/verify_token", authHandler.VerifyToken)

		protected.Post("/documents/upload", docHandler.Upload)
		protected.Get("/documents", docHandler.List)
		protected.Get("/documents/get", docHandler.Get)
		protected.Put("/documents/update", docHandler.Update)
		protected.Delete("/documents/delete", docHandler.Delete)
		protected.Delete("/documents/{id}", docHandler.DeleteDocument)
		protected.Get("/documents/{id}/download", docHandler.Download)

		protected.Post("/agent/execute", agentHandler.Execute)
		protected.Post("/agent/reason", agentHandler.Reason)
		protected.Post("/agent/approvals/{token}", agentHandler.Decide)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
