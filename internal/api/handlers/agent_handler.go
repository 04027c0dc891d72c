package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citebase/citebase/internal/agents"
	middleware "github.com/citebase/citebase/internal/api/middlewares"
	"github.com/citebase/citebase/internal/approval"
	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/core/vectorstore"
	"github.com/citebase/citebase/internal/rag"
)

type AgentHandler struct {
	dbclient     core.DbClient
	store        vectorstore.Store
	embedder     core.EmbeddingProvider
	registry     *agents.Registry
	llmFor       agents.LLMFactory
	orchestrator *agents.Orchestrator
	reasoner     *agents.ReasoningAgent
	topK         int
}

func NewAgentHandler(
	dbclient core.DbClient,
	store vectorstore.Store,
	emb core.EmbeddingProvider,
	registry *agents.Registry,
	llmFor agents.LLMFactory,
	orch *agents.Orchestrator,
	reasoner *agents.ReasoningAgent,
	topK int,
) *AgentHandler {
	return &AgentHandler{
		dbclient:     dbclient,
		store:        store,
		embedder:     emb,
		registry:     registry,
		llmFor:       llmFor,
		orchestrator: orch,
		reasoner:     reasoner,
		topK:         topK,
	}
}

type executeRequest struct {
	UserQuestion string `json:"user_question"`
	DocID        string `json:"doc_id"`
}

// Execute runs the full pipeline against a single document: decompose the
// question, retrieve per sub-query restricted to the document's chunks,
// then aggregate into a final answer.
func (h *AgentHandler) Execute(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.UserQuestion == "" || req.DocID == "" {
		writeError(w, http.StatusBadRequest, "user_question and doc_id are required")
		return
	}

	doc, err := h.dbclient.GetDocumentByID(r.Context(), req.DocID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil || doc.UserID != userID {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	spec, _ := h.registry.Spec(agents.AgentRetrieval)
	chain := rag.New(h.store, h.embedder, h.llmFor(spec.Model), h.topK, doc.ChunkIDs)

	answer, err := h.orchestrator.Execute(r.Context(), req.UserQuestion, chain)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type reasonRequest struct {
	Question string `json:"question"`
	Findings string `json:"findings"`
}

// Reason starts a reasoning run. The response is either a final answer or a
// pending-approval suspension carrying a resume token.
func (h *AgentHandler) Reason(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.reasoner.Start(r.Context(), userID, req.Question, req.Findings)
	if err != nil {
		if errors.Is(err, agents.ErrMaxTurns) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type decideRequest struct {
	Decision string `json:"decision"`
}

// Decide resolves a pending tool approval and resumes the suspended run.
func (h *AgentHandler) Decide(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	result, err := h.reasoner.Resume(r.Context(), token, approval.Decision(req.Decision))
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, approval.ErrAlreadyDecided),
			errors.Is(err, approval.ErrInvalidDecision):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, agents.ErrMaxTurns):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}
