package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	middleware "github.com/citebase/citebase/internal/api/middlewares"
	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/core/ingestion"
	"github.com/citebase/citebase/internal/core/vectorstore"
	"github.com/citebase/citebase/internal/models"
)

const maxUploadBytes = 52 << 20 // 52 MB

type DocumentHandler struct {
	dbclient core.DbClient
	store    vectorstore.Store
	embedder core.EmbeddingProvider
	ingestor *ingestion.Service
}

func NewDocumentHandler(dbclient core.DbClient, store vectorstore.Store, emb core.EmbeddingProvider, ingestor *ingestion.Service) *DocumentHandler {
	return &DocumentHandler{dbclient: dbclient, store: store, embedder: emb, ingestor: ingestor}
}

// Upload ingests a multipart batch (title + one or more "file" parts)
// synchronously and returns the vector-store identifiers of every chunk.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	title := r.FormValue("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	files := make([]ingestion.UploadFile, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read uploaded file")
			return
		}
		files = append(files, ingestion.UploadFile{
			Name:        part.Filename,
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	doc, err := h.ingestor.IngestFiles(r.Context(), userID, title, files)
	if err != nil {
		switch {
		case errors.Is(err, ingestion.ErrNoText),
			errors.Is(err, ingestion.ErrUnsupportedFormat),
			errors.Is(err, ingestion.ErrEmptyDocument):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"document_id": doc.ID,
		"chunk_ids":   doc.ChunkIDs,
		"chunk_count": len(doc.ChunkIDs),
	})
}

// List returns the caller's documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documents, err := h.dbclient.ListDocumentsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "documents": documents})
}

// Get fetches chunk contents by identifier: GET /documents/get?ids=a,b.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}

	chunks, err := h.store.Get(r.Context(), ids)
	if err != nil {
		if errors.Is(err, vectorstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "documents": chunks})
}

type updateRequest struct {
	IDs    []string `json:"ids"`
	Chunks []struct {
		Text     string `json:"text"`
		Source   string `json:"source"`
		Position int    `json:"position"`
	} `json:"chunks"`
}

// Update re-embeds replacement texts and swaps them in under the same
// identifiers.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(req.IDs) == 0 || len(req.IDs) != len(req.Chunks) {
		writeError(w, http.StatusBadRequest, "ids and chunks must be non-empty and equal length")
		return
	}

	texts := make([]string, len(req.Chunks))
	for i, c := range req.Chunks {
		texts[i] = c.Text
	}
	vecs, err := h.embedder.EmbedTexts(r.Context(), texts)
	if err != nil || len(vecs) != len(texts) {
		writeError(w, http.StatusInternalServerError, "embedding failed")
		return
	}

	chunks := make([]vectorstore.Chunk, len(req.Chunks))
	for i, c := range req.Chunks {
		chunks[i] = vectorstore.Chunk{
			Text:      c.Text,
			Embedding: vecs[i],
			Source:    c.Source,
			Position:  c.Position,
		}
	}
	if err := h.store.Update(r.Context(), req.IDs, chunks); err != nil {
		if errors.Is(err, vectorstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// DeleteDocument removes a whole document: its chunks, its archived
// originals, and the record status.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	if err := h.ingestor.RemoveDocument(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Download streams one of a document's archived source files:
// GET /documents/{id}/download?file=name.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("file")
	if name == "" {
		writeError(w, http.StatusBadRequest, "file query parameter is required")
		return
	}

	rc, err := h.ingestor.OpenOriginal(r.Context(), doc, name)
	if err != nil {
		switch {
		case errors.Is(err, ingestion.ErrUnknownFile):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ingestion.ErrNoArchive):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = io.Copy(w, rc)
}

// ownedDocument resolves {id} and enforces that the caller owns it.
func (h *DocumentHandler) ownedDocument(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return nil, false
	}

	doc, err := h.dbclient.GetDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if doc == nil || doc.UserID != userID {
		writeError(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	return doc, true
}

// Delete removes chunks by identifier: DELETE /documents/delete?ids=a,b.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}

	if err := h.store.Delete(r.Context(), ids); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func splitIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
