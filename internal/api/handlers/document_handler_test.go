package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/citebase/citebase/internal/api/middlewares"
	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/core/ingestion"
	"github.com/citebase/citebase/internal/core/vectorstore"
)

type unitEmbedder struct{}

func (unitEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

// fakeObj is a map-backed object store for handler tests.
type fakeObj struct {
	objects map[string][]byte
}

func newFakeObj() *fakeObj {
	return &fakeObj{objects: map[string][]byte{}}
}

func (o *fakeObj) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	o.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return "mem://" + bucket + "/" + key, nil
}

func (o *fakeObj) DeleteFile(_ context.Context, bucket, key string) error {
	delete(o.objects, bucket+"/"+key)
	return nil
}

func (o *fakeObj) GetObjectReader(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := o.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newDocHandler(db *memDb, obj core.ObjectClient) (*DocumentHandler, *vectorstore.Memory) {
	store := vectorstore.NewMemory()
	svc := ingestion.NewService(db, obj, store, unitEmbedder{}, ingestion.NewDocconvExtractor(false), ingestion.Config{
		ChunkSize:    200,
		ChunkOverlap: 20,
	}, "bucket")
	return NewDocumentHandler(db, store, unitEmbedder{}, svc), store
}

// docRouter mounts the id-parameterized routes so chi.URLParam resolves.
func docRouter(h *DocumentHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Delete("/documents/{id}", h.DeleteDocument)
	r.Get("/documents/{id}/download", h.Download)
	return r
}

func authed(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, userID+"@example.com"))
}

func multipartUpload(t *testing.T, title string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", title))
	for name, content := range files {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadReturnsChunkIDs(t *testing.T) {
	db := newMemDb()
	h, store := newDocHandler(db, nil)

	body, contentType := multipartUpload(t, "my notes", map[string]string{
		"notes.txt": "some meaningful text to be chunked and embedded",
	})
	req := authed(httptest.NewRequest(http.MethodPost, "/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		DocumentID string   `json:"document_id"`
		ChunkIDs   []string `json:"chunk_ids"`
		ChunkCount int      `json:"chunk_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.DocumentID)
	require.NotEmpty(t, resp.ChunkIDs)
	assert.Equal(t, len(resp.ChunkIDs), resp.ChunkCount)

	// The ids resolve in the vector store and the record was persisted.
	chunks, err := store.Get(context.Background(), resp.ChunkIDs)
	require.NoError(t, err)
	assert.Len(t, chunks, resp.ChunkCount)

	doc, err := db.GetDocumentByID(context.Background(), resp.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "user-1", doc.UserID)
}

func TestUploadRequiresTitle(t *testing.T) {
	h, _ := newDocHandler(newMemDb(), nil)

	body, contentType := multipartUpload(t, "", map[string]string{"a.txt": "text"})
	req := authed(httptest.NewRequest(http.MethodPost, "/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadUnsupportedFormat(t *testing.T) {
	h, _ := newDocHandler(newMemDb(), nil)

	body, contentType := multipartUpload(t, "bad", map[string]string{"image.png": "\x89PNG"})
	req := authed(httptest.NewRequest(http.MethodPost, "/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "error", env.Status)
	assert.NotEmpty(t, env.Message)
}

func TestUploadEmptyFileIsError(t *testing.T) {
	h, _ := newDocHandler(newMemDb(), nil)

	for _, content := range []string{"", "  \n\t \n"} {
		body, contentType := multipartUpload(t, "empty", map[string]string{"blank.txt": content})
		req := authed(httptest.NewRequest(http.MethodPost, "/documents/upload", body), "user-1")
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.Upload(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, "content %q", content)
		var env struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, "error", env.Status)
		assert.NotEmpty(t, env.Message)
	}
}

func TestDeleteDocumentRemovesChunksAndArchive(t *testing.T) {
	db := newMemDb()
	obj := newFakeObj()
	h, store := newDocHandler(db, obj)

	body, contentType := multipartUpload(t, "doomed", map[string]string{
		"a.txt": "text that will be deleted",
	})
	req := authed(httptest.NewRequest(http.MethodPost, "/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var up struct {
		DocumentID string   `json:"document_id"`
		ChunkIDs   []string `json:"chunk_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	require.NotEmpty(t, obj.objects)

	req = authed(httptest.NewRequest(http.MethodDelete, "/documents/"+up.DocumentID, nil), "user-1")
	rec = httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := store.Get(context.Background(), up.ChunkIDs)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
	assert.Empty(t, obj.objects)

	doc, err := db.GetDocumentByID(context.Background(), up.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "deleted", doc.Status)
}

func TestDeleteDocumentForeignOwnerIs404(t *testing.T) {
	db := newMemDb()
	h, _ := newDocHandler(db, nil)

	body, contentType := multipartUpload(t, "mine", map[string]string{"a.txt": "text"})
	req := authed(httptest.NewRequest(http.MethodPost, "/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var up struct {
		DocumentID string `json:"document_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))

	req = authed(httptest.NewRequest(http.MethodDelete, "/documents/"+up.DocumentID, nil), "user-2")
	rec = httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadStreamsOriginal(t *testing.T) {
	db := newMemDb()
	obj := newFakeObj()
	h, _ := newDocHandler(db, obj)

	body, contentType := multipartUpload(t, "archived", map[string]string{
		"a.txt": "original raw bytes",
	})
	req := authed(httptest.NewRequest(http.MethodPost, "/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var up struct {
		DocumentID string `json:"document_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))

	req = authed(httptest.NewRequest(http.MethodGet, "/documents/"+up.DocumentID+"/download?file=a.txt", nil), "user-1")
	rec = httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "original raw bytes", rec.Body.String())
}

func TestDownloadUnknownFileIs404(t *testing.T) {
	db := newMemDb()
	obj := newFakeObj()
	h, _ := newDocHandler(db, obj)

	body, contentType := multipartUpload(t, "archived", map[string]string{"a.txt": "bytes"})
	req := authed(httptest.NewRequest(http.MethodPost, "/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var up struct {
		DocumentID string `json:"document_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))

	req = authed(httptest.NewRequest(http.MethodGet, "/documents/"+up.DocumentID+"/download?file=other.txt", nil), "user-1")
	rec = httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetChunksByID(t *testing.T) {
	h, store := newDocHandler(newMemDb(), nil)
	ids, err := store.Add(context.Background(), []vectorstore.Chunk{
		{Text: "alpha", Embedding: []float32{0, 1}},
		{Text: "beta", Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)

	req := authed(httptest.NewRequest(http.MethodGet, "/documents/get?ids="+strings.Join(ids, ","), nil), "user-1")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alpha")
	assert.Contains(t, rec.Body.String(), "beta")
}

func TestGetUnknownChunkIs404(t *testing.T) {
	h, _ := newDocHandler(newMemDb(), nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/documents/get?ids=missing", nil), "user-1")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateReembedsChunk(t *testing.T) {
	h, store := newDocHandler(newMemDb(), nil)
	ids, err := store.Add(context.Background(), []vectorstore.Chunk{
		{Text: "old text", Embedding: []float32{9, 9}, Source: "doc.txt", Position: 0},
	})
	require.NoError(t, err)

	payload := map[string]interface{}{
		"ids": ids,
		"chunks": []map[string]interface{}{
			{"text": "new text", "source": "doc.txt", "position": 0},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	req := authed(httptest.NewRequest(http.MethodPut, "/documents/update", bytes.NewReader(raw)), "user-1")
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := store.Get(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, "new text", got[0].Text)
}

func TestUpdateLengthMismatch(t *testing.T) {
	h, _ := newDocHandler(newMemDb(), nil)

	raw := []byte(`{"ids": ["a", "b"], "chunks": [{"text": "only one"}]}`)
	req := authed(httptest.NewRequest(http.MethodPut, "/documents/update", bytes.NewReader(raw)), "user-1")
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteChunks(t *testing.T) {
	h, store := newDocHandler(newMemDb(), nil)
	ids, err := store.Add(context.Background(), []vectorstore.Chunk{
		{Text: "gone", Embedding: []float32{0}},
	})
	require.NoError(t, err)

	req := authed(httptest.NewRequest(http.MethodDelete, "/documents/delete?ids="+ids[0], nil), "user-1")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	_, err = store.Get(context.Background(), ids)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}
