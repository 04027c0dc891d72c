package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/core/vectorstore"
	"github.com/citebase/citebase/internal/models"
)

var (
	// ErrNoText indicates that no file in an upload batch yielded any text.
	ErrNoText = errors.New("no text could be extracted from any file")
	// ErrNoArchive indicates no object storage is configured, so the
	// original files were never kept.
	ErrNoArchive = errors.New("original files are not archived")
	// ErrUnknownFile indicates a filename that is not part of the document.
	ErrUnknownFile = errors.New("file does not belong to this document")
)

// UploadFile is one file of an upload batch.
type UploadFile struct {
	Name         string
	DeclaredType string // file extension hint; derived from Name when empty
	ContentType  string
	Data         []byte
}

// Config tunes the ingestion pipeline.
//
// EmbedBatchSize: how many chunks to embed in one provider request.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
}

// Service runs the synchronous ingestion pipeline: extract, split, embed,
// add to the vector store, persist the document record.
type Service struct {
	db        core.DbClient
	obj       core.ObjectClient
	store     vectorstore.Store
	embedder  core.EmbeddingProvider
	extractor Extractor
	splitter  *Splitter
	cfg       Config
	bucket    string
}

func NewService(db core.DbClient, obj core.ObjectClient, store vectorstore.Store, emb core.EmbeddingProvider, extractor Extractor, cfg Config, bucket string) *Service {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 16
	}
	return &Service{
		db:        db,
		obj:       obj,
		store:     store,
		embedder:  emb,
		extractor: extractor,
		splitter:  NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:       cfg,
		bucket:    bucket,
	}
}

// IngestFiles processes an upload batch for one user. A file that fails to
// parse does not abort files already processed; if no file yields text the
// whole batch fails with ErrNoText. The returned document carries exactly
// one chunk identifier per extracted text unit, in order.
func (s *Service) IngestFiles(ctx context.Context, userID, title string, files []UploadFile) (*models.Document, error) {
	if len(files) == 0 {
		return nil, ErrNoText
	}

	docID := uuid.NewString()

	var (
		units     []TextUnit
		fileNames []string
		lastErr   error
	)
	for _, f := range files {
		declared := f.DeclaredType
		if declared == "" {
			declared = strings.TrimPrefix(filepath.Ext(f.Name), ".")
		}
		text, err := s.extractor.Extract(f.Data, declared)
		if err != nil {
			log.Printf("ingest: extraction failed for %q: %v", f.Name, err)
			lastErr = err
			continue
		}
		fileUnits, err := s.splitter.Split(text, filepath.Base(f.Name))
		if err != nil {
			log.Printf("ingest: split failed for %q: %v", f.Name, err)
			lastErr = err
			continue
		}
		units = append(units, fileUnits...)
		fileNames = append(fileNames, filepath.Base(f.Name))
	}
	if len(units) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoText, lastErr)
		}
		return nil, ErrNoText
	}

	chunkIDs, err := s.embedAndStore(ctx, units)
	if err != nil {
		return nil, err
	}
	if len(chunkIDs) != len(units) {
		return nil, fmt.Errorf("store returned %d ids for %d chunks", len(chunkIDs), len(units))
	}

	storageURL := s.archiveOriginals(ctx, userID, docID, files)

	doc := &models.Document{
		ID:         docID,
		UserID:     userID,
		Title:      title,
		FileNames:  fileNames,
		StorageURL: storageURL,
		ChunkIDs:   chunkIDs,
		Status:     "ready",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		// Roll the chunks back so the store never holds orphans the
		// document record cannot reference.
		_ = s.store.Delete(ctx, chunkIDs)
		return nil, fmt.Errorf("persist document: %w", err)
	}
	return doc, nil
}

// EmbedUnits embeds a slice of text units in provider-sized batches.
func (s *Service) EmbedUnits(ctx context.Context, units []TextUnit) ([][]float32, error) {
	vecs := make([][]float32, 0, len(units))
	for start := 0; start < len(units); start += s.cfg.EmbedBatchSize {
		end := start + s.cfg.EmbedBatchSize
		if end > len(units) {
			end = len(units)
		}
		texts := make([]string, 0, end-start)
		for _, u := range units[start:end] {
			texts = append(texts, u.Text)
		}
		batch, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
		}
		vecs = append(vecs, batch...)
	}
	return vecs, nil
}

func (s *Service) embedAndStore(ctx context.Context, units []TextUnit) ([]string, error) {
	vecs, err := s.EmbedUnits(ctx, units)
	if err != nil {
		return nil, err
	}

	chunks := make([]vectorstore.Chunk, len(units))
	for i, u := range units {
		chunks[i] = vectorstore.Chunk{
			Text:      u.Text,
			Embedding: vecs[i],
			Source:    u.Source,
			Position:  u.Position,
		}
	}
	ids, err := s.store.Add(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("add chunks: %w", err)
	}
	return ids, nil
}

// OpenOriginal streams one of a document's archived source files. The
// caller owns the returned reader.
func (s *Service) OpenOriginal(ctx context.Context, doc *models.Document, name string) (io.ReadCloser, error) {
	if s.obj == nil {
		return nil, ErrNoArchive
	}
	name = filepath.Base(name)
	if !containsName(doc.FileNames, name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, name)
	}
	return s.obj.GetObjectReader(ctx, s.bucket, archiveKey(doc.UserID, doc.ID, name))
}

// RemoveDocument tears a document down: its chunks leave the vector
// store, its archived originals leave object storage, and the record is
// marked deleted. Archive deletion failures are logged and skipped so a
// missing object cannot strand the chunks.
func (s *Service) RemoveDocument(ctx context.Context, doc *models.Document) error {
	if len(doc.ChunkIDs) > 0 {
		if err := s.store.Delete(ctx, doc.ChunkIDs); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
	}
	if s.obj != nil {
		for _, name := range doc.FileNames {
			key := archiveKey(doc.UserID, doc.ID, name)
			if err := s.obj.DeleteFile(ctx, s.bucket, key); err != nil {
				log.Printf("ingest: archive delete failed for %q: %v", key, err)
			}
		}
	}
	if err := s.db.UpdateDocumentStatus(ctx, doc.ID, "deleted"); err != nil {
		return fmt.Errorf("mark document deleted: %w", err)
	}
	return nil
}

func archiveKey(userID, docID, name string) string {
	return fmt.Sprintf("%s/%s/%s", userID, docID, filepath.Base(name))
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// archiveOriginals keeps the raw uploads in object storage. Failures are
// logged, not fatal: the chunks are already in the vector store.
func (s *Service) archiveOriginals(ctx context.Context, userID, docID string, files []UploadFile) string {
	if s.obj == nil {
		return ""
	}
	var firstURL string
	for _, f := range files {
		key := archiveKey(userID, docID, f.Name)
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		url, err := s.obj.UploadFile(ctx, s.bucket, key, f.Data, contentType)
		if err != nil {
			log.Printf("ingest: archive failed for %q: %v", f.Name, err)
			continue
		}
		if firstURL == "" {
			firstURL = url
		}
	}
	return firstURL
}
