package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents a user-uploaded document. ChunkIDs is the ordered
// list of vector-store identifiers returned at ingestion time; the chunk
// content itself lives only in the vector store.
type Document struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Title      string    `db:"title" json:"title"`
	FileNames  []string  `db:"file_names" json:"file_names"`
	StorageURL string    `db:"storage_url" json:"storage_url,omitempty"` // S3 URL of the raw upload
	ChunkIDs   []string  `db:"chunk_ids" json:"chunk_ids"`
	Status     string    `db:"status" json:"status"` // uploaded | ready | failed | deleted
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SubQueryResult is the structured record produced by the retrieval
// sub-agent for one sub-query.
type SubQueryResult struct {
	SubQuery          string   `json:"sub_query"`
	RetrievedContext  string   `json:"retrieved_context"`
	Citations         []string `json:"citations"`
	SynthesizedAnswer string   `json:"synthesized_answer"`
}

// FinalAnswer aggregates the retrieval sub-agent outputs for one
// user question.
type FinalAnswer struct {
	Question    string           `json:"question"`
	Results     []SubQueryResult `json:"results"`
	FinalAnswer string           `json:"final_answer"`
}
