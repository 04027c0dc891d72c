// Package rag composes the retrieval chain: embed the query, fetch the
// nearest chunks, and ask the model to answer from that context alone.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/core/vectorstore"
)

const answerSystemPrompt = `You are a careful research assistant. Answer strictly from the supplied context. If the context does not contain the answer, say you cannot find it in the provided documents. Cite the source of every claim.`

const answerTemplate = `Answer using only this context:

%s

Question: %s`

// DefaultTopK is the number of chunks stuffed into the prompt when the
// caller does not configure one.
const DefaultTopK = 3

// Result is the outcome of one chain invocation.
type Result struct {
	Answer string
	Chunks []vectorstore.Chunk
}

// Chain retrieves top-K chunks for a query, optionally restricted to a
// fixed identifier set, and synthesizes an answer over them.
type Chain struct {
	store    vectorstore.Store
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	topK     int
	restrict []string
}

// New builds a chain. A non-empty restrict set scopes retrieval to those
// chunk identifiers; chunks outside the set never reach the prompt.
func New(store vectorstore.Store, emb core.EmbeddingProvider, llm core.LLMProvider, topK int, restrict []string) *Chain {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Chain{store: store, embedder: emb, llm: llm, topK: topK, restrict: restrict}
}

// Run embeds the query, retrieves context, and generates an answer.
//
// When nearest-neighbor search over a restricted set returns nothing, the
// chain falls back to fetching the restricted chunks directly (unordered,
// truncated to K) so a known document always supplies some context.
func (c *Chain) Run(ctx context.Context, query string) (*Result, error) {
	vecs, err := c.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errors.New("embedder returned no vectors for query")
	}

	chunks, err := c.store.Search(ctx, vecs[0], c.topK, c.restrict)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(chunks) == 0 && len(c.restrict) > 0 {
		ids := c.restrict
		if len(ids) > c.topK {
			ids = ids[:c.topK]
		}
		chunks, err = c.store.Get(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("fallback fetch: %w", err)
		}
	}

	answer, err := c.llm.Generate(ctx, answerSystemPrompt,
		fmt.Sprintf(answerTemplate, ContextText(chunks), query))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Result{Answer: answer, Chunks: chunks}, nil
}

// ContextText concatenates chunk texts in relevance order.
func ContextText(chunks []vectorstore.Chunk) string {
	var sb strings.Builder
	for i, ch := range chunks {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		sb.WriteString(ch.Text)
	}
	return sb.String()
}

// Citations renders one citation string per chunk from its source
// metadata, deduplicated, preserving order.
func Citations(chunks []vectorstore.Chunk) []string {
	seen := make(map[string]bool, len(chunks))
	var out []string
	for _, ch := range chunks {
		cite := fmt.Sprintf("%s, chunk %d", ch.Source, ch.Position)
		if ch.Source == "" {
			cite = fmt.Sprintf("chunk %s", ch.ID)
		}
		if seen[cite] {
			continue
		}
		seen[cite] = true
		out = append(out, cite)
	}
	return out
}
