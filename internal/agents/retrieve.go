package agents

import (
	"context"
	"fmt"

	"github.com/citebase/citebase/internal/models"
	"github.com/citebase/citebase/internal/rag"
)

// RetrievalAgent runs the retrieval chain for one sub-query at a time and
// packages the outcome into the structured sub-query record. Sub-queries
// are independent; callers may dispatch them in any order.
type RetrievalAgent struct {
	chain *rag.Chain
}

func NewRetrievalAgent(chain *rag.Chain) *RetrievalAgent {
	return &RetrievalAgent{chain: chain}
}

func (a *RetrievalAgent) Retrieve(ctx context.Context, subQuery string) (models.SubQueryResult, error) {
	res, err := a.chain.Run(ctx, subQuery)
	if err != nil {
		return models.SubQueryResult{}, fmt.Errorf("retrieve %q: %w", subQuery, err)
	}
	return models.SubQueryResult{
		SubQuery:          subQuery,
		RetrievedContext:  rag.ContextText(res.Chunks),
		Citations:         rag.Citations(res.Chunks),
		SynthesizedAnswer: res.Answer,
	}, nil
}
