package agents

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/models"
	"github.com/citebase/citebase/internal/rag"
)

// LLMFactory resolves a model identifier to a provider; the dispatch
// table assigns each agent its own model.
type LLMFactory func(model string) core.LLMProvider

// Orchestrator is the top-level controller: it delegates to the
// decomposition and retrieval sub-agents and aggregates their structured
// outputs. Sequencing is decompose, retrieve per sub-query over a bounded
// worker pool, then one aggregation pass.
type Orchestrator struct {
	registry *Registry
	llmFor   LLMFactory
	workers  int
}

func NewOrchestrator(registry *Registry, llmFor LLMFactory, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{registry: registry, llmFor: llmFor, workers: workers}
}

// Execute answers a user question against the supplied retrieval chain.
// Results are returned in sub-query order regardless of completion order.
func (o *Orchestrator) Execute(ctx context.Context, question string, chain *rag.Chain) (*models.FinalAnswer, error) {
	decSpec, ok := o.registry.Spec(AgentQueryDecomposition)
	if !ok {
		return nil, fmt.Errorf("agent %s not registered", AgentQueryDecomposition)
	}
	decomposer := NewDecomposer(o.llmFor(decSpec.Model), decSpec)

	subQueries, err := decomposer.Decompose(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := o.retrieveAll(ctx, subQueries, chain)
	if err != nil {
		return nil, err
	}

	final, err := o.aggregate(ctx, question, results)
	if err != nil {
		return nil, err
	}

	return &models.FinalAnswer{
		Question:    question,
		Results:     results,
		FinalAnswer: final,
	}, nil
}

// retrieveAll dispatches one retrieval task per sub-query over a bounded
// worker pool and collects results indexed by sub-query position.
func (o *Orchestrator) retrieveAll(ctx context.Context, subQueries []string, chain *rag.Chain) ([]models.SubQueryResult, error) {
	agent := NewRetrievalAgent(chain)
	results := make([]models.SubQueryResult, len(subQueries))

	tasks := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	workers := o.workers
	if workers > len(subQueries) {
		workers = len(subQueries)
	}
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for idx := range tasks {
				res, err := agent.Retrieve(gctx, subQueries[idx])
				if err != nil {
					return err
				}
				results[idx] = res
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(tasks)
		for i := range subQueries {
			select {
			case tasks <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// aggregate runs the final synthesis pass over the collected sub-answers.
func (o *Orchestrator) aggregate(ctx context.Context, question string, results []models.SubQueryResult) (string, error) {
	spec, ok := o.registry.Spec(AgentOrchestrator)
	if !ok {
		return "", fmt.Errorf("agent %s not registered", AgentOrchestrator)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	for i, r := range results {
		fmt.Fprintf(&sb, "Sub-query %d: %s\n", i+1, r.SubQuery)
		fmt.Fprintf(&sb, "Answer: %s\n", r.SynthesizedAnswer)
		if len(r.Citations) > 0 {
			fmt.Fprintf(&sb, "Citations: %s\n", strings.Join(r.Citations, "; "))
		}
		sb.WriteString("\n")
	}

	answer, err := o.llmFor(spec.Model).Generate(ctx, spec.SystemPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("aggregate: %w", err)
	}
	return answer, nil
}
