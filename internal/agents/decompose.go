package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/citebase/citebase/internal/core"
)

// Decomposer is the query-decomposition sub-agent. The decomposition
// itself is model-defined; this code only fixes the output shape. No
// uniqueness or coverage check is enforced.
type Decomposer struct {
	llm          core.LLMProvider
	systemPrompt string
}

func NewDecomposer(llm core.LLMProvider, spec AgentSpec) *Decomposer {
	return &Decomposer{llm: llm, systemPrompt: spec.SystemPrompt}
}

// Decompose asks the model for sub-queries covering the question. When
// the model produces nothing usable, the original question is returned as
// the single sub-query so retrieval can still proceed.
func (d *Decomposer) Decompose(ctx context.Context, question string) ([]string, error) {
	out, err := d.llm.GenerateJSON(ctx, d.systemPrompt, "Question: "+question)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	subs := parseSubQueries(out)
	if len(subs) == 0 {
		return []string{question}, nil
	}
	return subs, nil
}

// parseSubQueries accepts {"sub_queries": [...]} or a bare JSON array.
func parseSubQueries(raw string) []string {
	raw = strings.TrimSpace(raw)

	var wrapped struct {
		SubQueries []string `json:"sub_queries"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && len(wrapped.SubQueries) > 0 {
		return cleanQueries(wrapped.SubQueries)
	}

	var bare []string
	if err := json.Unmarshal([]byte(raw), &bare); err == nil {
		return cleanQueries(bare)
	}
	return nil
}

func cleanQueries(in []string) []string {
	out := make([]string, 0, len(in))
	for _, q := range in {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
