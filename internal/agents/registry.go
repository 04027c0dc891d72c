package agents

import (
	"fmt"

	"github.com/citebase/citebase/internal/config"
)

// Canonical agent names used as registry keys.
const (
	AgentQueryDecomposition = "query_decomposition"
	AgentRetrieval          = "retrieval"
	AgentOrchestrator       = "orchestrator"
	AgentReasoning          = "reasoning"
)

// Tool names the reasoning agent may invoke.
const (
	ToolCanPerformWebSearch = "can_perform_web_search"
	ToolWebSearch           = "web_search"
)

// AgentSpec is one dispatch-table entry: the instructions, permitted
// tools, and model identifier for a named agent.
type AgentSpec struct {
	Name         string
	Description  string
	SystemPrompt string
	Model        string
	Tools        []string
}

// Registry maps agent names to their specs.
type Registry struct {
	specs map[string]AgentSpec
}

func NewRegistry(specs ...AgentSpec) (*Registry, error) {
	reg := &Registry{specs: make(map[string]AgentSpec, len(specs))}
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("agent spec with empty name")
		}
		if s.SystemPrompt == "" {
			return nil, fmt.Errorf("agent %s: empty system prompt", s.Name)
		}
		if _, dup := reg.specs[s.Name]; dup {
			return nil, fmt.Errorf("agent %s registered twice", s.Name)
		}
		reg.specs[s.Name] = s
	}
	return reg, nil
}

func (r *Registry) Spec(name string) (AgentSpec, bool) {
	if r == nil {
		return AgentSpec{}, false
	}
	s, ok := r.specs[name]
	return s, ok
}

// AllowsTool reports whether the named agent's spec permits the tool.
func (r *Registry) AllowsTool(agent, tool string) bool {
	s, ok := r.Spec(agent)
	if !ok {
		return false
	}
	for _, t := range s.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// DefaultSpecs builds the standard dispatch table from config.
func DefaultSpecs(cfg *config.Config) []AgentSpec {
	return []AgentSpec{
		{
			Name:         AgentQueryDecomposition,
			Description:  "Analyzes research questions and generates non-overlapping sub-queries for vector retrieval.",
			SystemPrompt: decompositionSystemPrompt,
			Model:        cfg.DecomposeModel,
		},
		{
			Name:         AgentRetrieval,
			Description:  "Executes retrieval of document context per sub-query, preserving citations for aggregation.",
			SystemPrompt: retrievalSystemPrompt,
			Model:        cfg.RetrieveModel,
		},
		{
			Name:         AgentOrchestrator,
			Description:  "Delegates to the decomposition and retrieval agents and aggregates cited sub-answers.",
			SystemPrompt: orchestratorSystemPrompt,
			Model:        cfg.GenModel,
		},
		{
			Name:         AgentReasoning,
			Description:  "Reasons over retrieved findings and may call web search, gated by human approval.",
			SystemPrompt: reasoningSystemPrompt,
			Model:        cfg.GenModel,
			Tools:        []string{ToolCanPerformWebSearch, ToolWebSearch},
		},
	}
}
