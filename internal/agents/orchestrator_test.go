package agents

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/core/vectorstore"
	"github.com/citebase/citebase/internal/rag"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(
		AgentSpec{Name: AgentQueryDecomposition, SystemPrompt: "decompose", Model: "dec"},
		AgentSpec{Name: AgentRetrieval, SystemPrompt: "retrieve", Model: "ret"},
		AgentSpec{Name: AgentOrchestrator, SystemPrompt: "aggregate", Model: "agg"},
		AgentSpec{Name: AgentReasoning, SystemPrompt: "reason", Model: "rsn",
			Tools: []string{ToolCanPerformWebSearch, ToolWebSearch}},
	)
	require.NoError(t, err)
	return reg
}

// scriptLLM returns canned responses in order and records the prompts it
// received.
type scriptLLM struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
}

func (s *scriptLLM) next(user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, user)
	if len(s.responses) == 0 {
		return ""
	}
	out := s.responses[0]
	s.responses = s.responses[1:]
	return out
}

func (s *scriptLLM) Generate(_ context.Context, _, user string) (string, error) {
	return s.next(user), nil
}

func (s *scriptLLM) GenerateJSON(_ context.Context, _, user string) (string, error) {
	return s.next(user), nil
}

type constLLM struct{ out string }

func (c *constLLM) Generate(context.Context, string, string) (string, error)     { return c.out, nil }
func (c *constLLM) GenerateJSON(context.Context, string, string) (string, error) { return c.out, nil }

type zeroEmbedder struct{}

func (zeroEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 0}
	}
	return out, nil
}

func TestOrchestratorExecute(t *testing.T) {
	reg := testRegistry(t)

	store := vectorstore.NewMemory()
	_, err := store.Add(context.Background(), []vectorstore.Chunk{
		{Text: "context chunk", Embedding: []float32{0, 0}, Source: "paper.pdf", Position: 0},
	})
	require.NoError(t, err)

	decLLM := &scriptLLM{responses: []string{`{"sub_queries": ["what is X?", "how does X relate to Y?"]}`}}
	aggLLM := &scriptLLM{responses: []string{"the final synthesis"}}
	llmFor := func(model string) core.LLMProvider {
		switch model {
		case "dec":
			return decLLM
		case "agg":
			return aggLLM
		default:
			t.Fatalf("unexpected model %q", model)
			return nil
		}
	}

	chain := rag.New(store, zeroEmbedder{}, &constLLM{out: "sub answer"}, 3, nil)
	orch := NewOrchestrator(reg, llmFor, 2)

	final, err := orch.Execute(context.Background(), "explain X and Y", chain)
	require.NoError(t, err)

	assert.Equal(t, "explain X and Y", final.Question)
	assert.Equal(t, "the final synthesis", final.FinalAnswer)

	// Results arrive in sub-query order.
	require.Len(t, final.Results, 2)
	assert.Equal(t, "what is X?", final.Results[0].SubQuery)
	assert.Equal(t, "how does X relate to Y?", final.Results[1].SubQuery)
	assert.Equal(t, "sub answer", final.Results[0].SynthesizedAnswer)
	assert.Contains(t, final.Results[0].Citations, "paper.pdf, chunk 0")

	// The aggregation prompt carries every sub-answer.
	require.Len(t, aggLLM.prompts, 1)
	assert.Contains(t, aggLLM.prompts[0], "Sub-query 1: what is X?")
	assert.Contains(t, aggLLM.prompts[0], "Sub-query 2: how does X relate to Y?")
}

func TestOrchestratorManySubQueries(t *testing.T) {
	reg := testRegistry(t)

	store := vectorstore.NewMemory()
	_, err := store.Add(context.Background(), []vectorstore.Chunk{
		{Text: "shared context", Embedding: []float32{0, 0}, Source: "doc", Position: 0},
	})
	require.NoError(t, err)

	decLLM := &scriptLLM{responses: []string{`["q1", "q2", "q3", "q4", "q5", "q6"]`}}
	aggLLM := &scriptLLM{responses: []string{"done"}}
	llmFor := func(model string) core.LLMProvider {
		if model == "dec" {
			return decLLM
		}
		return aggLLM
	}

	chain := rag.New(store, zeroEmbedder{}, &constLLM{out: "a"}, 3, nil)

	// More sub-queries than workers exercises the task queue.
	orch := NewOrchestrator(reg, llmFor, 2)
	final, err := orch.Execute(context.Background(), "big question", chain)
	require.NoError(t, err)
	require.Len(t, final.Results, 6)
	for i, r := range final.Results {
		assert.Equal(t, []string{"q1", "q2", "q3", "q4", "q5", "q6"}[i], r.SubQuery)
	}
}

func TestDecomposerFallsBackToQuestion(t *testing.T) {
	d := NewDecomposer(&constLLM{out: "not json at all"}, AgentSpec{SystemPrompt: "x"})

	subs, err := d.Decompose(context.Background(), "original question")
	require.NoError(t, err)
	assert.Equal(t, []string{"original question"}, subs)
}

func TestDecomposerParsesWrappedAndBare(t *testing.T) {
	d := NewDecomposer(&constLLM{out: `{"sub_queries": [" a ", "", "b"]}`}, AgentSpec{})
	subs, err := d.Decompose(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, subs)

	d = NewDecomposer(&constLLM{out: `["x", "y"]`}, AgentSpec{})
	subs, err = d.Decompose(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, subs)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		AgentSpec{Name: "a", SystemPrompt: "p"},
		AgentSpec{Name: "a", SystemPrompt: "p"},
	)
	assert.Error(t, err)
}

func TestRegistryAllowsTool(t *testing.T) {
	reg := testRegistry(t)
	assert.True(t, reg.AllowsTool(AgentReasoning, ToolWebSearch))
	assert.False(t, reg.AllowsTool(AgentRetrieval, ToolWebSearch))
}
