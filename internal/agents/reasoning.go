package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citebase/citebase/internal/approval"
	"github.com/citebase/citebase/internal/core"
	"github.com/citebase/citebase/internal/tools/websearch"
)

// Turn statuses returned by the reasoning agent.
const (
	TurnDone            = "done"
	TurnPendingApproval = "pending_approval"
)

// ErrMaxTurns indicates the tool-call loop did not converge.
var ErrMaxTurns = errors.New("reasoning agent exceeded max turns")

const defaultMaxTurns = 8

// Message is one entry of the agent's conversational state. The full
// slice is snapshotted into the approval record at suspension so a resume
// continues from exactly this point.
type Message struct {
	Role    string `json:"role"` // user | assistant | observation
	Content string `json:"content"`
}

// TurnResult is the outcome of one Start or Resume call: either a final
// answer, or a suspension awaiting a human decision.
type TurnResult struct {
	Status      string          `json:"status"`
	Answer      string          `json:"answer,omitempty"`
	ResumeToken string          `json:"resume_token,omitempty"`
	Tool        string          `json:"tool,omitempty"`
	Args        json.RawMessage `json:"args,omitempty"`
}

// ReasoningAgent answers questions over prior findings and may invoke a
// web-search tool. Every web_search call is intercepted by the approval
// gate: execution suspends until an explicit approve or reject decision.
// The capability check bypasses the gate.
type ReasoningAgent struct {
	llm       core.LLMProvider
	search    websearch.Searcher
	approvals approval.Store
	registry  *Registry
	maxTurns  int
}

func NewReasoningAgent(llm core.LLMProvider, search websearch.Searcher, approvals approval.Store, registry *Registry) *ReasoningAgent {
	return &ReasoningAgent{
		llm:       llm,
		search:    search,
		approvals: approvals,
		registry:  registry,
		maxTurns:  defaultMaxTurns,
	}
}

// Start begins a reasoning run for a question, optionally seeded with
// prior findings text.
func (a *ReasoningAgent) Start(ctx context.Context, userID, question, findings string) (*TurnResult, error) {
	content := question
	if findings != "" {
		content = fmt.Sprintf("Findings from the documents:\n%s\n\nQuestion: %s", findings, question)
	}
	conversation := []Message{{Role: "user", Content: content}}
	return a.loop(ctx, userID, conversation)
}

// Resume continues a suspended run. Approval executes the suspended tool
// exactly once with its original arguments; rejection resumes with a
// rejection marker and no tool call.
func (a *ReasoningAgent) Resume(ctx context.Context, token string, decision approval.Decision) (*TurnResult, error) {
	rec, err := a.approvals.Decide(ctx, token, decision)
	if err != nil {
		return nil, err
	}

	var conversation []Message
	if err := json.Unmarshal(rec.Snapshot, &conversation); err != nil {
		return nil, fmt.Errorf("restore conversation: %w", err)
	}

	var observation string
	if rec.Status == approval.StatusApproved {
		observation = a.runWebSearch(ctx, rec.Args)
	} else {
		observation = "web_search was rejected by the user; no results are available. Answer from what you already have."
	}
	conversation = append(conversation, Message{Role: "observation", Content: observation})

	return a.loop(ctx, rec.UserID, conversation)
}

// loop drives the model until it produces a final answer or requests a
// gated tool.
func (a *ReasoningAgent) loop(ctx context.Context, userID string, conversation []Message) (*TurnResult, error) {
	spec, ok := a.registry.Spec(AgentReasoning)
	if !ok {
		return nil, fmt.Errorf("agent %s not registered", AgentReasoning)
	}

	for turn := 0; turn < a.maxTurns; turn++ {
		out, err := a.llm.GenerateJSON(ctx, spec.SystemPrompt, renderConversation(conversation))
		if err != nil {
			return nil, fmt.Errorf("reasoning turn: %w", err)
		}
		conversation = append(conversation, Message{Role: "assistant", Content: out})

		var action struct {
			Action string          `json:"action"`
			Answer string          `json:"answer"`
			Tool   string          `json:"tool"`
			Args   json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &action); err != nil {
			conversation = append(conversation, Message{
				Role:    "observation",
				Content: "response was not valid JSON; reply with a single JSON object as instructed",
			})
			continue
		}

		switch {
		case action.Action == "final":
			return &TurnResult{Status: TurnDone, Answer: action.Answer}, nil

		case action.Action == "tool" && action.Tool == ToolCanPerformWebSearch:
			// Capability check is explicitly exempt from the gate.
			conversation = append(conversation, Message{
				Role:    "observation",
				Content: fmt.Sprintf(`{"can_perform_web_search": %t}`, a.search != nil),
			})

		case action.Action == "tool" && action.Tool == ToolWebSearch:
			if !a.registry.AllowsTool(AgentReasoning, ToolWebSearch) {
				conversation = append(conversation, Message{Role: "observation", Content: "web_search is not permitted"})
				continue
			}
			return a.suspend(ctx, userID, action.Args, conversation)

		default:
			conversation = append(conversation, Message{
				Role:    "observation",
				Content: fmt.Sprintf("unknown tool or action %q", action.Tool),
			})
		}
	}
	return nil, ErrMaxTurns
}

// suspend records the pending tool call and conversation snapshot, then
// hands the resumption token back to the caller. The tool does not run.
func (a *ReasoningAgent) suspend(ctx context.Context, userID string, args json.RawMessage, conversation []Message) (*TurnResult, error) {
	snapshot, err := json.Marshal(conversation)
	if err != nil {
		return nil, fmt.Errorf("snapshot conversation: %w", err)
	}

	token := uuid.NewString()
	pending := &approval.PendingDecision{
		Token:     token,
		UserID:    userID,
		Tool:      ToolWebSearch,
		Args:      args,
		Snapshot:  snapshot,
		Status:    approval.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := a.approvals.Create(ctx, pending); err != nil {
		return nil, fmt.Errorf("persist pending decision: %w", err)
	}

	return &TurnResult{
		Status:      TurnPendingApproval,
		ResumeToken: token,
		Tool:        ToolWebSearch,
		Args:        args,
	}, nil
}

// runWebSearch executes the approved search with its original arguments
// and renders the results as an observation.
func (a *ReasoningAgent) runWebSearch(ctx context.Context, rawArgs json.RawMessage) string {
	if a.search == nil {
		return "web search is not configured"
	}
	var args struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil || args.Query == "" {
		return "web_search arguments were invalid; no results"
	}

	results, err := a.search.Search(ctx, args.Query, args.MaxResults)
	if err != nil {
		return fmt.Sprintf("web_search failed: %v", err)
	}
	rendered, err := json.Marshal(results)
	if err != nil {
		return fmt.Sprintf("web_search failed: %v", err)
	}
	return string(rendered)
}

func renderConversation(conversation []Message) string {
	var sb strings.Builder
	for _, m := range conversation {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
	}
	return sb.String()
}
