package orchestrator

import (
	"github.com/adpilot/adpilot/internal/domain"
	"github.com/adpilot/adpilot/internal/policy"
)

// EnvelopeKind is the closed set of turn outcomes.
type EnvelopeKind string

const (
	// KindClarifying means the turn stopped to ask clarifying questions.
	KindClarifying EnvelopeKind = "clarifying"
	// KindApprovalRequired means a dangerous call is parked behind a plan id.
	KindApprovalRequired EnvelopeKind = "approval_required"
	// KindLimitReached means the tool budget ran out with work left over.
	KindLimitReached EnvelopeKind = "limit_reached"
	// KindResponse is a completed turn with a final answer.
	KindResponse EnvelopeKind = "response"
)

// ToolResult is one executed tool call inside a turn.
type ToolResult struct {
	Tool   string `json:"tool"`
	Args   string `json:"args,omitempty"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Envelope is the structured result of one turn. Every turn produces
// exactly one envelope regardless of how it ended.
type Envelope struct {
	Kind      EnvelopeKind                `json:"kind"`
	Text      string                      `json:"text,omitempty"`
	Questions []policy.ClarifyingQuestion `json:"questions,omitempty"`
	PlanID    string                      `json:"plan_id,omitempty"`
	Results   []ToolResult                `json:"results,omitempty"`
	Domain    domain.Domain               `json:"domain,omitempty"`
	Intent    domain.Intent               `json:"intent,omitempty"`
	Method    domain.RouteMethod          `json:"method,omitempty"`
}
