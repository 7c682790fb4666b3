package approval

import "time"

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusExpired  RequestStatus = "expired"
	StatusExecuted RequestStatus = "executed"
)

// Request is a persisted approval record for one blocked plan. It survives
// restarts so that a pending action is not lost between "ask" and "approve".
type Request struct {
	PlanID       string        `json:"plan_id"`
	ToolName     string        `json:"tool_name"`
	ParamsJSON   string        `json:"params_json"`
	Reason       string        `json:"reason,omitempty"`
	DecisionNote string        `json:"decision_note,omitempty"`
	Status       RequestStatus `json:"status"`
	Channel      string        `json:"channel,omitempty"`
	ChatID       string        `json:"chat_id,omitempty"`
	RequestedAt  time.Time     `json:"requested_at"`
	ExpiresAt    time.Time     `json:"expires_at,omitempty"`
	DecidedAt    time.Time     `json:"decided_at,omitempty"`
	DecidedBy    string        `json:"decided_by,omitempty"`
	ExecutedAt   time.Time     `json:"executed_at,omitempty"`
}

// CreateInput contains fields needed to create an approval request.
type CreateInput struct {
	ToolName   string
	ParamsJSON string
	Reason     string
	Channel    string
	ChatID     string
	TTL        time.Duration
}

// DecisionInput contains fields needed to approve/reject a request.
type DecisionInput struct {
	DecidedBy string
	Note      string
}

// Query filters approval requests when listing.
type Query struct {
	PlanID   string
	Status   RequestStatus
	ToolName string
}
