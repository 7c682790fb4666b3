package policy

import "github.com/adpilot/adpilot/internal/domain"

// QuestionKind is the extraction type of a clarifying question.
type QuestionKind string

const (
	QuestionPeriod       QuestionKind = "period"
	QuestionEntity       QuestionKind = "entity"
	QuestionAmount       QuestionKind = "amount"
	QuestionMetric       QuestionKind = "metric"
	QuestionConfirmation QuestionKind = "confirmation"
)

// ClarifyingQuestion is one required answer slot of a policy.
// Field doubles as the key into the answer map.
type ClarifyingQuestion struct {
	Field  string       `json:"field"`
	Kind   QuestionKind `json:"kind"`
	Prompt string       `json:"prompt"`
}

// AccountContext is the caller account scope a policy is resolved for.
type AccountContext struct {
	AccountID string
	Currency  string
}

// Policy describes what may happen during one turn: which tools are
// callable, which of them are dangerous, and what must be clarified first.
// Recomputed on every message, never persisted.
type Policy struct {
	PlaybookID          string
	Intent              domain.Intent
	AllowedTools        []string
	DangerousTools      []string
	ClarifyingRequired  bool
	ClarifyingQuestions []ClarifyingQuestion
	UseContextOnly      bool
}

// Allows reports whether the tool is in the policy allow-list.
func (p Policy) Allows(tool string) bool {
	for _, name := range p.AllowedTools {
		if name == tool {
			return true
		}
	}
	return false
}

// Dangerous reports whether the tool mutates external state and
// must pass the approval gate before execution.
func (p Policy) Dangerous(tool string) bool {
	for _, name := range p.DangerousTools {
		if name == tool {
			return true
		}
	}
	return false
}
