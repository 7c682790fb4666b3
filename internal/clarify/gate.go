package clarify

import "github.com/adpilot/adpilot/internal/policy"

// Evaluate checks the policy's question list against the current message and
// the accumulated answer map. Answers, once given, are sticky: a value
// extracted this turn never overrides an existing answer. The gate is
// idempotent and recomputes a fresh state from scratch every turn, so a
// multi-turn conversation can answer one question per turn without drift.
func Evaluate(in Input) State {
	answers := make(map[string]Value, len(in.Existing)+len(in.Policy.ClarifyingQuestions))
	for field, value := range in.Existing {
		answers[field] = value
	}

	for _, q := range in.Policy.ClarifyingQuestions {
		if _, ok := answers[q.Field]; ok {
			continue
		}
		if value, ok := ExtractFromMessage(in.Message, q.Kind); ok {
			answers[q.Field] = value
		}
	}

	var pending []policy.ClarifyingQuestion
	for _, q := range in.Policy.ClarifyingQuestions {
		if _, ok := answers[q.Field]; !ok {
			pending = append(pending, q)
		}
	}

	complete := len(pending) == 0
	return State{
		Answers:          answers,
		Complete:         complete,
		NeedsClarifying:  in.Policy.ClarifyingRequired && !complete,
		PendingQuestions: pending,
	}
}
