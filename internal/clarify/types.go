package clarify

import (
	"fmt"

	"github.com/adpilot/adpilot/internal/policy"
)

// PeriodToken is the closed set of reporting period tokens.
type PeriodToken string

const (
	PeriodToday      PeriodToken = "today"
	PeriodYesterday  PeriodToken = "yesterday"
	PeriodLast7Days  PeriodToken = "last_7_days"
	PeriodLast30Days PeriodToken = "last_30_days"
	PeriodLastNDays  PeriodToken = "last_n_days"
)

// Period is an extracted reporting window. Days is set only for
// PeriodLastNDays.
type Period struct {
	Token PeriodToken `json:"token"`
	Days  int         `json:"days,omitempty"`
}

// String returns the canonical period token, with the day count inlined
// for the open-ended form.
func (p Period) String() string {
	if p.Token == PeriodLastNDays {
		return fmt.Sprintf("%s:%d", PeriodLastNDays, p.Days)
	}
	return string(p.Token)
}

// Amount is an extracted budget amount: either relative (percent) or
// absolute with a currency.
type Amount struct {
	Percent  int    `json:"percent,omitempty"`
	Relative bool   `json:"relative"`
	Value    int    `json:"value,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// EntityKind is the closed set of ad entities an action can target.
type EntityKind string

const (
	EntityCampaign  EntityKind = "campaign"
	EntityDirection EntityKind = "direction"
	EntityAd        EntityKind = "ad"
)

// MetricKind is the closed set of report metrics.
type MetricKind string

const (
	MetricSpend       MetricKind = "spend"
	MetricClicks      MetricKind = "clicks"
	MetricImpressions MetricKind = "impressions"
	MetricLeads       MetricKind = "leads"
	MetricROI         MetricKind = "roi"
	MetricCTR         MetricKind = "ctr"
)

// Value is one extracted clarifying answer, tagged by question kind.
// Exactly one of the payload fields is meaningful for a given kind.
type Value struct {
	Kind      policy.QuestionKind `json:"kind"`
	Period    *Period             `json:"period,omitempty"`
	Amount    *Amount             `json:"amount,omitempty"`
	Entity    EntityKind          `json:"entity,omitempty"`
	Metric    MetricKind          `json:"metric,omitempty"`
	Confirmed *bool               `json:"confirmed,omitempty"`
}

// String returns a human-readable form of the amount.
func (a Amount) String() string {
	if a.Relative {
		return fmt.Sprintf("%+d%%", a.Percent)
	}
	if a.Currency != "" {
		return fmt.Sprintf("%d %s", a.Value, a.Currency)
	}
	return fmt.Sprintf("%d", a.Value)
}

// Describe renders the answered value for prompts and logs.
func (v Value) Describe() string {
	switch v.Kind {
	case policy.QuestionPeriod:
		if v.Period != nil {
			return v.Period.String()
		}
	case policy.QuestionAmount:
		if v.Amount != nil {
			return v.Amount.String()
		}
	case policy.QuestionEntity:
		return string(v.Entity)
	case policy.QuestionMetric:
		return string(v.Metric)
	case policy.QuestionConfirmation:
		if v.Confirmed != nil && *v.Confirmed {
			return "confirmed"
		}
		return "declined"
	}
	return ""
}

// Input is one evaluation request for the clarifying gate.
type Input struct {
	Message  string
	Policy   policy.Policy
	Existing map[string]Value
}

// State is the gate result for one turn. A fresh State is produced on
// every call; the prior answer map is never mutated in place.
type State struct {
	Answers          map[string]Value
	Complete         bool
	NeedsClarifying  bool
	PendingQuestions []policy.ClarifyingQuestion
}
