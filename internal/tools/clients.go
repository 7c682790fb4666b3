package tools

import (
	"context"
	"errors"
)

// ErrAuthExpired marks an integration failure that no retry inside the
// current turn can fix. The orchestrator ends the turn early on it.
var ErrAuthExpired = errors.New("integration auth expired")

// IsFatal reports whether a tool error must abort the current turn.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// Direction is one advertising direction (a managed campaign group).
type Direction struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	DailyBudget float64 `json:"daily_budget"`
	Currency    string  `json:"currency"`
}

// SpendRow is one line of a spend report.
type SpendRow struct {
	DirectionID string  `json:"direction_id"`
	Direction   string  `json:"direction"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Leads       int64   `json:"leads"`
}

// SpendReport aggregates spend rows over a period.
type SpendReport struct {
	Period   string     `json:"period"`
	Currency string     `json:"currency"`
	Total    float64    `json:"total"`
	Rows     []SpendRow `json:"rows"`
}

// ROIRow is one line of a ROI report.
type ROIRow struct {
	DirectionID string  `json:"direction_id"`
	Direction   string  `json:"direction"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	ROI         float64 `json:"roi"`
}

// ROIReport aggregates revenue against spend over a period.
type ROIReport struct {
	Period string   `json:"period"`
	Rows   []ROIRow `json:"rows"`
}

// BudgetChange describes a budget update to apply to a direction.
type BudgetChange struct {
	DirectionID string  `json:"direction_id"`
	Percent     int     `json:"percent,omitempty"`
	Relative    bool    `json:"relative"`
	Value       float64 `json:"value,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// Lead is one CRM lead record.
type Lead struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Source    string `json:"source,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AdsClient is the Facebook Ads integration contract consumed by ad tools.
// Implementations live outside this core.
type AdsClient interface {
	SpendReport(ctx context.Context, period string) (SpendReport, error)
	DirectionsOverview(ctx context.Context) ([]Direction, error)
	ROIReport(ctx context.Context, period string) (ROIReport, error)
	PauseDirection(ctx context.Context, directionID string) (Direction, error)
	ResumeDirection(ctx context.Context, directionID string) (Direction, error)
	UpdateBudget(ctx context.Context, change BudgetChange) (Direction, error)
}

// TikTokClient is the TikTok Ads integration contract.
type TikTokClient interface {
	SpendReport(ctx context.Context, period string) (SpendReport, error)
}

// CRMClient is the CRM integration contract.
type CRMClient interface {
	LeadsList(ctx context.Context, status string, limit int) ([]Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID, status string) (Lead, error)
}

// CreativeClient generates ad copy drafts.
type CreativeClient interface {
	GenerateText(ctx context.Context, brief string) (string, error)
}
