package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

type SpendReportInput struct {
	Period string `json:"period" jsonschema:"required,description=Reporting period token: today, yesterday, last_7_days, last_30_days or last_n_days:<n>"`
}

type spendReportToolImpl struct {
	client AdsClient
}

func (t *spendReportToolImpl) execute(ctx context.Context, input *SpendReportInput) (*SpendReport, error) {
	period := strings.TrimSpace(input.Period)
	if period == "" {
		return nil, fmt.Errorf("period is required")
	}
	report, err := t.client.SpendReport(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("ads spend report: %w", err)
	}
	return &report, nil
}

// NewSpendReportTool reports ad spend per direction over a period.
func NewSpendReportTool(client AdsClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("ads client is required")
	}
	impl := &spendReportToolImpl{client: client}
	return utils.InferTool(ToolAdsSpendReport, "Get ad spend per direction for a period", impl.execute)
}

type DirectionsOverviewInput struct {
	StatusFilter string `json:"status_filter" jsonschema:"description=Optional status filter: active or paused"`
}

type DirectionsOverviewOutput struct {
	Directions []Direction `json:"directions"`
}

type directionsOverviewToolImpl struct {
	client AdsClient
}

func (t *directionsOverviewToolImpl) execute(ctx context.Context, input *DirectionsOverviewInput) (*DirectionsOverviewOutput, error) {
	directions, err := t.client.DirectionsOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("ads directions overview: %w", err)
	}

	filter := strings.ToLower(strings.TrimSpace(input.StatusFilter))
	if filter == "" {
		return &DirectionsOverviewOutput{Directions: directions}, nil
	}

	filtered := make([]Direction, 0, len(directions))
	for _, d := range directions {
		if strings.EqualFold(d.Status, filter) {
			filtered = append(filtered, d)
		}
	}
	return &DirectionsOverviewOutput{Directions: filtered}, nil
}

// NewDirectionsOverviewTool lists advertising directions with status and budget.
func NewDirectionsOverviewTool(client AdsClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("ads client is required")
	}
	impl := &directionsOverviewToolImpl{client: client}
	return utils.InferTool(ToolAdsDirectionsOverview, "List advertising directions with status and daily budget", impl.execute)
}

type ROIReportInput struct {
	Period string `json:"period" jsonschema:"required,description=Reporting period token"`
}

type roiReportToolImpl struct {
	client AdsClient
}

func (t *roiReportToolImpl) execute(ctx context.Context, input *ROIReportInput) (*ROIReport, error) {
	period := strings.TrimSpace(input.Period)
	if period == "" {
		return nil, fmt.Errorf("period is required")
	}
	report, err := t.client.ROIReport(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("ads roi report: %w", err)
	}
	return &report, nil
}

// NewROIReportTool reports revenue against spend per direction.
func NewROIReportTool(client AdsClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("ads client is required")
	}
	impl := &roiReportToolImpl{client: client}
	return utils.InferTool(ToolAdsROIReport, "Get ROI per direction for a period", impl.execute)
}

type PauseDirectionInput struct {
	DirectionID string `json:"direction_id" jsonschema:"required,description=The direction to pause"`
}

type pauseDirectionToolImpl struct {
	client AdsClient
}

func (t *pauseDirectionToolImpl) execute(ctx context.Context, input *PauseDirectionInput) (*Direction, error) {
	id := strings.TrimSpace(input.DirectionID)
	if id == "" {
		return nil, fmt.Errorf("direction_id is required")
	}
	direction, err := t.client.PauseDirection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pause direction: %w", err)
	}
	return &direction, nil
}

// NewPauseDirectionTool stops delivery for a direction. Mutating: gated
// behind approval by policy.
func NewPauseDirectionTool(client AdsClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("ads client is required")
	}
	impl := &pauseDirectionToolImpl{client: client}
	return utils.InferTool(ToolAdsPauseDirection, "Pause an advertising direction", impl.execute)
}

type ResumeDirectionInput struct {
	DirectionID string `json:"direction_id" jsonschema:"required,description=The direction to resume"`
}

type resumeDirectionToolImpl struct {
	client AdsClient
}

func (t *resumeDirectionToolImpl) execute(ctx context.Context, input *ResumeDirectionInput) (*Direction, error) {
	id := strings.TrimSpace(input.DirectionID)
	if id == "" {
		return nil, fmt.Errorf("direction_id is required")
	}
	direction, err := t.client.ResumeDirection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resume direction: %w", err)
	}
	return &direction, nil
}

// NewResumeDirectionTool restarts delivery for a paused direction.
func NewResumeDirectionTool(client AdsClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("ads client is required")
	}
	impl := &resumeDirectionToolImpl{client: client}
	return utils.InferTool(ToolAdsResumeDirection, "Resume a paused advertising direction", impl.execute)
}

type UpdateBudgetInput struct {
	DirectionID string  `json:"direction_id" jsonschema:"required,description=The direction whose budget changes"`
	Percent     int     `json:"percent" jsonschema:"description=Relative change in percent, positive or negative"`
	Relative    bool    `json:"relative" jsonschema:"description=True when the change is relative"`
	Value       float64 `json:"value" jsonschema:"description=Absolute daily budget value"`
	Currency    string  `json:"currency" jsonschema:"description=Currency code for absolute values"`
}

type updateBudgetToolImpl struct {
	client AdsClient
}

func (t *updateBudgetToolImpl) execute(ctx context.Context, input *UpdateBudgetInput) (*Direction, error) {
	id := strings.TrimSpace(input.DirectionID)
	if id == "" {
		return nil, fmt.Errorf("direction_id is required")
	}
	if !input.Relative && input.Value <= 0 {
		return nil, fmt.Errorf("value must be > 0 for absolute budget changes")
	}
	if input.Relative && input.Percent == 0 {
		return nil, fmt.Errorf("percent must be non-zero for relative budget changes")
	}

	direction, err := t.client.UpdateBudget(ctx, BudgetChange{
		DirectionID: id,
		Percent:     input.Percent,
		Relative:    input.Relative,
		Value:       input.Value,
		Currency:    strings.ToUpper(strings.TrimSpace(input.Currency)),
	})
	if err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	return &direction, nil
}

// NewUpdateBudgetTool changes a direction's daily budget. Mutating: gated
// behind approval by policy.
func NewUpdateBudgetTool(client AdsClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("ads client is required")
	}
	impl := &updateBudgetToolImpl{client: client}
	return utils.InferTool(ToolAdsUpdateBudget, "Change the daily budget of a direction", impl.execute)
}
