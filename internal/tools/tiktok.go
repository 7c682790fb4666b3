package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

type TikTokSpendReportInput struct {
	Period string `json:"period" jsonschema:"required,description=Reporting period token"`
}

type tiktokSpendReportToolImpl struct {
	client TikTokClient
}

func (t *tiktokSpendReportToolImpl) execute(ctx context.Context, input *TikTokSpendReportInput) (*SpendReport, error) {
	period := strings.TrimSpace(input.Period)
	if period == "" {
		return nil, fmt.Errorf("period is required")
	}
	report, err := t.client.SpendReport(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("tiktok spend report: %w", err)
	}
	return &report, nil
}

// NewTikTokSpendReportTool reports TikTok ad spend over a period.
func NewTikTokSpendReportTool(client TikTokClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("tiktok client is required")
	}
	impl := &tiktokSpendReportToolImpl{client: client}
	return utils.InferTool(ToolTikTokSpendReport, "Get TikTok ad spend for a period", impl.execute)
}
