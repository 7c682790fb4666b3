package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

const defaultLeadsLimit = 20

type LeadsListInput struct {
	Status string `json:"status" jsonschema:"description=Optional status filter, e.g. new or in_progress"`
	Limit  int    `json:"limit" jsonschema:"description=Optional maximum number of leads to return"`
}

type LeadsListOutput struct {
	Leads []Lead `json:"leads"`
}

type leadsListToolImpl struct {
	client CRMClient
}

func (t *leadsListToolImpl) execute(ctx context.Context, input *LeadsListInput) (*LeadsListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLeadsLimit
	}
	leads, err := t.client.LeadsList(ctx, strings.TrimSpace(input.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("crm leads list: %w", err)
	}
	return &LeadsListOutput{Leads: leads}, nil
}

// NewLeadsListTool lists recent CRM leads.
func NewLeadsListTool(client CRMClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("crm client is required")
	}
	impl := &leadsListToolImpl{client: client}
	return utils.InferTool(ToolCRMLeadsList, "List recent CRM leads, optionally filtered by status", impl.execute)
}

type LeadStatusInput struct {
	LeadID string `json:"lead_id" jsonschema:"required,description=The lead to update"`
	Status string `json:"status" jsonschema:"required,description=The new lead status"`
}

type leadStatusToolImpl struct {
	client CRMClient
}

func (t *leadStatusToolImpl) execute(ctx context.Context, input *LeadStatusInput) (*Lead, error) {
	id := strings.TrimSpace(input.LeadID)
	status := strings.TrimSpace(input.Status)
	if id == "" || status == "" {
		return nil, fmt.Errorf("lead_id and status are required")
	}
	lead, err := t.client.UpdateLeadStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("crm lead status: %w", err)
	}
	return &lead, nil
}

// NewLeadStatusTool moves a lead to a new pipeline status. Mutating: gated
// behind approval by policy.
func NewLeadStatusTool(client CRMClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("crm client is required")
	}
	impl := &leadStatusToolImpl{client: client}
	return utils.InferTool(ToolCRMLeadStatus, "Update the pipeline status of a CRM lead", impl.execute)
}
