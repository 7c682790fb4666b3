package tools

// Tool names shared between the registry, the policy resolver and the
// orchestrator. Mutating tools are gated behind approval by policy.
const (
	ToolAdsSpendReport        = "ads_spend_report"
	ToolAdsDirectionsOverview = "ads_directions_overview"
	ToolAdsROIReport          = "ads_roi_report"
	ToolAdsPauseDirection     = "ads_pause_direction"
	ToolAdsResumeDirection    = "ads_resume_direction"
	ToolAdsUpdateBudget       = "ads_update_budget"
	ToolCRMLeadsList          = "crm_leads_list"
	ToolCRMLeadStatus         = "crm_lead_status"
	ToolTikTokSpendReport     = "tiktok_spend_report"
	ToolCreativeGenerateText  = "creative_generate_text"
)
