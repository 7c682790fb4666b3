package domain

// Domain is a capability area used to scope the tools available to a turn.
type Domain string

const (
	DomainAds        Domain = "ads"
	DomainCreative   Domain = "creative"
	DomainCRM        Domain = "crm"
	DomainTikTok     Domain = "tiktok"
	DomainOnboarding Domain = "onboarding"
	DomainGeneral    Domain = "general"
)

// AllDomains returns the closed domain set in a stable order.
func AllDomains() []Domain {
	return []Domain{
		DomainAds,
		DomainCreative,
		DomainCRM,
		DomainTikTok,
		DomainOnboarding,
		DomainGeneral,
	}
}

// Valid reports whether d is a member of the closed domain set.
func (d Domain) Valid() bool {
	switch d {
	case DomainAds, DomainCreative, DomainCRM, DomainTikTok, DomainOnboarding, DomainGeneral:
		return true
	default:
		return false
	}
}

// Capability identifies an enabled integration on the account.
type Capability string

const (
	CapabilityFacebook Capability = "facebook"
	CapabilityTikTok   Capability = "tiktok"
	CapabilityCRM      Capability = "crm"
)

// RequiredCapability returns the integration a domain depends on.
// Domains answerable without any integration return ok=false.
func (d Domain) RequiredCapability() (Capability, bool) {
	switch d {
	case DomainAds, DomainCreative:
		return CapabilityFacebook, true
	case DomainTikTok:
		return CapabilityTikTok, true
	case DomainCRM:
		return CapabilityCRM, true
	default:
		return "", false
	}
}

// Stack is the set of integrations enabled for the calling account.
type Stack map[Capability]bool

// Has reports whether the capability is enabled.
func (s Stack) Has(c Capability) bool {
	return s[c]
}

// RouteMethod tags how a domain was resolved.
type RouteMethod string

const (
	MethodKeyword  RouteMethod = "keyword"
	MethodModel    RouteMethod = "model"
	MethodFallback RouteMethod = "fallback"
)

// TokenUsage carries model token counts for cost accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RouteResult is the outcome of routing one inbound message.
type RouteResult struct {
	Domain Domain      `json:"domain"`
	Method RouteMethod `json:"method"`
	Usage  *TokenUsage `json:"usage,omitempty"`
}

// Intent is a recognized user goal within a domain.
type Intent string

const (
	IntentSpendReport        Intent = "spend_report"
	IntentDirectionsOverview Intent = "directions_overview"
	IntentROIAnalysis        Intent = "roi_analysis"
	IntentPauseEntity        Intent = "pause_entity"
	IntentResumeEntity       Intent = "resume_entity"
	IntentUpdateBudget       Intent = "update_budget"
	IntentLeadsList          Intent = "leads_list"
	IntentLeadStatus         Intent = "lead_status"
	IntentTikTokSpendReport  Intent = "tiktok_spend_report"
	IntentCreativeText       Intent = "creative_text"
	IntentGeneralChat        Intent = "general_chat"
)

// ForIntent returns the domain an intent belongs to. Used when a
// follow-up message continues a prior intent without re-matching it.
func ForIntent(i Intent) Domain {
	switch i {
	case IntentSpendReport, IntentDirectionsOverview, IntentROIAnalysis,
		IntentPauseEntity, IntentResumeEntity, IntentUpdateBudget:
		return DomainAds
	case IntentLeadsList, IntentLeadStatus:
		return DomainCRM
	case IntentTikTokSpendReport:
		return DomainTikTok
	case IntentCreativeText:
		return DomainCreative
	default:
		return DomainGeneral
	}
}

// SupportedIntents returns every intent the policy resolver has a template for.
func SupportedIntents() []Intent {
	return []Intent{
		IntentSpendReport,
		IntentDirectionsOverview,
		IntentROIAnalysis,
		IntentPauseEntity,
		IntentResumeEntity,
		IntentUpdateBudget,
		IntentLeadsList,
		IntentLeadStatus,
		IntentTikTokSpendReport,
		IntentCreativeText,
		IntentGeneralChat,
	}
}
