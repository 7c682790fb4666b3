package policy

import (
	"github.com/adpilot/adpilot/internal/domain"
	"github.com/adpilot/adpilot/internal/tools"
)

// Standard clarifying questions reused across templates.
var (
	periodQuestion = ClarifyingQuestion{
		Field:  "period",
		Kind:   QuestionPeriod,
		Prompt: "За какой период показать данные? (сегодня, вчера, неделя, месяц)",
	}
	entityQuestion = ClarifyingQuestion{
		Field:  "entity",
		Kind:   QuestionEntity,
		Prompt: "К чему применить действие: кампания, направление или объявление?",
	}
	amountQuestion = ClarifyingQuestion{
		Field:  "amount",
		Kind:   QuestionAmount,
		Prompt: "Укажите новый бюджет: сумму или изменение в процентах.",
	}
	confirmQuestion = ClarifyingQuestion{
		Field:  "confirm",
		Kind:   QuestionConfirmation,
		Prompt: "Подтвердите действие (да/нет).",
	}
)

// Resolve maps (intent, domain, account context, enabled integrations) to a
// Policy. Total over its inputs: unknown intents resolve to a minimal
// context-only policy instead of failing.
func Resolve(intent domain.Intent, d domain.Domain, acct AccountContext, stack domain.Stack) Policy {
	p := template(intent)
	p.Intent = intent

	// An intent backed by a disabled integration answers from cached
	// context instead of attempting a call that will fail remotely.
	if cap, ok := d.RequiredCapability(); ok && !stack.Has(cap) {
		return contextOnly(intent, p.PlaybookID)
	}

	return p
}

func contextOnly(intent domain.Intent, playbook string) Policy {
	if playbook == "" {
		playbook = "general/context-only"
	}
	return Policy{
		PlaybookID:     playbook,
		Intent:         intent,
		AllowedTools:   nil,
		DangerousTools: nil,
		UseContextOnly: true,
	}
}

func template(intent domain.Intent) Policy {
	switch intent {
	case domain.IntentSpendReport:
		return Policy{
			PlaybookID:          "ads/spend-report",
			AllowedTools:        []string{tools.ToolAdsSpendReport, tools.ToolAdsDirectionsOverview},
			ClarifyingRequired:  true,
			ClarifyingQuestions: []ClarifyingQuestion{periodQuestion},
		}
	case domain.IntentDirectionsOverview:
		// Reads a fixed, already-scoped resource: no clarifying needed.
		return Policy{
			PlaybookID:   "ads/directions-overview",
			AllowedTools: []string{tools.ToolAdsDirectionsOverview},
		}
	case domain.IntentROIAnalysis:
		return Policy{
			PlaybookID:          "ads/roi-analysis",
			AllowedTools:        []string{tools.ToolAdsROIReport, tools.ToolAdsSpendReport},
			ClarifyingRequired:  true,
			ClarifyingQuestions: []ClarifyingQuestion{periodQuestion},
		}
	case domain.IntentPauseEntity:
		return Policy{
			PlaybookID:          "ads/pause-entity",
			AllowedTools:        []string{tools.ToolAdsDirectionsOverview, tools.ToolAdsPauseDirection},
			DangerousTools:      []string{tools.ToolAdsPauseDirection},
			ClarifyingRequired:  true,
			ClarifyingQuestions: []ClarifyingQuestion{entityQuestion},
		}
	case domain.IntentResumeEntity:
		return Policy{
			PlaybookID:          "ads/resume-entity",
			AllowedTools:        []string{tools.ToolAdsDirectionsOverview, tools.ToolAdsResumeDirection},
			DangerousTools:      []string{tools.ToolAdsResumeDirection},
			ClarifyingRequired:  true,
			ClarifyingQuestions: []ClarifyingQuestion{entityQuestion},
		}
	case domain.IntentUpdateBudget:
		return Policy{
			PlaybookID:          "ads/update-budget",
			AllowedTools:        []string{tools.ToolAdsDirectionsOverview, tools.ToolAdsUpdateBudget},
			DangerousTools:      []string{tools.ToolAdsUpdateBudget},
			ClarifyingRequired:  true,
			ClarifyingQuestions: []ClarifyingQuestion{entityQuestion, amountQuestion, confirmQuestion},
		}
	case domain.IntentLeadsList:
		// Fixed scoped read; the old behavior of asking a clarifying
		// question here was an accident, not a requirement.
		return Policy{
			PlaybookID:   "crm/leads-list",
			AllowedTools: []string{tools.ToolCRMLeadsList},
		}
	case domain.IntentLeadStatus:
		return Policy{
			PlaybookID:          "crm/lead-status",
			AllowedTools:        []string{tools.ToolCRMLeadsList, tools.ToolCRMLeadStatus},
			DangerousTools:      []string{tools.ToolCRMLeadStatus},
			ClarifyingRequired:  true,
			ClarifyingQuestions: []ClarifyingQuestion{confirmQuestion},
		}
	case domain.IntentTikTokSpendReport:
		return Policy{
			PlaybookID:          "tiktok/spend-report",
			AllowedTools:        []string{tools.ToolTikTokSpendReport},
			ClarifyingRequired:  true,
			ClarifyingQuestions: []ClarifyingQuestion{periodQuestion},
		}
	case domain.IntentCreativeText:
		return Policy{
			PlaybookID:   "creative/generate-text",
			AllowedTools: []string{tools.ToolCreativeGenerateText},
		}
	case domain.IntentGeneralChat:
		return contextOnly(intent, "general/chat")
	default:
		return contextOnly(intent, "")
	}
}
