package router

import (
	"strings"

	"github.com/adpilot/adpilot/internal/domain"
)

type intentRule struct {
	intent   domain.Intent
	patterns []string
}

// Intent rules are scoped per domain and evaluated in order: the first
// matching rule wins, so more specific goals come before reports.
var intentRules = map[domain.Domain][]intentRule{
	domain.DomainAds: {
		{domain.IntentUpdateBudget, []string{"бюджет", "увеличь", "уменьши", "поставь", "budget"}},
		{domain.IntentPauseEntity, []string{"останови", "паузу", "выключи", "отключи", "pause"}},
		{domain.IntentResumeEntity, []string{"запусти", "включи", "возобнови", "resume"}},
		{domain.IntentROIAnalysis, []string{"roi", "romi", "окупаем"}},
		{domain.IntentDirectionsOverview, []string{"направлени", "обзор", "что крутится", "overview"}},
		{domain.IntentSpendReport, []string{"расход", "затрат", "потрат", "spend", "сколько ушло"}},
	},
	domain.DomainTikTok: {
		{domain.IntentTikTokSpendReport, []string{"расход", "затрат", "потрат", "spend"}},
	},
	domain.DomainCRM: {
		{domain.IntentLeadStatus, []string{"статус", "перевед", "закрой сделку"}},
		{domain.IntentLeadsList, []string{"лид", "заявк", "сделк", "покажи"}},
	},
	domain.DomainCreative: {
		{domain.IntentCreativeText, []string{"текст", "креатив", "оффер", "баннер"}},
	},
}

// DetectIntent recognizes the user goal within an already-routed domain.
// Unrecognized goals resolve to general_chat, which the policy resolver
// maps to a context-only policy.
func DetectIntent(message string, d domain.Domain) domain.Intent {
	text := strings.ToLower(message)
	for _, rule := range intentRules[d] {
		for _, pattern := range rule.patterns {
			if strings.Contains(text, pattern) {
				return rule.intent
			}
		}
	}
	return domain.IntentGeneralChat
}
