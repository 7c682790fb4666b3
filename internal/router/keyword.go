package router

import (
	"context"
	"strings"

	"github.com/adpilot/adpilot/internal/domain"
)

// keywordRule binds one domain to its trigger patterns. A domain matches
// when any of its patterns is a substring of the lowered message.
type keywordRule struct {
	domain   domain.Domain
	patterns []string
}

// Rule order is the tie-break order for logging only; routing itself
// refuses to pick between multiple matching domains (see Classify).
var keywordRules = []keywordRule{
	{domain.DomainTikTok, []string{"тикток", "tiktok", "тик-ток", "тик ток"}},
	{domain.DomainAds, []string{"расход", "бюджет", "кампани", "объявлени", "таргет", "roi", "окупаем", "ставк", "показ", "клик"}},
	{domain.DomainCreative, []string{"креатив", "текст объявления", "баннер", "оффер"}},
	{domain.DomainCRM, []string{"лид", "заявк", "сделк", "crm", "воронк", "клиент"}},
	{domain.DomainOnboarding, []string{"подключ", "интеграци", "онбординг", "настрой доступ"}},
}

// KeywordClassifier is the zero-latency routing phase.
type KeywordClassifier struct {
	rules []keywordRule
}

// NewKeywordClassifier builds the keyword phase over the built-in rule set.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{rules: keywordRules}
}

// Classify returns a keyword-tagged result when exactly one domain matches.
// Zero matches fall through; more than one match is cross-domain ambiguity
// and also falls through — a wrong domain silently restricts available
// tools, so precision wins over recall here.
func (c *KeywordClassifier) Classify(_ context.Context, message string) (domain.RouteResult, bool, error) {
	text := strings.ToLower(message)

	var matched []domain.Domain
	for _, rule := range c.rules {
		for _, pattern := range rule.patterns {
			if strings.Contains(text, pattern) {
				matched = append(matched, rule.domain)
				break
			}
		}
	}

	if len(matched) != 1 {
		return domain.RouteResult{}, false, nil
	}
	return domain.RouteResult{Domain: matched[0], Method: domain.MethodKeyword}, true, nil
}
