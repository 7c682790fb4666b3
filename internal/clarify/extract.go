package clarify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/adpilot/adpilot/internal/policy"
)

var (
	dayCountRe = regexp.MustCompile(`(\d+)\s*(?:дн|день|дня|дней|day|days)`)
	percentRe  = regexp.MustCompile(`(?:на\s+)?(\d+)\s*(?:%|процент)`)
	absoluteRe = regexp.MustCompile(`(\d[\d\s]*)\s*(руб|рубл|₽|rub|долл|\$|usd|евро|€|eur)`)
)

// ExtractFromMessage attempts a type-specific extraction from free text.
// A non-match is (zero, false), never an error: the gate always has a
// definite "still missing" signal.
func ExtractFromMessage(message string, kind policy.QuestionKind) (Value, bool) {
	switch kind {
	case policy.QuestionPeriod:
		if p, ok := extractPeriod(message); ok {
			return Value{Kind: kind, Period: &p}, true
		}
	case policy.QuestionAmount:
		if a, ok := extractAmount(message); ok {
			return Value{Kind: kind, Amount: &a}, true
		}
	case policy.QuestionEntity:
		if e, ok := extractEntity(message); ok {
			return Value{Kind: kind, Entity: e}, true
		}
	case policy.QuestionMetric:
		if m, ok := extractMetric(message); ok {
			return Value{Kind: kind, Metric: m}, true
		}
	case policy.QuestionConfirmation:
		if c, ok := extractConfirmation(message); ok {
			return Value{Kind: kind, Confirmed: &c}, true
		}
	}
	return Value{}, false
}

func extractPeriod(message string) (Period, bool) {
	text := strings.ToLower(message)

	if strings.Contains(text, "сегодня") || strings.Contains(text, "today") {
		return Period{Token: PeriodToday}, true
	}
	if strings.Contains(text, "вчера") || strings.Contains(text, "yesterday") {
		return Period{Token: PeriodYesterday}, true
	}

	if m := dayCountRe.FindStringSubmatch(text); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil && days > 0 {
			switch days {
			case 7:
				return Period{Token: PeriodLast7Days}, true
			case 30:
				return Period{Token: PeriodLast30Days}, true
			default:
				return Period{Token: PeriodLastNDays, Days: days}, true
			}
		}
	}

	if strings.Contains(text, "недел") || strings.Contains(text, "week") {
		return Period{Token: PeriodLast7Days}, true
	}
	if strings.Contains(text, "месяц") || strings.Contains(text, "month") {
		return Period{Token: PeriodLast30Days}, true
	}

	return Period{}, false
}

func extractAmount(message string) (Amount, bool) {
	text := strings.ToLower(message)

	// Relative shape wins over absolute when both could match.
	if m := percentRe.FindStringSubmatch(text); m != nil {
		percent, err := strconv.Atoi(m[1])
		if err == nil && percent > 0 {
			return Amount{Percent: percent, Relative: true}, true
		}
	}

	if m := absoluteRe.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], " ", "")
		value, err := strconv.Atoi(raw)
		if err == nil && value > 0 {
			return Amount{Value: value, Currency: currencyFor(m[2])}, true
		}
	}

	return Amount{}, false
}

func currencyFor(marker string) string {
	switch {
	case strings.HasPrefix(marker, "руб"), marker == "₽", marker == "rub":
		return "RUB"
	case strings.HasPrefix(marker, "долл"), marker == "$", marker == "usd":
		return "USD"
	case strings.HasPrefix(marker, "евро"), marker == "€", marker == "eur":
		return "EUR"
	default:
		return ""
	}
}

func extractEntity(message string) (EntityKind, bool) {
	text := strings.ToLower(message)
	switch {
	case strings.Contains(text, "кампани"), strings.Contains(text, "campaign"):
		return EntityCampaign, true
	case strings.Contains(text, "направлени"), strings.Contains(text, "direction"):
		return EntityDirection, true
	case strings.Contains(text, "объявлени"), strings.Contains(text, " ad "), strings.HasSuffix(text, " ad"):
		return EntityAd, true
	default:
		return "", false
	}
}

func extractMetric(message string) (MetricKind, bool) {
	text := strings.ToLower(message)
	switch {
	case strings.Contains(text, "расход"), strings.Contains(text, "затрат"), strings.Contains(text, "spend"):
		return MetricSpend, true
	case strings.Contains(text, "клик"), strings.Contains(text, "click"):
		return MetricClicks, true
	case strings.Contains(text, "показ"), strings.Contains(text, "impression"):
		return MetricImpressions, true
	case strings.Contains(text, "лид"), strings.Contains(text, "заявк"), strings.Contains(text, "lead"):
		return MetricLeads, true
	case strings.Contains(text, "roi"), strings.Contains(text, "окупаем"), strings.Contains(text, "romi"):
		return MetricROI, true
	case strings.Contains(text, "ctr"), strings.Contains(text, "кликабельн"):
		return MetricCTR, true
	default:
		return "", false
	}
}

func extractConfirmation(message string) (bool, bool) {
	text := strings.ToLower(strings.TrimSpace(message))
	switch {
	case text == "да", strings.Contains(text, "подтвержда"), strings.Contains(text, "давай"),
		text == "ок", text == "ok", text == "yes", strings.HasPrefix(text, "да,"), strings.HasPrefix(text, "да "):
		return true, true
	case text == "нет", strings.Contains(text, "отмен"), strings.Contains(text, "не надо"),
		text == "no", strings.HasPrefix(text, "нет,"), strings.HasPrefix(text, "нет "):
		return false, true
	default:
		return false, false
	}
}
