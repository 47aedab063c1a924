package filings

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docketwatch/docketwatch/internal/models"
)

// Assessor computes the risk and business-impact scores for a classified
// filing and enumerates the discrete risks driving them.
type Assessor struct {
	assistant Assistant
	logger    *slog.Logger
}

// NewAssessor builds an assessor. assistant may be the null adapter.
func NewAssessor(assistant Assistant, logger *slog.Logger) *Assessor {
	if assistant == nil {
		assistant = NullAssistant{}
	}
	return &Assessor{assistant: assistant, logger: logger}
}

// Assessment is the assessor's output, folded into the final analysis.
type Assessment struct {
	RiskScore       float64
	BusinessImpact  float64
	Impact          models.ImpactLevel
	Urgency         models.UrgencyLevel
	Risks           []models.RiskFactor
	Stakeholders    []string
	Deadlines       []models.Deadline
	Recommendations []string
	Warnings        []string
}

// Assess scores the filing. The risk score is pure rules; business impact is
// AI-assisted with a rule fallback recorded as a warning.
func (a *Assessor) Assess(ctx context.Context, filing models.Filing, filingType models.FilingType) Assessment {
	content := filing.Title + "\n" + filing.Content
	deadlines := extractDeadlines(content, filing.FiledAt)

	risk := a.riskScore(filingType, content, deadlines)
	risks := identifyRisks(filingType, content)

	var warnings []string
	business, err := a.assistant.ScoreBusinessImpact(ctx, filing, filingType)
	if err != nil {
		business = fallbackBusinessImpact(filingType, risks)
		warnings = append(warnings, "ai impact scoring unavailable, using rule-based fallback")
		a.logger.Debug("business impact fell back to rules", "error", err)
	}

	combined := (risk + business) / 2

	assessment := Assessment{
		RiskScore:       risk,
		BusinessImpact:  business,
		Impact:          models.DeriveImpact(combined),
		Urgency:         deriveUrgency(filingType, content, deadlines),
		Risks:           risks,
		Stakeholders:    routeStakeholders(risks),
		Deadlines:       deadlines,
		Recommendations: recommend(filingType, risks, deadlines),
		Warnings:        warnings,
	}

	return assessment
}

// riskScore starts from the filing type's base risk, multiplies in
// high-impact keywords, adds financial exposure brackets and deadline
// proximity, and clamps to [0, 10].
func (a *Assessor) riskScore(filingType models.FilingType, content string, deadlines []models.Deadline) float64 {
	base := 3.0
	if rule, ok := ruleByType[filingType]; ok {
		base = rule.BaseRisk
	}

	lower := strings.ToLower(content)

	multiplier := 1.0
	for kw, m := range highImpactKeywords {
		if strings.Contains(lower, kw) {
			multiplier *= m
		}
	}
	if multiplier > 1.6 {
		multiplier = 1.6
	}

	score := base*multiplier + exposureModifier(content) + deadlineModifier(deadlines)

	return math.Max(0.0, math.Min(10.0, score))
}

var dollarRe = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)\s*(billion|million|[bm])?\b`)

// exposureModifier brackets the largest dollar amount found in the content.
func exposureModifier(content string) float64 {
	lower := strings.ToLower(content)

	var largest float64
	for _, m := range dollarRe.FindAllStringSubmatch(lower, -1) {
		raw := strings.ReplaceAll(m[1], ",", "")
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		switch m[2] {
		case "billion", "b":
			amount *= 1e9
		case "million", "m":
			amount *= 1e6
		}
		if amount > largest {
			largest = amount
		}
	}

	switch {
	case largest >= 100e6:
		return 2.0
	case largest >= 10e6:
		return 1.5
	case largest >= 1e6:
		return 1.0
	case largest >= 100e3:
		return 0.5
	default:
		return 0.0
	}
}

// deadlineModifier raises risk as the nearest deadline approaches.
func deadlineModifier(deadlines []models.Deadline) float64 {
	nearest := nearestDeadline(deadlines)
	if nearest == nil {
		return 0.0
	}

	until := time.Until(nearest.Due)
	switch {
	case until <= 48*time.Hour:
		return 2.0
	case until <= 7*24*time.Hour:
		return 1.0
	case until <= 30*24*time.Hour:
		return 0.5
	default:
		return 0.0
	}
}

func nearestDeadline(deadlines []models.Deadline) *models.Deadline {
	var nearest *models.Deadline
	for i := range deadlines {
		if deadlines[i].Due.Before(time.Now()) {
			continue
		}
		if nearest == nil || deadlines[i].Due.Before(nearest.Due) {
			nearest = &deadlines[i]
		}
	}
	return nearest
}

var withinDaysRe = regexp.MustCompile(`(?i)within\s+(\d+)\s+(?:calendar\s+|business\s+)?days`)

// extractDeadlines pulls response windows out of the content. Only the
// "within N days" form is recognized; explicit hearing dates arrive through
// the docket, not free text.
func extractDeadlines(content string, filedAt time.Time) []models.Deadline {
	if filedAt.IsZero() {
		filedAt = time.Now()
	}

	var deadlines []models.Deadline
	for _, m := range withinDaysRe.FindAllStringSubmatch(content, -1) {
		days, err := strconv.Atoi(m[1])
		if err != nil || days <= 0 || days > 365 {
			continue
		}
		deadlines = append(deadlines, models.Deadline{
			Description: fmt.Sprintf("response due within %d days of filing", days),
			Due:         filedAt.AddDate(0, 0, days),
		})
	}
	return deadlines
}

// deriveUrgency combines the type's intrinsic urgency, content urgency
// keywords, and the nearest deadline. Independent of the impact level.
func deriveUrgency(filingType models.FilingType, content string, deadlines []models.Deadline) models.UrgencyLevel {
	urgency := models.UrgencyRoutine
	if rule, ok := ruleByType[filingType]; ok {
		urgency = rule.Urgency
	}

	if urgency != models.UrgencyEmergency {
		lower := strings.ToLower(content)
		hits := 0
		for _, kw := range urgencyKeywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits >= 2 {
			urgency = models.UrgencyEmergency
		} else if hits == 1 && urgency == models.UrgencyRoutine {
			urgency = models.UrgencyUrgent
		}
	}

	if nearest := nearestDeadline(deadlines); nearest != nil && urgency != models.UrgencyEmergency {
		until := time.Until(nearest.Due)
		if until <= 72*time.Hour {
			urgency = models.UrgencyEmergency
		} else if until <= 7*24*time.Hour {
			urgency = models.UrgencyUrgent
		}
	}

	return urgency
}

// identifyRisks enumerates discrete risk factors by category. Severity and
// likelihood are on 0-1 scales.
func identifyRisks(filingType models.FilingType, content string) []models.RiskFactor {
	lower := strings.ToLower(content)
	var risks []models.RiskFactor

	if dollarRe.MatchString(lower) || filingType == models.FilingTypeJudgment || filingType == models.FilingTypeSanctions {
		risks = append(risks, models.RiskFactor{
			Category:    models.RiskFinancial,
			Description: "monetary exposure from claimed damages or awards",
			Severity:    0.8,
			Likelihood:  0.6,
		})
	}

	if filingType == models.FilingTypeSubpoena || containsAny(lower, "regulator", "sec ", "department of justice", "attorney general", "compliance") {
		risks = append(risks, models.RiskFactor{
			Category:    models.RiskRegulatory,
			Description: "government or regulatory involvement",
			Severity:    0.7,
			Likelihood:  0.5,
		})
	}

	if filingType == models.FilingTypeTRO || filingType == models.FilingTypeInjunction || containsAny(lower, "cease", "enjoin", "restrain") {
		risks = append(risks, models.RiskFactor{
			Category:    models.RiskOperational,
			Description: "court-ordered restriction on business operations",
			Severity:    0.9,
			Likelihood:  0.7,
		})
	}

	if containsAny(lower, "class action", "fraud", "press", "public", "misconduct") {
		risks = append(risks, models.RiskFactor{
			Category:    models.RiskReputational,
			Description: "public allegations with media attention potential",
			Severity:    0.6,
			Likelihood:  0.5,
		})
	}

	return risks
}

// routeStakeholders maps risk categories to the roles that own them. Legal
// always receives the filing.
func routeStakeholders(risks []models.RiskFactor) []string {
	roles := []string{"legal"}
	seen := map[string]bool{"legal": true}

	add := func(role string) {
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}

	for _, r := range risks {
		switch r.Category {
		case models.RiskFinancial:
			add("finance")
		case models.RiskRegulatory:
			add("compliance")
		case models.RiskOperational:
			add("operations")
		case models.RiskReputational:
			add("communications")
		}
	}

	return roles
}

// fallbackBusinessImpact scores business impact from rules alone when the
// AI path is unavailable.
func fallbackBusinessImpact(filingType models.FilingType, risks []models.RiskFactor) float64 {
	base := 3.0
	if rule, ok := ruleByType[filingType]; ok {
		base = rule.BaseRisk * 0.8
	}

	for _, r := range risks {
		base += r.Severity * r.Likelihood
	}

	return math.Max(0.0, math.Min(10.0, base))
}

func recommend(filingType models.FilingType, risks []models.RiskFactor, deadlines []models.Deadline) []string {
	var recs []string

	switch filingType {
	case models.FilingTypeTRO, models.FilingTypeInjunction:
		recs = append(recs, "engage outside counsel immediately for emergency response")
	case models.FilingTypeSanctions:
		recs = append(recs, "review conduct at issue and prepare opposition")
	case models.FilingTypeSubpoena:
		recs = append(recs, "issue litigation hold and begin responsive document collection")
	case models.FilingTypeComplaint:
		recs = append(recs, "calendar the answer deadline and assess removal options")
	}

	for _, r := range risks {
		switch r.Category {
		case models.RiskFinancial:
			recs = append(recs, "quantify exposure and notify finance for reserve planning")
		case models.RiskReputational:
			recs = append(recs, "prepare communications guidance before media inquiries")
		}
	}

	if nearest := nearestDeadline(deadlines); nearest != nil {
		recs = append(recs, fmt.Sprintf("deadline approaching: %s (%s)",
			nearest.Description, nearest.Due.Format("2006-01-02")))
	}

	return recs
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
