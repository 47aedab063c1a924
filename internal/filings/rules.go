package filings

import (
	"regexp"

	"github.com/docketwatch/docketwatch/internal/models"
)

// contentPattern is a weighted content-matching rule.
type contentPattern struct {
	re     *regexp.Regexp
	weight float64
}

// filingRule declares everything the pipeline knows about one filing type:
// how to recognize it and how dangerous it is. Classifier and assessor both
// read this table, so recognition and risk scoring cannot drift apart.
type filingRule struct {
	Type             models.FilingType
	FilenamePatterns []*regexp.Regexp
	ContentPatterns  []contentPattern
	Keywords         []string
	BaseRisk         float64 // 0-10
	Urgency          models.UrgencyLevel
}

var filingRules = []filingRule{
	{
		Type: models.FilingTypeTRO,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\btro\b`),
			regexp.MustCompile(`(?i)temporary[\s_-]*restraining`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)temporary restraining order`), 1.0},
			{regexp.MustCompile(`(?i)ex parte`), 0.6},
			{regexp.MustCompile(`(?i)irreparable harm`), 0.7},
		},
		Keywords: []string{"restraining", "immediate", "irreparable"},
		BaseRisk: 9.0,
		Urgency:  models.UrgencyEmergency,
	},
	{
		Type: models.FilingTypeInjunction,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)injunction`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)preliminary injunction`), 1.0},
			{regexp.MustCompile(`(?i)injunctive relief`), 0.8},
		},
		Keywords: []string{"injunction", "enjoin"},
		BaseRisk: 8.0,
		Urgency:  models.UrgencyEmergency,
	},
	{
		Type: models.FilingTypeSanctions,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)sanction`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)motion for sanctions`), 1.0},
			{regexp.MustCompile(`(?i)rule 11`), 0.8},
		},
		Keywords: []string{"sanctions", "contempt"},
		BaseRisk: 7.5,
		Urgency:  models.UrgencyUrgent,
	},
	{
		Type: models.FilingTypeSummaryJudgment,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)summary[\s_-]*judgment`),
			regexp.MustCompile(`(?i)\bmsj\b`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)motion for summary judgment`), 1.0},
			{regexp.MustCompile(`(?i)no genuine (issue|dispute) of material fact`), 0.8},
		},
		Keywords: []string{"summary judgment"},
		BaseRisk: 7.0,
		Urgency:  models.UrgencyUrgent,
	},
	{
		Type: models.FilingTypeMotionToDismiss,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)motion[\s_-]*to[\s_-]*dismiss`),
			regexp.MustCompile(`(?i)\bmtd\b`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)motion to dismiss`), 1.0},
			{regexp.MustCompile(`(?i)12\(b\)\(6\)`), 0.9},
			{regexp.MustCompile(`(?i)failure to state a claim`), 0.7},
		},
		Keywords: []string{"dismiss", "dismissal"},
		BaseRisk: 6.0,
		Urgency:  models.UrgencyUrgent,
	},
	{
		Type: models.FilingTypeComplaint,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)complaint`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)(amended |class action )?complaint`), 0.8},
			{regexp.MustCompile(`(?i)plaintiff.{0,80}alleges`), 0.6},
			{regexp.MustCompile(`(?i)causes? of action`), 0.5},
		},
		Keywords: []string{"complaint", "plaintiff", "defendant"},
		BaseRisk: 6.5,
		Urgency:  models.UrgencyUrgent,
	},
	{
		Type: models.FilingTypeBankruptcy,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)bankruptcy|chapter[\s_-]*(7|11|13)`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)voluntary petition`), 0.8},
			{regexp.MustCompile(`(?i)chapter (7|11|13)`), 0.9},
			{regexp.MustCompile(`(?i)automatic stay`), 0.7},
		},
		Keywords: []string{"bankruptcy", "creditor", "debtor"},
		BaseRisk: 7.0,
		Urgency:  models.UrgencyUrgent,
	},
	{
		Type: models.FilingTypeSubpoena,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)subpoena`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)subpoena (duces tecum|ad testificandum)?`), 0.9},
			{regexp.MustCompile(`(?i)commanded to (produce|appear)`), 0.7},
		},
		Keywords: []string{"subpoena", "testify", "produce"},
		BaseRisk: 5.5,
		Urgency:  models.UrgencyUrgent,
	},
	{
		Type: models.FilingTypeDiscovery,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)discovery|interrogator|rfp|request[\s_-]*for[\s_-]*production`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)interrogatories`), 0.8},
			{regexp.MustCompile(`(?i)request for production`), 0.8},
			{regexp.MustCompile(`(?i)request for admission`), 0.7},
		},
		Keywords: []string{"discovery", "interrogatory", "deposition"},
		BaseRisk: 4.0,
		Urgency:  models.UrgencyRoutine,
	},
	{
		Type: models.FilingTypeJudgment,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)judgment|verdict`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)(final |default )?judgment (is |be )?entered`), 0.9},
			{regexp.MustCompile(`(?i)jury verdict`), 0.8},
		},
		Keywords: []string{"judgment", "awarded", "damages"},
		BaseRisk: 8.0,
		Urgency:  models.UrgencyUrgent,
	},
	{
		Type: models.FilingTypeOrder,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\border\b`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)it is (hereby |so )?ordered`), 0.9},
			{regexp.MustCompile(`(?i)the court (hereby )?(grants|denies|orders)`), 0.7},
		},
		Keywords: []string{"order", "ordered", "court"},
		BaseRisk: 5.0,
		Urgency:  models.UrgencyUrgent,
	},
	{
		Type: models.FilingTypeAppeal,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)appeal|appellate`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)notice of appeal`), 1.0},
			{regexp.MustCompile(`(?i)court of appeals`), 0.6},
		},
		Keywords: []string{"appeal", "appellant"},
		BaseRisk: 6.0,
		Urgency:  models.UrgencyRoutine,
	},
	{
		Type: models.FilingTypeSettlement,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)settlement|stipulation`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)settlement agreement`), 0.9},
			{regexp.MustCompile(`(?i)stipulation of dismissal`), 0.8},
		},
		Keywords: []string{"settlement", "settle", "stipulate"},
		BaseRisk: 3.0,
		Urgency:  models.UrgencyRoutine,
	},
	{
		Type: models.FilingTypeNotice,
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)notice`),
		},
		ContentPatterns: []contentPattern{
			{regexp.MustCompile(`(?i)notice of (hearing|appearance|filing)`), 0.7},
		},
		Keywords: []string{"notice", "hereby notified"},
		BaseRisk: 2.0,
		Urgency:  models.UrgencyRoutine,
	},
}

// ruleByType indexes the table for the assessor.
var ruleByType = func() map[models.FilingType]*filingRule {
	m := make(map[models.FilingType]*filingRule, len(filingRules))
	for i := range filingRules {
		m[filingRules[i].Type] = &filingRules[i]
	}
	return m
}()

// highImpactKeywords multiply the risk score when present in content. These
// are the phrases that reliably precede expensive outcomes.
var highImpactKeywords = map[string]float64{
	"irreparable harm":  1.25,
	"willful":           1.15,
	"fraud":             1.20,
	"class action":      1.30,
	"punitive damages":  1.25,
	"criminal":          1.30,
	"contempt":          1.20,
	"injunctive relief": 1.15,
}

// urgencyKeywords escalate the urgency level when present in content.
var urgencyKeywords = []string{
	"immediately",
	"emergency",
	"ex parte",
	"irreparable harm",
	"expedited",
	"forthwith",
}
