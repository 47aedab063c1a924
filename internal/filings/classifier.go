package filings

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/docketwatch/docketwatch/internal/models"
)

// Method weights for the classification vote. Content matching dominates;
// the AI vote matters but can never outvote two agreeing rule methods.
const (
	weightFilename = 0.25
	weightContent  = 0.35
	weightKeyword  = 0.15
	weightAI       = 0.25
)

// Classifier assigns a filing type by weighted voting across filename
// rules, content-regex rules, keyword frequency, and the optional AI vote.
type Classifier struct {
	assistant Assistant
	logger    *slog.Logger
}

// NewClassifier builds a classifier. assistant may be the null adapter.
func NewClassifier(assistant Assistant, logger *slog.Logger) *Classifier {
	if assistant == nil {
		assistant = NullAssistant{}
	}
	return &Classifier{assistant: assistant, logger: logger}
}

// Classify runs every available method and combines the votes. AI failures
// degrade to the rule-based result with a warning, never a pipeline error.
func (c *Classifier) Classify(ctx context.Context, filing models.Filing) (models.Classification, []string) {
	votes := make(map[models.FilingType]float64)
	var methods []models.ClassificationMethod
	var warnings []string

	if scores := scoreFilename(filing.Filename); len(scores) > 0 {
		mergeVotes(votes, scores, weightFilename)
		methods = append(methods, models.MethodFilename)
	}

	content := filing.Title + "\n" + filing.Content

	if scores := scoreContent(content); len(scores) > 0 {
		mergeVotes(votes, scores, weightContent)
		methods = append(methods, models.MethodContent)
	}

	if scores := scoreKeywords(content); len(scores) > 0 {
		mergeVotes(votes, scores, weightKeyword)
		methods = append(methods, models.MethodKeyword)
	}

	aiType, aiConfidence, err := c.assistant.ClassifyFiling(ctx, filing)
	if err != nil {
		warnings = append(warnings, "ai classification unavailable, using rule-based result")
		c.logger.Debug("ai classification fell back to rules", "error", err)
	} else if aiType != models.FilingTypeOther {
		votes[aiType] += weightAI * aiConfidence
		methods = append(methods, models.MethodAI)
	}

	if len(votes) == 0 {
		return models.Classification{
			Primary:    models.FilingTypeOther,
			Confidence: 0,
			Methods:    methods,
		}, warnings
	}

	ranked := rankVotes(votes)
	primary := ranked[0]

	classification := models.Classification{
		Primary:    primary.Type,
		Confidence: normalizeConfidence(primary.Score),
		Methods:    methods,
	}
	if len(ranked) > 1 {
		classification.Alternatives = ranked[1:]
	}

	return classification, warnings
}

// scoreFilename matches filename patterns. A pattern hit is a full vote for
// its type.
func scoreFilename(filename string) map[models.FilingType]float64 {
	if filename == "" {
		return nil
	}

	scores := make(map[models.FilingType]float64)
	for _, rule := range filingRules {
		for _, re := range rule.FilenamePatterns {
			if re.MatchString(filename) {
				scores[rule.Type] = 1.0
				break
			}
		}
	}
	return scores
}

// scoreContent accumulates weighted content-pattern hits, normalized per
// type by its strongest possible match.
func scoreContent(content string) map[models.FilingType]float64 {
	if content == "" {
		return nil
	}

	scores := make(map[models.FilingType]float64)
	for _, rule := range filingRules {
		var got, max float64
		for _, p := range rule.ContentPatterns {
			max += p.weight
			if p.re.MatchString(content) {
				got += p.weight
			}
		}
		if got > 0 && max > 0 {
			scores[rule.Type] = got / max
		}
	}
	return scores
}

// scoreKeywords counts keyword occurrences per type, scaled by frequency.
func scoreKeywords(content string) map[models.FilingType]float64 {
	lower := strings.ToLower(content)

	scores := make(map[models.FilingType]float64)
	for _, rule := range filingRules {
		hits := 0
		for _, kw := range rule.Keywords {
			hits += strings.Count(lower, kw)
		}
		if hits > 0 {
			score := float64(hits) / 5.0
			if score > 1.0 {
				score = 1.0
			}
			scores[rule.Type] = score
		}
	}
	return scores
}

func mergeVotes(votes, scores map[models.FilingType]float64, weight float64) {
	for t, s := range scores {
		votes[t] += weight * s
	}
}

func rankVotes(votes map[models.FilingType]float64) []models.TypeCandidate {
	ranked := make([]models.TypeCandidate, 0, len(votes))
	for t, s := range votes {
		ranked = append(ranked, models.TypeCandidate{Type: t, Score: s})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Type < ranked[j].Type
	})

	return ranked
}

// normalizeConfidence maps a raw vote total onto [0, 1]. The total possible
// weight is 1.0, but a single strong method should still read as confident.
func normalizeConfidence(score float64) float64 {
	confidence := score / (weightFilename + weightContent + weightKeyword + weightAI)
	confidence *= 1.5
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
