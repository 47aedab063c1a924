package filings

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docketwatch/docketwatch/internal/models"
)

// Analyzer runs the full pipeline for one filing: classification, then
// impact assessment. The result is finalized before it reaches the
// notification engine and is not mutated afterwards.
type Analyzer struct {
	classifier *Classifier
	assessor   *Assessor
	logger     *slog.Logger
}

// NewAnalyzer wires the pipeline.
func NewAnalyzer(assistant Assistant, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		classifier: NewClassifier(assistant, logger),
		assessor:   NewAssessor(assistant, logger),
		logger:     logger,
	}
}

// Analyze produces the finalized analysis for a filing. AI degradations
// surface as warnings on the analysis, never as errors.
func (a *Analyzer) Analyze(ctx context.Context, filing models.Filing) models.FilingAnalysis {
	classification, warnings := a.classifier.Classify(ctx, filing)

	assessment := a.assessor.Assess(ctx, filing, classification.Primary)

	analysis := models.FilingAnalysis{
		ID:              uuid.NewString(),
		FilingID:        filing.ID,
		Classification:  classification,
		Impact:          assessment.Impact,
		Urgency:         assessment.Urgency,
		RiskScore:       assessment.RiskScore,
		BusinessImpact:  assessment.BusinessImpact,
		Risks:           assessment.Risks,
		Stakeholders:    assessment.Stakeholders,
		Deadlines:       assessment.Deadlines,
		Recommendations: assessment.Recommendations,
		Warnings:        append(warnings, assessment.Warnings...),
		AnalyzedAt:      time.Now().UTC(),
	}

	a.logger.Info("filing analyzed",
		"filing_id", filing.ID,
		"type", classification.Primary,
		"impact", analysis.Impact,
		"urgency", analysis.Urgency,
		"risk_score", analysis.RiskScore,
	)

	return analysis
}
