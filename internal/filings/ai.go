package filings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docketwatch/docketwatch/internal/config"
	"github.com/docketwatch/docketwatch/internal/models"
)

// Assistant is the optional AI layer behind classification and impact
// scoring. Implementations are selected by configuration: the real OpenAI
// adapter when a key is present, the null adapter otherwise. Callers treat
// any error as "fall back to rules".
type Assistant interface {
	ClassifyFiling(ctx context.Context, filing models.Filing) (models.FilingType, float64, error)
	ScoreBusinessImpact(ctx context.Context, filing models.Filing, filingType models.FilingType) (float64, error)
}

// NewAssistant selects an Assistant implementation from configuration.
func NewAssistant(cfg config.OpenAIConfig) Assistant {
	if !cfg.Enabled {
		return NullAssistant{}
	}
	return NewOpenAIAssistant(cfg)
}

// NullAssistant disables AI assistance. Every call reports unavailability,
// pushing callers onto the rule-based paths.
type NullAssistant struct{}

// ClassifyFiling implements Assistant.
func (NullAssistant) ClassifyFiling(ctx context.Context, filing models.Filing) (models.FilingType, float64, error) {
	return models.FilingTypeOther, 0, fmt.Errorf("ai assistance disabled")
}

// ScoreBusinessImpact implements Assistant.
func (NullAssistant) ScoreBusinessImpact(ctx context.Context, filing models.Filing, filingType models.FilingType) (float64, error) {
	return 0, fmt.Errorf("ai assistance disabled")
}

// OpenAIAssistant classifies filings and scores business impact through the
// OpenAI chat completion API.
type OpenAIAssistant struct {
	client *openai.Client
	cfg    config.OpenAIConfig
}

// NewOpenAIAssistant creates the real adapter.
func NewOpenAIAssistant(cfg config.OpenAIConfig) *OpenAIAssistant {
	return &OpenAIAssistant{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
	}
}

const classifySystemPrompt = `You are a legal filing classifier. Given a filing's title and an excerpt
of its content, respond with JSON only: {"filing_type": "<type>", "confidence": <0-1>}.
Valid types: temporary_restraining_order, preliminary_injunction, motion_to_dismiss,
summary_judgment, complaint, sanctions_motion, discovery_request, subpoena, court_order,
judgment, notice, settlement, bankruptcy_petition, appeal, other.`

const impactSystemPrompt = `You are a legal risk analyst for a company monitoring its litigation.
Given a filing, respond with JSON only: {"score": <0-10>} where 0 is negligible business
impact and 10 is existential.`

// ClassifyFiling implements Assistant.
func (a *OpenAIAssistant) ClassifyFiling(ctx context.Context, filing models.Filing) (models.FilingType, float64, error) {
	user := fmt.Sprintf("Title: %s\n\nContent excerpt:\n%s", filing.Title, excerpt(filing.Content, 4000))

	content, err := a.complete(ctx, classifySystemPrompt, user)
	if err != nil {
		return models.FilingTypeOther, 0, err
	}

	var parsed struct {
		FilingType string  `json:"filing_type"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil {
		return models.FilingTypeOther, 0, fmt.Errorf("unparseable classification response: %w", err)
	}

	ft := models.FilingType(parsed.FilingType)
	if _, known := ruleByType[ft]; !known && ft != models.FilingTypeOther {
		return models.FilingTypeOther, 0, fmt.Errorf("model returned unknown filing type %q", parsed.FilingType)
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return ft, confidence, nil
}

// ScoreBusinessImpact implements Assistant.
func (a *OpenAIAssistant) ScoreBusinessImpact(ctx context.Context, filing models.Filing, filingType models.FilingType) (float64, error) {
	user := fmt.Sprintf("Filing type: %s\nTitle: %s\n\nContent excerpt:\n%s",
		filingType, filing.Title, excerpt(filing.Content, 4000))

	content, err := a.complete(ctx, impactSystemPrompt, user)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil {
		return 0, fmt.Errorf("unparseable impact response: %w", err)
	}

	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 10 {
		parsed.Score = 10
	}

	return parsed.Score, nil
}

func (a *OpenAIAssistant) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// extractJSON strips markdown fences the model sometimes wraps around JSON.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
