package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/docketwatch/docketwatch/internal/metrics"
	"github.com/docketwatch/docketwatch/internal/models"
)

// RuleSource supplies the enabled notification rules.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]models.NotificationRule, error)
}

// Engine matches configured rules against an analyzed filing and dispatches
// alerts per channel. Deliveries are individually reported; one failing
// target never fails the dispatch.
type Engine struct {
	rules     RuleSource
	registry  *Registry
	escalator *Escalator
	collector *metrics.Collector
	logger    *slog.Logger

	mu       sync.Mutex
	limiters map[models.Channel]*rate.Limiter
	perMin   int
}

// NewEngine wires a notification engine. escalator and collector may be nil.
func NewEngine(rules RuleSource, registry *Registry, escalator *Escalator, ratePerMinute int, collector *metrics.Collector, logger *slog.Logger) *Engine {
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}
	return &Engine{
		rules:     rules,
		registry:  registry,
		escalator: escalator,
		collector: collector,
		logger:    logger,
		limiters:  make(map[models.Channel]*rate.Limiter),
		perMin:    ratePerMinute,
	}
}

func (e *Engine) limiter(channel models.Channel) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()

	lim, ok := e.limiters[channel]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(e.perMin)), e.perMin)
		e.limiters[channel] = lim
	}
	return lim
}

// Notify plans and dispatches alerts for an analyzed filing. Matching rules
// fan out concurrently per channel under per-channel rate limits. Rules
// matching urgency levels that require acknowledgment also schedule staged
// escalations.
func (e *Engine) Notify(ctx context.Context, filing models.Filing, analysis models.FilingAnalysis) ([]models.Delivery, error) {
	rules, err := e.rules.ActiveRules(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]models.NotificationRule, 0, len(rules))
	for _, rule := range rules {
		if RuleMatches(rule, filing, analysis) {
			matched = append(matched, rule)
		}
	}

	if len(matched) == 0 {
		e.logger.Debug("no notification rules matched", "filing_id", filing.ID)
		return nil, nil
	}

	var (
		wg         sync.WaitGroup
		deliveryMu sync.Mutex
		deliveries []models.Delivery
	)

	for _, rule := range matched {
		message := map[models.Channel]string{}
		for _, channel := range rule.Channels {
			message[channel] = RenderMessage(channel, filing, analysis)
		}

		for _, channel := range rule.Channels {
			for _, role := range rule.Roles {
				wg.Add(1)

				go func(rule models.NotificationRule, channel models.Channel, role, msg string) {
					defer wg.Done()

					delivery := e.dispatch(ctx, filing.ID, rule.ID, channel, role, msg)

					deliveryMu.Lock()
					deliveries = append(deliveries, delivery)
					deliveryMu.Unlock()
				}(rule, channel, role, message[channel])
			}
		}

		if e.escalator != nil && requiresAcknowledgment(analysis.Urgency) {
			e.escalator.Schedule(filing, analysis, rule)
		}
	}

	wg.Wait()

	return deliveries, nil
}

func (e *Engine) dispatch(ctx context.Context, filingID, ruleID string, channel models.Channel, role, message string) models.Delivery {
	delivery := models.Delivery{
		ID:       uuid.NewString(),
		FilingID: filingID,
		RuleID:   ruleID,
		Role:     role,
		Channel:  channel,
		SentAt:   time.Now().UTC(),
	}

	send, ok := e.registry.Sender(channel)
	if !ok {
		delivery.Status = models.DeliveryFailed
		delivery.Error = (&UnknownChannelError{Channel: channel}).Error()
		e.observe(channel, "failed")
		return delivery
	}

	if err := e.limiter(channel).Wait(ctx); err != nil {
		delivery.Status = models.DeliveryFailed
		delivery.Error = err.Error()
		e.observe(channel, "failed")
		return delivery
	}

	if err := send(ctx, role, message); err != nil {
		e.logger.Warn("delivery failed",
			"filing_id", filingID,
			"channel", string(channel),
			"role", role,
			"error", err,
		)
		delivery.Status = models.DeliveryFailed
		delivery.Error = err.Error()
		e.observe(channel, "failed")
		return delivery
	}

	delivery.Status = models.DeliverySent
	e.observe(channel, "sent")
	return delivery
}

func (e *Engine) observe(channel models.Channel, status string) {
	if e.collector != nil {
		e.collector.ObserveDelivery(string(channel), status)
	}
}

// requiresAcknowledgment reports whether an urgency level demands a human
// acknowledgment, and therefore escalation when none arrives.
func requiresAcknowledgment(urgency models.UrgencyLevel) bool {
	return urgency == models.UrgencyEmergency || urgency == models.UrgencyUrgent
}

// RuleMatches evaluates a rule's predicates against a filing and its
// analysis. Empty predicate slices match everything for that dimension;
// keyword predicates match case-insensitively against title and content.
func RuleMatches(rule models.NotificationRule, filing models.Filing, analysis models.FilingAnalysis) bool {
	if !rule.Enabled {
		return false
	}

	if len(rule.FilingTypes) > 0 && !containsFilingType(rule.FilingTypes, analysis.Classification.Primary) {
		return false
	}

	if len(rule.ImpactLevels) > 0 && !containsImpact(rule.ImpactLevels, analysis.Impact) {
		return false
	}

	if len(rule.UrgencyLevels) > 0 && !containsUrgency(rule.UrgencyLevels, analysis.Urgency) {
		return false
	}

	if len(rule.Keywords) > 0 {
		haystack := strings.ToLower(filing.Title + "\n" + filing.Content)
		found := false
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func containsFilingType(list []models.FilingType, v models.FilingType) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}

func containsImpact(list []models.ImpactLevel, v models.ImpactLevel) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}

func containsUrgency(list []models.UrgencyLevel, v models.UrgencyLevel) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}
