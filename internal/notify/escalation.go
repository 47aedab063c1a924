package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docketwatch/docketwatch/internal/metrics"
	"github.com/docketwatch/docketwatch/internal/models"
)

// AckStore persists acknowledgments so escalation state survives restarts.
type AckStore interface {
	SaveAcknowledgment(ctx context.Context, ack models.Acknowledgment) error
	IsAcknowledged(ctx context.Context, filingID string) (bool, error)
}

// MemoryAckStore is the in-process acknowledgment store.
type MemoryAckStore struct {
	mu   sync.RWMutex
	acks map[string]models.Acknowledgment
}

func NewMemoryAckStore() *MemoryAckStore {
	return &MemoryAckStore{acks: make(map[string]models.Acknowledgment)}
}

func (s *MemoryAckStore) SaveAcknowledgment(_ context.Context, ack models.Acknowledgment) error {
	s.mu.Lock()
	s.acks[ack.FilingID] = ack
	s.mu.Unlock()
	return nil
}

func (s *MemoryAckStore) IsAcknowledged(_ context.Context, filingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.acks[filingID]
	return ok, nil
}

// Escalator re-sends unacknowledged alerts in widening stages. The first
// stage fires after the matching rule's delay; later stages follow the
// configured schedule. An acknowledgment cancels all pending stages for the
// filing.
type Escalator struct {
	registry        *Registry
	acks            AckStore
	stages          []time.Duration
	escalationRoles []string
	collector       *metrics.Collector
	logger          *slog.Logger

	mu      sync.Mutex
	pending map[string][]*time.Timer
}

// NewEscalator builds an escalator. stages are offsets from dispatch time,
// ascending; collector may be nil.
func NewEscalator(registry *Registry, acks AckStore, stages []time.Duration, collector *metrics.Collector, logger *slog.Logger) *Escalator {
	if len(stages) == 0 {
		stages = []time.Duration{time.Hour, 4 * time.Hour, 24 * time.Hour}
	}
	return &Escalator{
		registry:        registry,
		acks:            acks,
		stages:          stages,
		escalationRoles: []string{"management", "executive"},
		collector:       collector,
		logger:          logger,
		pending:         make(map[string][]*time.Timer),
	}
}

// SetEscalationRoles overrides the roles pulled in at later stages. Stage 1
// reaches the rule's own roles; each following stage adds the next role from
// this list.
func (e *Escalator) SetEscalationRoles(roles []string) {
	e.escalationRoles = roles
}

// Schedule arms the escalation timers for a filing under one rule. The
// rule's own delay replaces the first configured stage when set. Calling
// Schedule again for the same filing is a no-op; the earliest rule wins.
func (e *Escalator) Schedule(filing models.Filing, analysis models.FilingAnalysis, rule models.NotificationRule) {
	stages := make([]time.Duration, len(e.stages))
	copy(stages, e.stages)
	if rule.EscalationDelay > 0 {
		stages[0] = rule.EscalationDelay
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.pending[filing.ID]; exists {
		return
	}

	timers := make([]*time.Timer, 0, len(stages))
	for i, delay := range stages {
		stage := i + 1
		timers = append(timers, time.AfterFunc(delay, func() {
			e.fire(filing, analysis, rule, stage)
		}))
	}
	e.pending[filing.ID] = timers

	e.logger.Info("escalation scheduled",
		"filing_id", filing.ID,
		"rule", rule.Name,
		"first_stage", stages[0].String(),
		"stages", len(stages),
	)
}

// Acknowledge records the acknowledgment and cancels pending stages.
func (e *Escalator) Acknowledge(ctx context.Context, filingID, who string) error {
	ack := models.Acknowledgment{
		FilingID:       filingID,
		AcknowledgedBy: who,
		AcknowledgedAt: time.Now().UTC(),
	}
	if err := e.acks.SaveAcknowledgment(ctx, ack); err != nil {
		return err
	}

	e.Cancel(filingID)

	e.logger.Info("filing acknowledged", "filing_id", filingID, "by", who)
	return nil
}

// Cancel stops all pending escalation timers for a filing.
func (e *Escalator) Cancel(filingID string) {
	e.mu.Lock()
	timers := e.pending[filingID]
	delete(e.pending, filingID)
	e.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

// Pending reports whether escalation stages remain armed for a filing.
func (e *Escalator) Pending(filingID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[filingID]
	return ok
}

// Stop cancels every armed timer. Used on shutdown.
func (e *Escalator) Stop() {
	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[string][]*time.Timer)
	e.mu.Unlock()

	for _, timers := range pending {
		for _, t := range timers {
			t.Stop()
		}
	}
}

func (e *Escalator) fire(filing models.Filing, analysis models.FilingAnalysis, rule models.NotificationRule, stage int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The timer may have raced an acknowledgment; re-check before sending.
	acked, err := e.acks.IsAcknowledged(ctx, filing.ID)
	if err != nil {
		e.logger.Warn("acknowledgment check failed, escalating anyway",
			"filing_id", filing.ID, "error", err)
	}
	if acked {
		e.Cancel(filing.ID)
		return
	}

	if e.collector != nil {
		e.collector.ObserveEscalation()
	}

	recipients := e.recipientsForStage(rule.Roles, stage)

	e.logger.Warn("escalating unacknowledged filing",
		"filing_id", filing.ID,
		"rule", rule.Name,
		"stage", stage,
		"urgency", string(analysis.Urgency),
		"recipients", len(recipients),
	)

	message := "ESCALATION: unacknowledged alert\n\n" + RenderMessage(models.ChannelEmail, filing, analysis)

	for _, channel := range rule.Channels {
		send, ok := e.registry.Sender(channel)
		if !ok {
			continue
		}
		for _, role := range recipients {
			if err := send(ctx, role, message); err != nil {
				e.logger.Warn("escalation delivery failed",
					"filing_id", filing.ID,
					"channel", string(channel),
					"role", role,
					"error", err,
				)
			}
		}
	}

	// After the last stage there is nothing left to cancel.
	if stage >= len(e.stages) {
		e.Cancel(filing.ID)
	}
}

// recipientsForStage widens the audience as stages progress: stage 1 reaches
// the rule's own roles, each later stage adds the next escalation role.
func (e *Escalator) recipientsForStage(ruleRoles []string, stage int) []string {
	recipients := append([]string(nil), ruleRoles...)

	extra := stage - 1
	if extra > len(e.escalationRoles) {
		extra = len(e.escalationRoles)
	}
	for _, role := range e.escalationRoles[:extra] {
		if !containsRole(recipients, role) {
			recipients = append(recipients, role)
		}
	}
	return recipients
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
