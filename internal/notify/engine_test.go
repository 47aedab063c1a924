package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/docketwatch/docketwatch/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticRules struct {
	rules []models.NotificationRule
	err   error
}

func (s staticRules) ActiveRules(ctx context.Context) ([]models.NotificationRule, error) {
	return s.rules, s.err
}

// recordingRegistry wires every channel to a sender that records its calls.
func recordingRegistry(mu *sync.Mutex, sent *[]string) *Registry {
	r := NewRegistry()
	for _, ch := range []models.Channel{models.ChannelEmail, models.ChannelSMS, models.ChannelPush} {
		channel := ch
		r.Register(channel, func(ctx context.Context, target, message string) error {
			mu.Lock()
			*sent = append(*sent, string(channel)+":"+target)
			mu.Unlock()
			return nil
		})
	}
	return r
}

func emergencyRule() models.NotificationRule {
	return models.NotificationRule{
		ID:          "rule-1",
		Name:        "emergency_filings",
		FilingTypes: []models.FilingType{models.FilingTypeTRO, models.FilingTypeInjunction},
		UrgencyLevels: []models.UrgencyLevel{
			models.UrgencyEmergency,
		},
		Roles:    []string{"legal", "operations"},
		Channels: []models.Channel{models.ChannelEmail, models.ChannelSMS, models.ChannelPush},
		Enabled:  true,
	}
}

func troAnalysis() (models.Filing, models.FilingAnalysis) {
	filing := models.Filing{
		ID:      "filing-1",
		Title:   "Motion for Temporary Restraining Order",
		Content: "irreparable harm",
	}
	analysis := models.FilingAnalysis{
		FilingID: "filing-1",
		Classification: models.Classification{
			Primary: models.FilingTypeTRO,
		},
		Impact:  models.ImpactCritical,
		Urgency: models.UrgencyEmergency,
	}
	return filing, analysis
}

func TestRuleMatches(t *testing.T) {
	filing, analysis := troAnalysis()

	tests := []struct {
		name string
		rule models.NotificationRule
		want bool
	}{
		{"all predicates match", emergencyRule(), true},
		{"disabled rule never matches", func() models.NotificationRule {
			r := emergencyRule()
			r.Enabled = false
			return r
		}(), false},
		{"empty predicates match everything", models.NotificationRule{Enabled: true}, true},
		{"filing type mismatch", func() models.NotificationRule {
			r := emergencyRule()
			r.FilingTypes = []models.FilingType{models.FilingTypeSettlement}
			return r
		}(), false},
		{"urgency mismatch", func() models.NotificationRule {
			r := emergencyRule()
			r.UrgencyLevels = []models.UrgencyLevel{models.UrgencyRoutine}
			return r
		}(), false},
		{"impact mismatch", func() models.NotificationRule {
			r := emergencyRule()
			r.ImpactLevels = []models.ImpactLevel{models.ImpactLow}
			return r
		}(), false},
		{"keyword hit is case-insensitive", func() models.NotificationRule {
			r := emergencyRule()
			r.Keywords = []string{"IRREPARABLE"}
			return r
		}(), true},
		{"keyword miss", func() models.NotificationRule {
			r := emergencyRule()
			r.Keywords = []string{"bankruptcy"}
			return r
		}(), false},
		{"keyword matches title too", func() models.NotificationRule {
			r := emergencyRule()
			r.Keywords = []string{"restraining order"}
			return r
		}(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RuleMatches(tt.rule, filing, analysis); got != tt.want {
				t.Errorf("RuleMatches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleMatchesClassifiedInjunction(t *testing.T) {
	filing, analysis := troAnalysis()
	analysis.Classification.Primary = models.FilingTypeInjunction

	if !RuleMatches(emergencyRule(), filing, analysis) {
		t.Error("emergency rule must match preliminary injunction filings")
	}
}

func TestNotifyFansOutPerChannelAndRole(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	registry := recordingRegistry(&mu, &sent)

	engine := NewEngine(staticRules{rules: []models.NotificationRule{emergencyRule()}},
		registry, nil, 600, nil, testLogger())

	filing, analysis := troAnalysis()
	deliveries, err := engine.Notify(context.Background(), filing, analysis)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	// 3 channels x 2 roles.
	if len(deliveries) != 6 {
		t.Fatalf("deliveries = %d, want 6", len(deliveries))
	}
	for _, d := range deliveries {
		if d.Status != models.DeliverySent {
			t.Errorf("delivery %s/%s failed: %s", d.Channel, d.Role, d.Error)
		}
		if d.FilingID != "filing-1" || d.RuleID != "rule-1" {
			t.Errorf("delivery not attributed: %+v", d)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 6 {
		t.Errorf("sends = %d, want 6", len(sent))
	}
}

func TestNotifyNoMatchingRules(t *testing.T) {
	engine := NewEngine(staticRules{rules: []models.NotificationRule{
		func() models.NotificationRule {
			r := emergencyRule()
			r.FilingTypes = []models.FilingType{models.FilingTypeSettlement}
			return r
		}(),
	}}, NewRegistry(), nil, 600, nil, testLogger())

	filing, analysis := troAnalysis()
	deliveries, err := engine.Notify(context.Background(), filing, analysis)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(deliveries) != 0 {
		t.Errorf("deliveries = %d, want 0", len(deliveries))
	}
}

func TestNotifyRuleSourceErrorPropagates(t *testing.T) {
	engine := NewEngine(staticRules{err: errors.New("db down")},
		NewRegistry(), nil, 600, nil, testLogger())

	filing, analysis := troAnalysis()
	if _, err := engine.Notify(context.Background(), filing, analysis); err == nil {
		t.Fatal("rule source failure must surface, not dispatch nothing silently")
	}
}

func TestNotifyUnknownChannelFailsThatDeliveryOnly(t *testing.T) {
	registry := NewRegistry()
	registry.Register(models.ChannelEmail, func(ctx context.Context, target, message string) error {
		return nil
	})

	rule := emergencyRule()
	rule.Channels = []models.Channel{models.ChannelEmail, models.ChannelSlack}
	rule.Roles = []string{"legal"}

	engine := NewEngine(staticRules{rules: []models.NotificationRule{rule}},
		registry, nil, 600, nil, testLogger())

	filing, analysis := troAnalysis()
	deliveries, err := engine.Notify(context.Background(), filing, analysis)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(deliveries))
	}

	byChannel := make(map[models.Channel]models.Delivery)
	for _, d := range deliveries {
		byChannel[d.Channel] = d
	}
	if byChannel[models.ChannelEmail].Status != models.DeliverySent {
		t.Error("email delivery should succeed")
	}
	if byChannel[models.ChannelSlack].Status != models.DeliveryFailed {
		t.Error("slack delivery should fail with no sender registered")
	}
	if byChannel[models.ChannelSlack].Error == "" {
		t.Error("failed delivery must carry its error")
	}
}

func TestNotifySendErrorRecordedPerDelivery(t *testing.T) {
	registry := NewRegistry()
	registry.Register(models.ChannelEmail, func(ctx context.Context, target, message string) error {
		if target == "operations" {
			return errors.New("mailbox full")
		}
		return nil
	})

	rule := emergencyRule()
	rule.Channels = []models.Channel{models.ChannelEmail}

	engine := NewEngine(staticRules{rules: []models.NotificationRule{rule}},
		registry, nil, 600, nil, testLogger())

	filing, analysis := troAnalysis()
	deliveries, err := engine.Notify(context.Background(), filing, analysis)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	var sent, failed int
	for _, d := range deliveries {
		switch d.Status {
		case models.DeliverySent:
			sent++
		case models.DeliveryFailed:
			failed++
			if d.Error != "mailbox full" {
				t.Errorf("error = %q", d.Error)
			}
		}
	}
	if sent != 1 || failed != 1 {
		t.Errorf("sent/failed = %d/%d, want 1/1", sent, failed)
	}
}

func TestNotifySchedulesEscalationForEmergency(t *testing.T) {
	registry := NewLogRegistry(testLogger())
	escalator := NewEscalator(registry, NewMemoryAckStore(),
		[]time.Duration{time.Hour}, nil, testLogger())
	defer escalator.Stop()

	engine := NewEngine(staticRules{rules: []models.NotificationRule{emergencyRule()}},
		registry, escalator, 600, nil, testLogger())

	filing, analysis := troAnalysis()
	if _, err := engine.Notify(context.Background(), filing, analysis); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if !escalator.Pending(filing.ID) {
		t.Error("emergency filing must have escalation armed")
	}
}

func TestNotifyNoEscalationForRoutine(t *testing.T) {
	registry := NewLogRegistry(testLogger())
	escalator := NewEscalator(registry, NewMemoryAckStore(),
		[]time.Duration{time.Hour}, nil, testLogger())
	defer escalator.Stop()

	rule := models.NotificationRule{
		ID:       "rule-2",
		Name:     "all_filings",
		Roles:    []string{"legal"},
		Channels: []models.Channel{models.ChannelEmail},
		Enabled:  true,
	}
	engine := NewEngine(staticRules{rules: []models.NotificationRule{rule}},
		registry, escalator, 600, nil, testLogger())

	filing, analysis := troAnalysis()
	analysis.Urgency = models.UrgencyRoutine

	if _, err := engine.Notify(context.Background(), filing, analysis); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if escalator.Pending(filing.ID) {
		t.Error("routine filings must not arm escalation")
	}
}
