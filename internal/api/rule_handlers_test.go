package api

import (
	"strings"
	"testing"

	"github.com/docketwatch/docketwatch/internal/models"
)

func TestValidateRule(t *testing.T) {
	valid := models.NotificationRule{
		Name:     "emergency_filings",
		Roles:    []string{"legal"},
		Channels: []models.Channel{models.ChannelEmail, models.ChannelSMS},
	}

	if err := validateRule(valid); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*models.NotificationRule)
		want   string
	}{
		{"missing name", func(r *models.NotificationRule) { r.Name = "" }, "name is required"},
		{"no roles", func(r *models.NotificationRule) { r.Roles = nil }, "role"},
		{"no channels", func(r *models.NotificationRule) { r.Channels = nil }, "channel"},
		{"unknown channel", func(r *models.NotificationRule) {
			r.Channels = []models.Channel{"pager"}
		}, "unknown channel: pager"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)

			err := validateRule(rule)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}
