package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docketwatch/docketwatch/internal/models"
)

// SendFunc delivers one message to one target over a channel. Real
// transports (SMTP, Slack webhooks, SMS gateways) live in the collaborator
// layer; the engine only requires this shape.
type SendFunc func(ctx context.Context, target, message string) error

// Registry holds the configured sender per channel.
type Registry struct {
	mu      sync.RWMutex
	senders map[models.Channel]SendFunc
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[models.Channel]SendFunc)}
}

// Register installs the sender for a channel, replacing any previous one.
func (r *Registry) Register(channel models.Channel, send SendFunc) {
	r.mu.Lock()
	r.senders[channel] = send
	r.mu.Unlock()
}

// Sender returns the sender for a channel.
func (r *Registry) Sender(channel models.Channel) (SendFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	send, ok := r.senders[channel]
	return send, ok
}

// NewLogRegistry returns a registry with every channel wired to a sender
// that only logs. Used for wiring before real transports are configured,
// and in tests.
func NewLogRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry()
	channels := []models.Channel{
		models.ChannelEmail,
		models.ChannelSMS,
		models.ChannelSlack,
		models.ChannelTeams,
		models.ChannelWebhook,
		models.ChannelPush,
	}
	for _, ch := range channels {
		channel := ch
		r.Register(channel, func(ctx context.Context, target, message string) error {
			logger.Info("notification dispatched",
				"channel", string(channel),
				"target", target,
				"bytes", len(message),
			)
			return nil
		})
	}
	return r
}

// UnknownChannelError reports a rule referencing a channel with no sender.
type UnknownChannelError struct {
	Channel models.Channel
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("no sender registered for channel %q", e.Channel)
}
