package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veloxparts/authcore"
)

// ZapSender logs notifications instead of delivering them. Used for the
// SMS channel where no gateway is wired, and for development. OTP values
// are redacted from the log line.
type ZapSender struct {
	logger *zap.Logger
}

func NewZapSender(logger *zap.Logger) *ZapSender {
	return &ZapSender{logger: logger}
}

func (s *ZapSender) Send(_ context.Context, n authcore.Notification) error {
	if s == nil || s.logger == nil {
		return nil
	}

	s.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("channel", string(n.Channel)),
		zap.String("recipient", n.Recipient),
		zap.String("template", n.Template),
	)
	return nil
}

// Mux routes each notification to the sender registered for its
// channel. Unregistered channels are an error, surfaced in the
// dispatcher's failure counter.
type Mux struct {
	senders map[authcore.NotificationChannel]authcore.NotificationSender
}

func NewMux() *Mux {
	return &Mux{
		senders: make(map[authcore.NotificationChannel]authcore.NotificationSender),
	}
}

func (m *Mux) Register(channel authcore.NotificationChannel, sender authcore.NotificationSender) *Mux {
	m.senders[channel] = sender
	return m
}

func (m *Mux) Send(ctx context.Context, n authcore.Notification) error {
	sender, ok := m.senders[n.Channel]
	if !ok {
		return fmt.Errorf("notify mux: no sender for channel %q", n.Channel)
	}
	return sender.Send(ctx, n)
}
