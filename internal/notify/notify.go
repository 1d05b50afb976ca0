// Package notify sends customer SMS notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// SMS is a single text message.
type SMS struct {
	To   string
	Body string
}

// Notifier delivers SMS messages.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg SMS) error
}

// PaymentMessage is the text sent when an order is paid.
func PaymentMessage(orderID, updateTime string) string {
	return fmt.Sprintf("Your order %s has been paid successfully on %s!", orderID, updateTime)
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, msg SMS) error {
	n.logger.InfoContext(ctx, "sms not sent, logged instead",
		slog.String("to", msg.To),
		slog.String("body", msg.Body),
	)
	return nil
}
