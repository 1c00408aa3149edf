// Package notify provides the operator console's outbound notification
// adapters: a stub domain.Notifier standing in for the external chat
// transport, and a bounded correlation table for forwarded admin replies.
package notify

import (
	"log/slog"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// StubNotifier implements domain.Notifier by logging instead of delivering:
// a real chat-transport implementation is supplied outside this module.
type StubNotifier struct {
	log *slog.Logger
}

// NewStubNotifier constructs a StubNotifier.
func NewStubNotifier() *StubNotifier {
	return &StubNotifier{log: slog.Default().With(slog.String("component", "notify"))}
}

// NotifyUser implements domain.Notifier.
func (n *StubNotifier) NotifyUser(ctx domain.Context, userID, message string) error {
	n.log.Info("notify user",
		slog.String("request_id", observability.RequestIDFromContext(ctx)),
		slog.String("user_id", userID),
		slog.String("message", message))
	return nil
}

// Broadcast implements domain.Notifier.
func (n *StubNotifier) Broadcast(ctx domain.Context, userIDs []string, message string) error {
	n.log.Info("broadcast",
		slog.String("request_id", observability.RequestIDFromContext(ctx)),
		slog.Int("recipients", len(userIDs)),
		slog.String("message", message))
	return nil
}
