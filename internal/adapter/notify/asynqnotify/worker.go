package asynqnotify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// Worker is the consumer side: it drains TaskNotifyUser and TaskBroadcast
// tasks against a domain.Notifier.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	notifier domain.Notifier
}

// NewWorker constructs a Worker against the asynq-compatible Redis URI and
// the given Notifier.
func NewWorker(redisURL string, notifier domain.Notifier, concurrency int) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(opt, asynq.Config{Concurrency: concurrency})
	mux := asynq.NewServeMux()
	w := &Worker{server: srv, mux: mux, notifier: notifier}

	mux.HandleFunc(TaskNotifyUser, w.handleNotifyUser)
	mux.HandleFunc(TaskBroadcast, w.handleBroadcast)

	return w, nil
}

func (w *Worker) handleNotifyUser(ctx context.Context, t *asynq.Task) error {
	tracer := otel.Tracer("notify.worker")
	ctx, span := tracer.Start(ctx, "NotifyUser")
	defer span.End()

	var p userPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	return w.notifier.NotifyUser(ctx, p.UserID, p.Message)
}

func (w *Worker) handleBroadcast(ctx context.Context, t *asynq.Task) error {
	tracer := otel.Tracer("notify.worker")
	ctx, span := tracer.Start(ctx, "Broadcast")
	defer span.End()

	var p broadcastPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := w.notifier.Broadcast(ctx, p.UserIDs, p.Message); err != nil {
		slog.Error("broadcast failed", slog.Any("error", err), slog.Int("recipients", len(p.UserIDs)))
		return err
	}
	return nil
}

// Start begins processing tasks until shutdown.
func (w *Worker) Start(_ context.Context) error { return w.server.Start(w.mux) }

// Stop gracefully shuts down the worker server.
func (w *Worker) Stop() { w.server.Shutdown() }
