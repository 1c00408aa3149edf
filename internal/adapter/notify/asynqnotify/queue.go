// Package asynqnotify fans broadcast and targeted notifications out
// through asynq, backed by the same Redis instance as the warm tier.
package asynqnotify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// TaskNotifyUser is the asynq task type for a single-recipient notification.
const TaskNotifyUser = "notify:user"

// TaskBroadcast is the asynq task type for a broadcast to every subscribed
// user; the recipient list is resolved at enqueue time so the task payload
// is self-contained.
const TaskBroadcast = "notify:broadcast"

type userPayload struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type broadcastPayload struct {
	UserIDs []string `json:"user_ids"`
	Message string   `json:"message"`
}

// Queue is the producer side: callers enqueue notification tasks without
// blocking on delivery.
type Queue struct {
	client *asynq.Client
}

// New constructs a Queue against the asynq-compatible Redis URI.
func New(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=asynqnotify.new: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// EnqueueNotifyUser schedules a single-recipient notification.
func (q *Queue) EnqueueNotifyUser(ctx domain.Context, userID, message string) (string, error) {
	b, err := json.Marshal(userPayload{UserID: userID, Message: message})
	if err != nil {
		return "", fmt.Errorf("op=asynqnotify.enqueue_user: %w", err)
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskNotifyUser, b),
		asynq.MaxRetry(5), asynq.Retention(24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("op=asynqnotify.enqueue_user: %w", err)
	}
	return info.ID, nil
}

// EnqueueBroadcast schedules a broadcast to every listed user.
func (q *Queue) EnqueueBroadcast(ctx domain.Context, userIDs []string, message string) (string, error) {
	b, err := json.Marshal(broadcastPayload{UserIDs: userIDs, Message: message})
	if err != nil {
		return "", fmt.Errorf("op=asynqnotify.enqueue_broadcast: %w", err)
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskBroadcast, b),
		asynq.MaxRetry(3), asynq.Retention(24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("op=asynqnotify.enqueue_broadcast: %w", err)
	}
	return info.ID, nil
}

// Close releases the underlying asynq client.
func (q *Queue) Close() error {
	return q.client.Close()
}
