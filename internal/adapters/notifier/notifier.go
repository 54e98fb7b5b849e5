package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultOutboxKey = "notifications:outbox"

var (
	_ domain.Notifier = (*RedisOutbox)(nil)
	_ domain.Notifier = (*LogNotifier)(nil)
)

// Message is the JSON intent pushed onto the outbox list. The chat transport
// pops it and performs the actual delivery.
type Message struct {
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	ParseMode string    `json:"parse_mode"`
	CreatedAt time.Time `json:"created_at"`
}

type RedisOutbox struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisOutbox(client *redis.Client, key string) *RedisOutbox {
	if key == "" {
		key = DefaultOutboxKey
	}
	return &RedisOutbox{client: client, key: key, now: time.Now}
}

func (o *RedisOutbox) Send(ctx context.Context, userID int64, text string) error {
	payload, err := json.Marshal(Message{
		UserID:    userID,
		Text:      text,
		ParseMode: "Markdown",
		CreatedAt: o.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notifier: encode message: %w", err)
	}
	if err := o.client.RPush(ctx, o.key, payload).Err(); err != nil {
		return fmt.Errorf("notifier: push to %s: %w", o.key, err)
	}
	return nil
}

// Pending reports how many messages wait for delivery.
func (o *RedisOutbox) Pending(ctx context.Context) (int64, error) {
	n, err := o.client.LLen(ctx, o.key).Result()
	if err != nil {
		return 0, fmt.Errorf("notifier: outbox length: %w", err)
	}
	return n, nil
}

// LogNotifier writes reminders to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (n *LogNotifier) Send(ctx context.Context, userID int64, text string) error {
	n.logger.Info("reminder", zap.Int64("user_id", userID), zap.String("text", text))
	return nil
}
