// Package notify hands push notifications off to the delivery service.
// Delivery itself happens elsewhere; from here it is fire-and-forget.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
)

type Notifier interface {
	Notify(ctx context.Context, userID uint64, message string, data map[string]string) error
}

// Message is the payload published for the push worker.
type Message struct {
	UserID  uint64            `json:"user_id"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

// Publisher is the pub/sub hook; *cache.RedisCache satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes notifications on a Redis channel.
type RedisPublisher struct {
	pub     Publisher
	channel string
}

func NewRedisPublisher(pub Publisher, channel string) *RedisPublisher {
	return &RedisPublisher{pub: pub, channel: channel}
}

func (p *RedisPublisher) Notify(ctx context.Context, userID uint64, message string, data map[string]string) error {
	payload, err := json.Marshal(Message{
		UserID:  userID,
		Message: message,
		Data:    data,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.pub.Publish(ctx, p.channel, payload); err != nil {
		return fmt.Errorf("publish notification to %s: %w", p.channel, err)
	}
	return nil
}

// LogNotifier only logs. Used in development and when no broker is wired.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = logger.Named("notify")
	}
	return &LogNotifier{log: l}
}

func (n *LogNotifier) Notify(_ context.Context, userID uint64, message string, data map[string]string) error {
	n.log.Info("notification", "user_id", userID, "message", message, "data", data)
	return nil
}

// Dispatch sends in the background. The caller's cancellation does not
// stop the send; timeout does. Failures are logged and never returned.
// The returned channel closes when the attempt is over.
func Dispatch(ctx context.Context, n Notifier, timeout time.Duration, userID uint64, message string, data map[string]string) <-chan struct{} {
	done := make(chan struct{})
	log := logger.FromContext(ctx)
	sendCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				log.Error("notifier panicked", "user_id", userID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(sendCtx, timeout)
		defer cancel()
		if err := n.Notify(ctx, userID, message, data); err != nil {
			log.Warn("notification failed", "user_id", userID, "err", err)
		}
	}()
	return done
}
