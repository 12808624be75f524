package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shoply/fulfillment-service/internal/config"
	"github.com/shoply/fulfillment-service/internal/entities"

	"github.com/segmentio/kafka-go"
)

type Repo interface {
	UnsentNotifications(ctx context.Context, limit int) ([]entities.Notification, error)
	MarkNotificationsSent(ctx context.Context, ids []int64) error
}

// message is the wire shape published to the notification sink.
type message struct {
	ID      int64  `json:"id"`
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	SentAt  int64  `json:"sent_at"`
}

// Dispatcher drains the notification outbox into Kafka. State transitions
// only ever append outbox rows; delivery lives here, so a flaky sink can
// never block or roll back a transition. Rows are marked sent only after a
// successful publish, which makes delivery at-least-once.
type Dispatcher struct {
	logger   *slog.Logger
	repo     Repo
	writer   *kafka.Writer
	interval time.Duration
	batch    int
}

func NewDispatcher(logger *slog.Logger, cfg config.Outbox, kafkaCfg config.Kafka, repo Repo) *Dispatcher {
	return &Dispatcher{
		logger: logger.With(slog.String("component", "outbox")),
		repo:   repo,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(kafkaCfg.Brokers...),
			Topic:        kafkaCfg.NotificationsTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: kafkaCfg.BatchTimeout,
		},
		interval: cfg.PollInterval,
		batch:    cfg.BatchSize,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.dispatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("failed to dispatch notifications", slog.Any("error", err))
			}
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context) error {
	notifications, err := d.repo.UnsentNotifications(ctx, d.batch)
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(notifications))
	ids := make([]int64, 0, len(notifications))
	now := time.Now()
	for _, n := range notifications {
		value, err := json.Marshal(message{
			ID:      n.ID,
			UserID:  n.UserID,
			Type:    n.Type,
			Title:   n.Title,
			Message: n.Message,
			SentAt:  now.Unix(),
		})
		if err != nil {
			d.logger.Error("failed to marshal notification", slog.Int64("id", n.ID), slog.Any("error", err))
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(strconv.FormatInt(n.ID, 10)),
			Value: value,
		})
		ids = append(ids, n.ID)
	}

	if len(messages) == 0 {
		return nil
	}

	// The writer retries internally; rows stay unsent on failure and are
	// picked up on the next tick.
	if err := d.writer.WriteMessages(ctx, messages...); err != nil {
		return err
	}
	return d.repo.MarkNotificationsSent(ctx, ids)
}

func (d *Dispatcher) Close() error {
	return d.writer.Close()
}
