package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads customs.updated messages published by the clearance worker.
type Consumer struct {
	r messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r: kafka.NewReader(cfg),
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume decodes customs updates and hands them to handler one by one. The offset is committed
// only after the handler succeeded, so a failed update is redelivered after restart. A message
// that is not JSON is committed and skipped. The message key is the shipment id; it fills
// ShipmentID when the body left it out.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, m messages.CustomsUpdated) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		log := logging.FromContext(ctx).With("partition", msg.Partition, "offset", msg.Offset)

		var m messages.CustomsUpdated
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			log.Warn("malformed customs update skipped", "error", err)
		} else {
			if m.ShipmentID == uuid.Nil {
				if id, err := uuid.ParseBytes(msg.Key); err == nil {
					m.ShipmentID = id
				}
			}
			log = log.With("shipment_id", m.ShipmentID.String(), "status", m.Status)
			if err := handler(logging.WithLogger(ctx, log), m); err != nil {
				return err
			}
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
