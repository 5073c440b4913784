package kafka

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"
	"gitlab.com/vitanet-network/settlement_api/config"
)

// Consumer wraps a kafka reader for one topic. Handlers that return an
// error leave the message uncommitted so it is redelivered; every consumer
// side effect must therefore be idempotent.
type Consumer struct {
	topic  string
	reader *kafkaGo.Reader
}

// NewConsumer creates a group consumer for the given topic.
func NewConsumer(cfg config.KafkaConfig, topic string) *Consumer {
	dialer := kafkaGo.DefaultDialer
	if cfg.UseTLS {
		dialer = &kafkaGo.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
			TLS:       &tls.Config{},
		}
	}
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		Dialer:         dialer,
		CommitInterval: 0, // synchronous commits
	})
	return &Consumer{topic: topic, reader: reader}
}

// Listen consumes messages until the context is cancelled.
func (c *Consumer) Listen(ctx context.Context, handler func(msg kafkaGo.Message) error) {
	logger := log.With().Str("section", "kafka").Str("topic", c.topic).Logger()
	logger.Info().Msg("Consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("Consumer stopped")
				return
			}
			logger.Error().Err(err).Msg("Unable to fetch message")
			continue
		}
		if err := handler(msg); err != nil {
			logger.Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("Handler failed, message left uncommitted")
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error().Err(err).Msg("Unable to commit message")
		}
	}
}

// Close shuts the underlying reader down.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
