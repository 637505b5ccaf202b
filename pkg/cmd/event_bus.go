package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/planflow/pkg/channels/gochannel"
	"github.com/dukex/planflow/pkg/channels/kafka"
	"github.com/dukex/planflow/pkg/events"
)

const progressTopicPartitions = 6

// NewMessageBus returns the publisher and subscriber for the progress relay.
// Provider is "gochannel" (in-process) or "kafka://broker1:9092,broker2:9092".
func NewMessageBus(provider, serviceName string, logger *slog.Logger) (message.Publisher, message.Subscriber, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	scheme, rest, _ := strings.Cut(provider, "://")

	switch scheme {
	case "", "gochannel":
		return gochannel.CreateChannel(wmLogger, 0)
	case "kafka":
		brokers := strings.Split(rest, ",")

		err := kafka.EnsureTopic(brokers, events.Topic, progressTopicPartitions)
		if err != nil {
			logger.Warn("Could not ensure progress topic", "topic", events.Topic, "error", err)
		}

		pub, sub, err := kafka.CreateChannel(wmLogger, brokers, serviceName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return pub, sub, nil
	default:
		return nil, nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
