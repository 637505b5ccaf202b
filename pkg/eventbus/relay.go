package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/planflow/pkg/events"
	"github.com/dukex/planflow/pkg/models"
)

// Relay forwards every broadcast event to a watermill publisher.
type Relay struct {
	logger      *slog.Logger
	broadcaster *Broadcaster
	publisher   message.Publisher
	topic       string
}

func NewRelay(logger *slog.Logger, broadcaster *Broadcaster, publisher message.Publisher) *Relay {
	return &Relay{
		logger:      logger.With("module", "relay"),
		broadcaster: broadcaster,
		publisher:   publisher,
		topic:       events.Topic,
	}
}

// Run forwards events until ctx is done or the broadcaster is closed.
// Publish errors are logged; the relay keeps going.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.broadcaster.SubscribeAll()
	defer sub.Close()

	r.logger.InfoContext(ctx, "Relay started", "topic", r.topic)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Relay stopped")

			return nil
		case event, ok := <-sub.C:
			if !ok {
				return nil
			}

			err := r.forward(event)
			if err != nil {
				r.logger.ErrorContext(ctx, "Failed to relay progress event",
					"plan_id", event.PlanID,
					"type", event.Type,
					"error", err)
			}
		}
	}
}

func (r *Relay) forward(event models.ProgressEvent) error {
	msg, err := events.NewMessage(event)
	if err != nil {
		return err
	}

	err = r.publisher.Publish(r.topic, msg)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", r.topic, err)
	}

	return nil
}

// Handler processes a progress event read from the message bus.
type Handler func(ctx context.Context, event models.ProgressEvent) error

// Consume reads progress events from the bus until ctx is done. Messages
// that fail to decode are dropped; a failing handler gets the message again.
func Consume(ctx context.Context, logger *slog.Logger, subscriber message.Subscriber, handler Handler) error {
	messages, err := subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", events.Topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			event, err := events.Decode(msg)
			if err != nil {
				logger.WarnContext(ctx, "Discarding undecodable message", "error", err)
				msg.Ack()

				continue
			}

			err = handler(msg.Context(), event)
			if err != nil {
				logger.WarnContext(ctx, "Progress handler failed", "plan_id", event.PlanID, "error", err)
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}
}
