// Package events defines how progress events travel over the message bus.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/planflow/pkg/models"
)

// Topic carries every progress event of every plan.
const Topic = "planflow.progress"

const (
	PlanIDMetadataKey    = "plan_id"
	EventTypeMetadataKey = "event_type"
	StatusMetadataKey    = "status"
)

// NewMessage encodes a progress event as a watermill message. The plan id
// doubles as the partition key so a plan's events stay ordered.
func NewMessage(event models.ProgressEvent) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode progress event: %w", err)
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(PlanIDMetadataKey, event.PlanID)
	msg.Metadata.Set(EventTypeMetadataKey, string(event.Type))
	msg.Metadata.Set(StatusMetadataKey, event.Status)

	return msg, nil
}

// Decode reads a progress event back from a message payload.
func Decode(msg *message.Message) (models.ProgressEvent, error) {
	var event models.ProgressEvent

	err := json.Unmarshal(msg.Payload, &event)
	if err != nil {
		return models.ProgressEvent{}, fmt.Errorf("decode progress event %s: %w", msg.UUID, err)
	}

	return event, nil
}
