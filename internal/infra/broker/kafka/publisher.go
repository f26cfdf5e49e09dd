package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"artisanchat/internal/domain/shared/events"
)

// EventPublisher serializes domain events as CloudEvents JSON and hands them
// to the producer. Event names follow the "<aggregate>.<action>" convention;
// the aggregate prefix selects the topic, the aggregate id is the partition
// key so per-conversation ordering survives the broker.
type EventPublisher struct {
	Producer    *Producer
	TopicPrefix string
	Source      string
	Logger      *slog.Logger
}

func (p *EventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	envelope := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            event.EventName() + ".v1",
		"source":          p.source(),
		"time":            event.OccurredAt(),
		"datacontenttype": "application/json",
		"data":            json.RawMessage(data),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	topic := p.topicFor(event.EventName())
	if err := p.Producer.Publish(ctx, topic, event.AggregateID(), payload, headers); err != nil {
		if p.Logger != nil {
			p.Logger.Error("event publish failed", "topic", topic, "event", event.EventName(), "error", err)
		}
		return err
	}
	return nil
}

func (p *EventPublisher) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if p.TopicPrefix != "" {
		topic = p.TopicPrefix + topic
	}
	return topic
}

func (p *EventPublisher) source() string {
	if p.Source != "" {
		return p.Source
	}
	return "artisanchat"
}
