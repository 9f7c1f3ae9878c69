package outbox

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher routes outbox events to a kafka topic per aggregate type,
// so order and payment events land on their own streams.
type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topics   map[string]string
}

func NewDispatcher(log *slog.Logger, producer Producer, topics map[string]string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topics: topics}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	headers := make([]kafka.Header, 0, len(event.Headers)+2)

	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(event.Type)})
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(event.Traceparent)})
	}

	topic, ok := d.topics[event.AggregateType]
	if !ok {
		d.log.Warn("no topic for aggregate, skipping", "aggregate_type", event.AggregateType, "event_id", event.ID)
		return nil
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(strconv.FormatInt(event.AggregateID, 10)),
		Value:   event.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}
