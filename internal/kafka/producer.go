package kafka

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guildkit/ticketd/internal/model"
	"github.com/segmentio/kafka-go"
)

// EventProducer publishes ticket lifecycle events (swappable with a mock in
// tests).
type EventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer writes lifecycle events to a Kafka topic, best-effort: a broker
// outage never blocks or fails a user action.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer returns a producer; with no brokers or topic every method is
// a no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// SessionPayload flattens a session into the event payload shape.
func SessionPayload(s *model.TicketSession) map[string]interface{} {
	if s == nil {
		return nil
	}
	payload := map[string]interface{}{
		"ticket_id": s.TicketID,
		"guild_id":  s.GuildID,
		"thread_id": s.ThreadID,
		"opened_by": s.OpenedBy,
		"status":    string(s.Status),
		"category":  s.Category,
	}
	if s.ClaimedBy != "" {
		payload["claimed_by"] = s.ClaimedBy
	}
	if s.ClosedBy != "" {
		payload["closed_by"] = s.ClosedBy
		payload["close_reason"] = s.CloseReason
	}
	if s.Rating != nil {
		payload["rating"] = *s.Rating
	}
	return payload
}

// ProduceTicketEvent publishes one lifecycle event with a fresh event id.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	msg := map[string]interface{}{
		"event":      event,
		"event_id":   uuid.NewString(),
		"emitted_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("kafka: marshal %s event: %v", event, err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		log.Printf("kafka: write %s event: %v", event, err)
	}
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers splits "host1:9092,host2:9092" into a broker slice.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
