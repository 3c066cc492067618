package kafka

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/guildkit/ticketd/internal/model"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{"a:9092,b:9092", []string{"a:9092", "b:9092"}},
		{" a:9092 , b:9092 ,", []string{"a:9092", "b:9092"}},
		{",,", nil},
	}
	for _, tt := range tests {
		if got := ParseBrokers(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseBrokers(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSessionPayload(t *testing.T) {
	now := time.Now()
	rating := 4
	sess := &model.TicketSession{
		TicketID:    7,
		GuildID:     "guild-1",
		ThreadID:    "thread-1",
		OpenedBy:    "alice",
		Category:    "billing",
		Status:      model.SessionClosed,
		ClaimedBy:   "staffA",
		ClosedBy:    "staffA",
		CloseReason: "resolved",
		CloseTime:   &now,
		Rating:      &rating,
	}
	payload := SessionPayload(sess)
	if payload["ticket_id"] != int64(7) || payload["status"] != "closed" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["claimed_by"] != "staffA" || payload["close_reason"] != "resolved" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["rating"] != 4 {
		t.Fatalf("rating = %v", payload["rating"])
	}
}

func TestSessionPayloadOmitsUnsetFields(t *testing.T) {
	payload := SessionPayload(&model.TicketSession{TicketID: 1, Status: model.SessionOpen})
	for _, key := range []string{"claimed_by", "closed_by", "close_reason", "rating"} {
		if _, ok := payload[key]; ok {
			t.Errorf("payload carries unset field %q", key)
		}
	}
	if SessionPayload(nil) != nil {
		t.Error("nil session should yield nil payload")
	}
}

func TestUnconfiguredProducerIsNoOp(t *testing.T) {
	for _, p := range []*Producer{
		NewProducer(nil, "ticket-events"),
		NewProducer([]string{"localhost:9092"}, ""),
	} {
		// Must not panic or attempt a connection.
		p.ProduceTicketEvent(context.Background(), "ticket.opened", map[string]interface{}{"ticket_id": 1})
		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}
