package kafkax

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestProducerPublishSetsMetaHeaders(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := p.Publish(context.Background(), "booking.reservation.created.v1", "slot-1", []byte(`{}`))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	meta := ExtractEventMeta(w.msgs[0])
	if meta.EventID != id || meta.EventType != "booking.reservation.created.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if w.msgs[0].Topic != "booking.reservation.created.v1" || string(w.msgs[0].Key) != "slot-1" {
		t.Fatalf("unexpected message: %+v", w.msgs[0])
	}
}

func TestProducerWithoutBrokersIsNoop(t *testing.T) {
	p := NewProducer("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := p.Publish(context.Background(), "x", "k", nil); err != nil {
		t.Fatalf("expected noop publish, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka:9092, ,kafka-2:9092")
	if len(got) != 2 || got[0] != "kafka:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}
