package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"botpulse/internal/chain"
)

// Sink receives the events indexed for one bot.
type Sink interface {
	Emit(ctx context.Context, botID uint64, events []chain.Event) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each event as one message keyed by bot id, so a bot's
// events land on a single partition.
type KafkaSink struct {
	w messageWriter
}

// NewKafkaSink writes to topic on the comma-separated brokers.
func NewKafkaSink(brokers, topic string) (*KafkaSink, error) {
	if brokers == "" {
		return nil, fmt.Errorf("kafka sink: no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sink: no topic configured")
	}
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}, nil
}

func (s *KafkaSink) Emit(ctx context.Context, botID uint64, events []chain.Event) error {
	if len(events) == 0 {
		return nil
	}
	key := []byte(strconv.FormatUint(botID, 10))
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := chain.MarshalEvent(e)
		if err != nil {
			return fmt.Errorf("encoding %s event: %w", e.Kind(), err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     key,
			Value:   value,
			Headers: []kafka.Header{{Key: "kind", Value: []byte(e.Kind())}},
		})
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing %d events for bot %d: %w", len(msgs), botID, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

// WriterSink writes one JSON object per event per line.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

type line struct {
	BotID uint64          `json:"bot_id"`
	Event json.RawMessage `json:"event"`
}

func (s *WriterSink) Emit(_ context.Context, botID uint64, events []chain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		raw, err := chain.MarshalEvent(e)
		if err != nil {
			return fmt.Errorf("encoding %s event: %w", e.Kind(), err)
		}
		if err := s.enc.Encode(line{BotID: botID, Event: raw}); err != nil {
			return fmt.Errorf("writing event for bot %d: %w", botID, err)
		}
	}
	return nil
}

func (s *WriterSink) Close() error { return nil }
