package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// --- Event tests ---

type reviewPayload struct {
	ProductID string  `json:"product_id"`
	Rating    float64 `json:"rating"`
}

func TestNewEvent_Fields(t *testing.T) {
	data := reviewPayload{ProductID: "64b7f0c2a1b2c3d4e5f60718", Rating: 4.5}
	event, err := NewEvent("product.reviewed", data.ProductID, "product", "storefront", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "product.reviewed", event.EventType)
	assert.Equal(t, data.ProductID, event.AggregateID)
	assert.Equal(t, "product", event.AggregateType)
	assert.Equal(t, "storefront", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.OccurredAt, 2*time.Second)
	assert.Empty(t, event.ActorID)

	var got reviewPayload
	require.NoError(t, event.Decode(&got))
	assert.Equal(t, data, got)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("order.paid", "ord-1", "order", "storefront", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.paid")
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	original, err := NewEvent("order.paid", "ord-9", "order", "storefront", map[string]any{"total_price": 57.5})
	require.NoError(t, err)
	original.WithCorrelationID("corr-abc").WithActor("bbbbbbbbbbbbbbbbbbbbbbbb")

	raw, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, "corr-abc", restored.CorrelationID)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbb", restored.ActorID)
	assert.JSONEq(t, string(original.Data), string(restored.Data))
	assert.WithinDuration(t, original.OccurredAt, restored.OccurredAt, time.Millisecond)
}

func TestEvent_ChainingReturnsSameEvent(t *testing.T) {
	event, err := NewEvent("product.created", "p1", "product", "storefront", nil)
	require.NoError(t, err)
	assert.Same(t, event, event.WithCorrelationID("c"))
	assert.Same(t, event, event.WithActor("u"))
}

func TestEvent_DecodeInvalid(t *testing.T) {
	event := &Event{EventType: "product.updated", Data: json.RawMessage(`not json`)}
	var target map[string]string
	err := event.Decode(&target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product.updated")
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	for _, in := range [][]byte{[]byte(`{broken`), {}} {
		_, err := UnmarshalEvent(in)
		assert.Error(t, err)
	}
}

// --- ProducerConfig tests ---

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"broker1:9092", "broker2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestDefaultProducerConfig_SingleBroker(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	assert.Len(t, cfg.Brokers, 1)
	assert.Equal(t, "localhost:9092", cfg.Brokers[0])
}

// --- Topic tests ---

func TestTopic_Format(t *testing.T) {
	assert.Equal(t, "storefront", TopicPrefix)
	tests := []struct {
		domain, action, want string
	}{
		{"product", "reviewed", "storefront.product.reviewed"},
		{"order", "paid", "storefront.order.paid"},
		{"order", "delivered", "storefront.order.delivered"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Topic(tt.domain, tt.action))
		})
	}
}

// --- Producer tests ---

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestProducer_Publish_WritesEnvelope(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, []string{"localhost:9092"}, nil)

	event, err := NewEvent("product.reviewed", "64b7f0c2a1b2c3d4e5f60718", "product", "storefront", map[string]any{"rating": 4.5})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	require.NoError(t, p.Publish(ctx, Topic("product", "reviewed"), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "storefront.product.reviewed", msg.Topic)
	assert.Equal(t, []byte("64b7f0c2a1b2c3d4e5f60718"), msg.Key)

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "product.reviewed", carrier.Get("event_type"))
	assert.Equal(t, "corr-1", carrier.Get("correlation_id"))
	assert.Contains(t, carrier.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")

	restored, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, restored.EventID)
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, nil)

	event, err := NewEvent("order.paid", "ord-1", "order", "storefront", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), Topic("order", "paid"), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storefront.order.paid")
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, nil)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewProducer_CreatesInstance(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:19092"})
	p := NewProducer(cfg, nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestProducer_Publish_CountsOutcomes(t *testing.T) {
	topic := Topic("order", "delivered")
	okBefore := testutil.ToFloat64(eventsPublished.WithLabelValues(topic, outcomeOK))
	errBefore := testutil.ToFloat64(eventsPublished.WithLabelValues(topic, outcomeError))

	event, err := NewEvent("order.delivered", "ord-2", "order", "storefront", nil)
	require.NoError(t, err)

	require.NoError(t, NewProducerWithWriter(&fakeWriter{}, nil, nil).Publish(context.Background(), topic, event))
	require.Error(t, NewProducerWithWriter(&fakeWriter{err: errors.New("timeout")}, nil, nil).Publish(context.Background(), topic, event))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(eventsPublished.WithLabelValues(topic, outcomeOK)))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(eventsPublished.WithLabelValues(topic, outcomeError)))
}
