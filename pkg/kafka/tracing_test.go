package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier_GetSetKeys(t *testing.T) {
	headers := []kafka.Header{{Key: "event_type", Value: []byte("order.paid")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "order.paid", c.Get("event_type"))
	assert.Empty(t, c.Get("missing"))

	c.Set("event_type", "order.delivered")
	c.Set("source", "storefront")
	assert.Len(t, headers, 2)
	assert.Equal(t, "order.delivered", c.Get("event_type"))
	assert.ElementsMatch(t, []string{"event_type", "source"}, c.Keys())
}

func TestHeaderCarrier_EmptyHeaders(t *testing.T) {
	var headers []kafka.Header
	c := NewHeaderCarrier(&headers)
	assert.Empty(t, c.Keys())
	assert.Empty(t, c.Get("traceparent"))
}

func TestHeaderCarrier_InjectExtract(t *testing.T) {
	prop := propagation.TraceContext{}
	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	var headers []kafka.Header
	prop.Inject(ctx, NewHeaderCarrier(&headers))
	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", NewHeaderCarrier(&headers).Get("traceparent"))

	sc := trace.SpanContextFromContext(prop.Extract(context.Background(), NewHeaderCarrier(&headers)))
	assert.Equal(t, traceID, sc.TraceID())
	assert.Equal(t, spanID, sc.SpanID())
	assert.True(t, sc.IsRemote())
}
