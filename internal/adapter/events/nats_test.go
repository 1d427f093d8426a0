package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/simaogato/payments-backend/internal/domain"
)

type recordingConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *recordingConn) PublishMsg(msg *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func committedEvent() domain.TransferCommitted {
	return domain.NewTransferCommitted(&domain.Transfer{
		ID:            uuid.New(),
		SourceID:      uuid.New(),
		DestinationID: uuid.New(),
		Amount:        decimal.NewFromInt(30),
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
}

func TestNATSPublisher_PublishesJSONWithTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	conn := &recordingConn{}
	p := &NATSPublisher{conn: conn}

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	event := committedEvent()
	require.NoError(t, p.PublishTransferCommitted(ctx, event))

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, SubjectTransferCommitted, msg.Subject)
	assert.Contains(t, msg.Header.Get("Traceparent"), spanCtx.TraceID().String())

	var decoded domain.TransferCommitted
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, event, decoded)
	assert.Equal(t, "30.00", decoded.Amount)
}

func TestNATSPublisher_ReturnsPublishError(t *testing.T) {
	p := &NATSPublisher{conn: &recordingConn{err: nats.ErrConnectionClosed}}

	err := p.PublishTransferCommitted(context.Background(), committedEvent())
	assert.True(t, errors.Is(err, nats.ErrConnectionClosed))
}

func TestNoopPublisher(t *testing.T) {
	var p domain.EventPublisher = NoopPublisher{}
	assert.NoError(t, p.PublishTransferCommitted(context.Background(), committedEvent()))
}
