package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/simaogato/payments-backend/internal/domain"
	"github.com/simaogato/payments-backend/internal/telemetry"
)

// SubjectTransferCommitted is the subject committed transfers are published on
const SubjectTransferCommitted = "payments.transfers.committed"

// msgPublisher is the part of *nats.Conn the publisher needs
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher implements domain.EventPublisher over NATS core publish
type NATSPublisher struct {
	conn   msgPublisher
	nc     *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher connects to url and returns a publisher
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = telemetry.Logger
	}
	logger = logger.With(slog.String("component", "nats"))

	opts := []nats.Option{
		nats.Name("payments-backend"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: nc, nc: nc, logger: logger}, nil
}

// PublishTransferCommitted publishes event as JSON, carrying the trace context in headers
func (p *NATSPublisher) PublishTransferCommitted(ctx context.Context, event domain.TransferCommitted) error {
	data, err := json.Marshal(event)
	if err != nil {
		telemetry.EventsPublishedTotal.WithLabelValues(SubjectTransferCommitted, "error").Inc()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(SubjectTransferCommitted)
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))

	if err := p.conn.PublishMsg(msg); err != nil {
		telemetry.EventsPublishedTotal.WithLabelValues(SubjectTransferCommitted, "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	telemetry.EventsPublishedTotal.WithLabelValues(SubjectTransferCommitted, "ok").Inc()
	return nil
}

// Close drains and closes the NATS connection
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// NoopPublisher discards events. It is used when no broker is configured.
type NoopPublisher struct{}

// PublishTransferCommitted does nothing
func (NoopPublisher) PublishTransferCommitted(context.Context, domain.TransferCommitted) error {
	return nil
}
