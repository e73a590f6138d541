// Package events streams applied telemetry and generated alerts to
// Kafka for downstream consumers (analytics pipelines, notification
// fan-out). Publication is best-effort and never gates a request.
package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/pkg/logger"
)

// KafkaPublisher is a Kafka-backed implementation of EventPublisher.
// It keeps one writer per topic so telemetry volume never delays alert
// delivery.
type KafkaPublisher struct {
	telemetryWriter *kafka.Writer
	alertWriter     *kafka.Writer
	log             logger.Logger
}

var _ service.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a new KafkaPublisher from cfg.
func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) *KafkaPublisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: cfg.WriteTimeout,
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
		}
	}
	return &KafkaPublisher{
		telemetryWriter: newWriter(cfg.TelemetryTopic),
		alertWriter:     newWriter(cfg.AlertTopic),
		log:             log.WithComponent("kafka-publisher"),
	}
}

// PublishTelemetry sends an applied reading to the telemetry topic,
// keyed by bin so per-bin ordering survives partitioning.
func (p *KafkaPublisher) PublishTelemetry(ctx context.Context, reading models.TelemetryReading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		p.log.Error(ctx, "Failed to marshal telemetry event", err,
			logger.String("bin_id", reading.BinID))
		return err
	}
	err = p.telemetryWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(reading.BinID),
		Value: payload,
	})
	if err != nil {
		p.log.Error(ctx, "Failed to publish telemetry event", err,
			logger.String("bin_id", reading.BinID))
	}
	return err
}

// PublishAlert sends a generated alert to the alert topic.
func (p *KafkaPublisher) PublishAlert(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		p.log.Error(ctx, "Failed to marshal alert event", err,
			logger.String("alert_id", alert.ID))
		return err
	}
	err = p.alertWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.BinID),
		Value: payload,
	})
	if err != nil {
		p.log.Error(ctx, "Failed to publish alert event", err,
			logger.String("alert_id", alert.ID))
	}
	return err
}

// Close flushes and closes both writers.
func (p *KafkaPublisher) Close() error {
	telemetryErr := p.telemetryWriter.Close()
	alertErr := p.alertWriter.Close()
	if telemetryErr != nil {
		return telemetryErr
	}
	return alertErr
}

// NoopPublisher satisfies EventPublisher when Kafka is disabled.
type NoopPublisher struct{}

var _ service.EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishTelemetry(context.Context, models.TelemetryReading) error { return nil }
func (NoopPublisher) PublishAlert(context.Context, models.Alert) error                { return nil }
func (NoopPublisher) Close() error                                                    { return nil }
