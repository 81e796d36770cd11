// Package events publishes transcript units to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speech-transcription-service/internal/models"
	"speech-transcription-service/internal/observability/metrics"
	"speech-transcription-service/internal/service/session"
)

// Publisher publishes transcript events to separate Kafka topics for
// online partials and offline finals. When disabled it degrades to
// log-only mode so the pipeline can run without a broker.
type Publisher struct {
	writerPartial *kafka.Writer
	writerFinal   *kafka.Writer
	principal     string
	topicPartial  string
	topicFinal    string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
	Enabled      bool
}

// New creates a Kafka publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, transcript events in log-only mode")
		p := &Publisher{enabled: false, metrics: m}
		if cfg != nil {
			p.principal = cfg.Principal
			p.topicPartial = cfg.TopicPartial
			p.topicFinal = cfg.TopicFinal
		}
		return p
	}

	// Longer dial timeouts for DNS resolution inside Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerPartial: newWriter(cfg.TopicPartial),
		writerFinal:   newWriter(cfg.TopicFinal),
		principal:     cfg.Principal,
		topicPartial:  cfg.TopicPartial,
		topicFinal:    cfg.TopicFinal,
		enabled:       true,
		metrics:       m,
	}
}

// Enabled reports whether events actually reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishUnit publishes one transcript unit, keyed by session ID so a
// session's units stay ordered within a partition.
func (p *Publisher) PublishUnit(ctx context.Context, unit session.TranscriptUnit) error {
	ev := models.FromUnit(unit)
	ev.Timestamp = time.Now().UnixMilli()

	writer, topic := p.writerPartial, p.topicPartial
	if unit.Final {
		writer, topic = p.writerFinal, p.topicFinal
	}
	return p.publish(ctx, writer, topic, ev)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic string, ev models.TranscriptUnitEvent) error {
	start := time.Now()

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal transcript event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("sessionId", ev.SessionID).
		RawJSON("payload", payload).
		Msg("Publishing transcript event")

	if !p.enabled || writer == nil {
		p.metrics.RecordPublish(topic, ev.Pass, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(ev.EventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("sessionId", ev.SessionID).
			Msg("Failed to write to Kafka")
		p.metrics.RecordPublish(topic, ev.Pass, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordPublish(topic, ev.Pass, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerPartial != nil {
		if e := p.writerPartial.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing partial writer")
			err = e
		}
	}
	if p.writerFinal != nil {
		if e := p.writerFinal.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing final writer")
			err = e
		}
	}
	return err
}
