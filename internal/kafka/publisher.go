// Package kafka mirrors classified records onto a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/ichi-a/geo-shock/internal/classify"
)

// Publisher is an ingest sink backed by an async producer. Records are keyed
// by fingerprint so one visitor's records stay on one partition.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	done     chan struct{}
}

// NewConfig returns the producer settings the publisher expects.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "geo-shock"
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond
	cfg.Producer.Return.Errors = true
	return cfg
}

// Dial connects to brokers and returns a running Publisher.
func Dial(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	producer, err := sarama.NewAsyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewPublisher(producer, topic, logger), nil
}

// NewPublisher wraps an existing producer.
func NewPublisher(producer sarama.AsyncProducer, topic string, logger *slog.Logger) *Publisher {
	p := &Publisher{producer: producer, topic: topic, logger: logger, done: make(chan struct{})}
	go p.drainErrors()
	return p
}

// Name identifies this sink in logs and metrics.
func (p *Publisher) Name() string { return "kafka" }

// Insert queues r for delivery. Delivery failures are reported asynchronously.
func (p *Publisher) Insert(ctx context.Context, r classify.Record) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(r.Fingerprint),
		Value:     sarama.ByteEncoder(value),
		Timestamp: r.Timestamp,
	}
	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending messages and stops the producer.
func (p *Publisher) Close() error {
	err := p.producer.Close()
	<-p.done
	return err
}

func (p *Publisher) drainErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		p.logger.Error("kafka: publish failed", "topic", p.topic, "err", perr.Err)
	}
}
