// Package kafkapub forwards store change events to a Kafka topic.
package kafkapub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/mapstate/internal/core/observability"
	"github.com/mohammed-shakir/mapstate/internal/events"
)

type Publisher struct {
	log     *slog.Logger
	topic   string
	events  chan events.Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errDone chan struct{}
}

func New(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkapub: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, logger), nil
}

func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		log:     logger,
		topic:   topic,
		events:  make(chan events.Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("kafkapub: marshal event", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Session),
				Value: sarama.ByteEncoder(b),
			}
			p.prod.Input() <- msg
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncEventPublishError()
				p.log.Error("kafkapub: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev; a full queue drops the event so callers never block.
func (p *Publisher) Publish(ev events.Event) {
	select {
	case p.events <- ev:
	default:
		observability.IncEventDropped()
	}
}

// Forward publishes everything received on ch until ctx ends or ch closes.
func (p *Publisher) Forward(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			p.Publish(ev)
		}
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("kafkapub: close producer: %w", err)
	}
	<-p.errDone
	return nil
}
