package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/metrics"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel and returns a function closing it together
// with its connection.
type dialFunc func(url string) (amqpChannel, func() error, error)

func dialAMQP(url string) (amqpChannel, func() error, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(5 * time.Second),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	return ch, func() error {
		_ = ch.Close()
		return conn.Close()
	}, nil
}

// Publisher sends inventory events to RabbitMQ from a single worker.
// Publish only enqueues, so it is safe to call from request paths; a
// full buffer drops the event with a warning.  Messages are persistent
// and each event type has its own durable queue.
type Publisher struct {
	url     string
	dial    dialFunc
	events  chan model.Event
	log     logger.Logger
	metrics *metrics.Collectors
	timeout time.Duration

	ch       amqpChannel
	close    func() error
	declared map[string]bool
}

// NewPublisher returns a publisher with room for buffer pending events.
func NewPublisher(url string, buffer int, log logger.Logger, m *metrics.Collectors) *Publisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Publisher{
		url:      url,
		dial:     dialAMQP,
		events:   make(chan model.Event, buffer),
		log:      log.With("component", "publisher"),
		metrics:  m,
		timeout:  5 * time.Second,
		declared: make(map[string]bool),
	}
}

// Publish enqueues ev without blocking.
func (p *Publisher) Publish(_ context.Context, ev model.Event) {
	select {
	case p.events <- ev:
	default:
		p.metrics.EventDropped()
		p.log.Warn("event buffer full, dropping event",
			"type", string(ev.Type),
			"screening_id", ev.ScreeningID,
		)
	}
}

// Run sends queued events until ctx is cancelled, then flushes what is
// still buffered.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.reset()
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return nil
		case ev := <-p.events:
			p.deliver(ctx, ev)
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	for {
		select {
		case ev := <-p.events:
			if ctx.Err() != nil {
				p.metrics.EventDropped()
				continue
			}
			p.deliver(ctx, ev)
		default:
			return
		}
	}
}

// deliver publishes ev, redialling once if the channel broke.
func (p *Publisher) deliver(ctx context.Context, ev model.Event) {
	err := p.send(ctx, ev)
	if err != nil {
		p.reset()
		err = p.send(ctx, ev)
	}
	if err != nil {
		p.reset()
		p.metrics.EventDropped()
		p.log.Warn("event publish failed",
			"type", string(ev.Type),
			"screening_id", ev.ScreeningID,
			"error", err,
		)
	}
}

func (p *Publisher) send(ctx context.Context, ev model.Event) error {
	if p.ch == nil {
		ch, closeFn, err := p.dial(p.url)
		if err != nil {
			return err
		}
		p.ch, p.close = ch, closeFn
		p.declared = make(map[string]bool)
	}
	queue := QueueName(ev.Type)
	if !p.declared[queue] {
		// Durable so messages survive broker restarts.
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", queue, err)
		}
		p.declared[queue] = true
	}
	body, err := json.Marshal(NewEventMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.ch.PublishWithContext(pubCtx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.At.UTC(),
			Type:         string(ev.Type),
			Body:         body,
		},
	)
}

func (p *Publisher) reset() {
	if p.close != nil {
		_ = p.close()
	}
	p.ch, p.close = nil, nil
}
