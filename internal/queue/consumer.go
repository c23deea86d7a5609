package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// BookingLogConsumer listens to the booking.confirmed queue and appends
// one line per booking to a log file.  A malformed message is rejected
// without requeue so it cannot spin.
type BookingLogConsumer struct {
	url  string
	path string
	log  logger.Logger

	mu sync.Mutex // serialises file appends
}

// NewBookingLogConsumer writes to path, logs/booking.log when empty.
func NewBookingLogConsumer(url, path string, log logger.Logger) *BookingLogConsumer {
	if path == "" {
		path = filepath.Join("logs", "booking.log")
	}
	return &BookingLogConsumer{url: url, path: path, log: log.With("component", "booking-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff.
func (c *BookingLogConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *BookingLogConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", "error", err)
	}
	queue := QueueName(model.EventBookingConfirmed)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.Warn("handle message failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle appends the booking described by body to the log file.
func (c *BookingLogConsumer) Handle(body []byte) error {
	var msg EventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if msg.BookingID == "" {
		return errors.New("message without booking_id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatBookingLine(msg)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatBookingLine renders a booking.confirmed message as one
// human-friendly log line.
func FormatBookingLine(msg EventMessage) string {
	return fmt.Sprintf("[%s] Booking confirmed | booking_id=%s | hold_id=%s | screening_id=%s | seats=[%s] | seat_remain=%d\n",
		msg.OccurredAt, msg.BookingID, msg.HoldID, msg.ScreeningID, strings.Join(msg.Seats, ","), msg.SeatRemain)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
