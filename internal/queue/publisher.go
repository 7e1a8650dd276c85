package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kirinyoku/checkin-go/internal/domain"
)

// Publisher keeps one broker connection and channel open and redials
// lazily after the broker drops them. Messages are persistent and go to a
// durable queue through the default exchange.
type Publisher struct {
	url    string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{url: url, logger: logger, now: time.Now}
}

// Connect dials the broker and declares the queue. It is safe to call
// again after a failure.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connectLocked()
}

func (p *Publisher) connectLocked() error {
	const op = "queue.Publisher.connect"

	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return fmt.Errorf("%s: dial:%w", op, err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("%s: channel:%w", op, err)
	}

	if _, err := ch.QueueDeclare(
		CheckInConfirmedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		return fmt.Errorf("%s: queue declare:%w", op, err)
	}

	p.ch = ch

	return nil
}

func (p *Publisher) PublishCheckInConfirmed(ctx context.Context, res domain.CheckInResult) error {
	const op = "queue.Publisher.PublishCheckInConfirmed"

	body, err := json.Marshal(NewCheckInConfirmedEvent(res, p.now()))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err = p.ch.PublishWithContext(ctx,
		"",                    // default exchange
		CheckInConfirmedQueue, // routing key = queue name
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		_ = p.ch.Close()
		p.ch = nil
		return fmt.Errorf("%s:%w", op, err)
	}

	p.logger.Debug("queue: check-in confirmation published",
		slog.Int64("passenger_id", res.PassengerID),
		slog.String("seat", res.SeatLabel),
	)

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}

	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}

	return nil
}
