package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobMessage is the body of every message on the generation queue.
type JobMessage struct {
	JobID string `json:"job_id"`
}

var ErrBadMessage = errors.New("rabbitmq: bad job message")

func EncodeJob(jobID string) ([]byte, error) {
	return json.Marshal(JobMessage{JobID: jobID})
}

func DecodeJob(body []byte) (string, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", errors.Join(ErrBadMessage, err)
	}
	if strings.TrimSpace(m.JobID) == "" {
		return "", ErrBadMessage
	}
	return m.JobID, nil
}

func retryQueue(queue string) string { return queue + ".retry" }
func deadQueue(queue string) string { return queue + ".dlq" }

// declareTopology declares queue, its retry queue (expired messages go back
// to queue) and its dead letter queue (rejected messages end up there).
// Publisher and Consumer both call it so either can start first.
func declareTopology(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(deadQueue(queue), true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(retryQueue(queue), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": deadQueue(queue),
	})
	return err
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishJob sends a persistent job message to the main queue.
func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	body, err := EncodeJob(jobID)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
