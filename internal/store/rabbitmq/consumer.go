package rabbitmq

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const attemptHeader = "x-attempt"

// Handler processes one job id. A returned error schedules a retry.
type Handler func(ctx context.Context, jobID string) error

type ConsumerConfig struct {
	Queue       string
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.Concurrency > 50 {
		c.Concurrency = 50
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	return c
}

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  ConsumerConfig
}

func NewConsumer(url string, cfg ConsumerConfig) (*Consumer, error) {
	cfg = cfg.withDefaults()
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, cfg.Queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	// strict concurrency control
	if err := ch.Qos(cfg.Concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, cfg: cfg}, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Outcome is what happens to a delivery after its handler ran.
type Outcome int

const (
	Ack Outcome = iota
	Retry
	DeadLetter
)

// Decide maps a handler result and the delivery's attempt number to an outcome.
func Decide(handlerErr error, attempt, maxRetries int) Outcome {
	if handlerErr == nil {
		return Ack
	}
	if attempt < maxRetries {
		return Retry
	}
	return DeadLetter
}

func attemptOf(d amqp.Delivery) int {
	switch v := d.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Run consumes until ctx is done, fanning deliveries out to a fixed worker
// pool. It returns after in-flight handlers have finished.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	msgs, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Printf("worker started, queue=%s concurrency=%d", c.cfg.Queue, c.cfg.Concurrency)
	return c.dispatch(ctx, msgs, handle)
}

// dispatch fans msgs out to the worker pool until ctx is done or msgs closes.
// A delivery that has no free worker at shutdown is requeued.
func (c *Consumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery, handle Handler) error {
	jobs := make(chan amqp.Delivery, c.cfg.Concurrency*2)

	var wg sync.WaitGroup
	wg.Add(c.cfg.Concurrency)
	for i := 0; i < c.cfg.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d, handle)
			}
		}(i)
	}

	stop := func() {
		close(jobs)
		wg.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			stop()
			return nil

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				stop()
				return amqp.ErrClosed
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				log.Printf("worker shutting down, requeue undispatched delivery")
				_ = d.Nack(false, true)
				stop()
				return nil
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery, handle Handler) {
	jobID, err := DecodeJob(d.Body)
	if err != nil {
		log.Printf("worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	attempt := attemptOf(d)
	herr := handle(ctx, jobID)

	switch Decide(herr, attempt, c.cfg.MaxRetries) {
	case Ack:
		if err := d.Ack(false); err != nil {
			log.Printf("worker=%d ack failed job=%s err=%v", workerID, jobID, err)
		}
	case Retry:
		log.Printf("worker=%d job %s failed attempt=%d cost=%s err=%v, retrying", workerID, jobID, attempt, time.Since(start), herr)
		if err := c.retry(ctx, d, attempt+1); err != nil {
			log.Printf("worker=%d retry publish failed job=%s err=%v", workerID, jobID, err)
			_ = d.Nack(false, false)
			return
		}
		_ = d.Ack(false)
	case DeadLetter:
		log.Printf("worker=%d job %s failed attempt=%d cost=%s err=%v, dead-lettering", workerID, jobID, attempt, time.Since(start), herr)
		_ = d.Nack(false, false)
	}
}

// retry parks the message on the retry queue; its per-message TTL sends it
// back to the main queue.
func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, attempt int) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return c.ch.PublishWithContext(cctx, "", retryQueue(c.cfg.Queue), false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Timestamp:    time.Now(),
		Expiration:   strconv.FormatInt(c.cfg.RetryDelay.Milliseconds(), 10),
		Headers:      amqp.Table{attemptHeader: int32(attempt)},
	})
}
