package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMessageRoundTrip(t *testing.T) {
	body, err := EncodeJob("01J0000000000000000000000A")
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"01J0000000000000000000000A"}`, string(body))

	id, err := DecodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, "01J0000000000000000000000A", id)
}

func TestDecodeJob_Rejects(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"job_id":"  "}`} {
		_, err := DecodeJob([]byte(body))
		assert.ErrorIs(t, err, ErrBadMessage, body)
	}
}

func TestDecide(t *testing.T) {
	boom := errors.New("db down")
	assert.Equal(t, Ack, Decide(nil, 5, 3))
	assert.Equal(t, Retry, Decide(boom, 0, 3))
	assert.Equal(t, Retry, Decide(boom, 2, 3))
	assert.Equal(t, DeadLetter, Decide(boom, 3, 3))
	assert.Equal(t, DeadLetter, Decide(boom, 0, 0))
}

func TestAttemptOf(t *testing.T) {
	assert.Equal(t, 0, attemptOf(amqp.Delivery{}))
	assert.Equal(t, 2, attemptOf(amqp.Delivery{Headers: amqp.Table{attemptHeader: int32(2)}}))
	assert.Equal(t, 4, attemptOf(amqp.Delivery{Headers: amqp.Table{attemptHeader: int64(4)}}))
}

func TestConsumerConfigDefaults(t *testing.T) {
	cfg := ConsumerConfig{Queue: "q", Concurrency: 500, MaxRetries: -1}.withDefaults()
	assert.Equal(t, 50, cfg.Concurrency)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)

	assert.Equal(t, "q.retry", retryQueue("q"))
	assert.Equal(t, "q.dlq", deadQueue("q"))
}

type fakeAcker struct {
	mu       sync.Mutex
	acked    []uint64
	requeued []uint64
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued = append(a.requeued, tag)
	}
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func TestDispatch_ShutdownWithBusyWorkers(t *testing.T) {
	c := &Consumer{cfg: ConsumerConfig{Queue: "q", Concurrency: 1}.withDefaults()}
	acker := &fakeAcker{}

	// one in the worker, two buffered, the fourth waits for a free slot
	msgs := make(chan amqp.Delivery, 4)
	for i := 1; i <= 4; i++ {
		body, err := EncodeJob(fmt.Sprintf("job-%d", i))
		require.NoError(t, err)
		msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: uint64(i), Body: body}
	}

	var mu sync.Mutex
	var handled []string
	started := make(chan struct{})
	handle := func(ctx context.Context, jobID string) error {
		mu.Lock()
		handled = append(handled, jobID)
		first := len(handled) == 1
		mu.Unlock()
		if first {
			close(started)
			<-ctx.Done()
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.dispatch(ctx, msgs, handle) }()

	<-started
	require.Eventually(t, func() bool { return len(msgs) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return after shutdown")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"job-1", "job-2", "job-3"}, handled)
	assert.Equal(t, []uint64{4}, acker.requeued)
	assert.ElementsMatch(t, []uint64{1, 2, 3}, acker.acked)
}
