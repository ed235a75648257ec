package queue

import (
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakePublisher struct {
	out []published
	err error
}

func (f *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.out = append(f.out, published{key: key, msg: msg})
	return nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error {
	f.acked++
	return nil
}

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error {
	return nil
}

func delivery(ack *fakeAck, headers amqp091.Table) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Headers:      headers,
		Body:         []byte(`{"tenant_id":"t1"}`),
	}
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 3, retryCount(amqp091.Table{"x-retries": int32(3)}))
	assert.Equal(t, 4, retryCount(amqp091.Table{"x-retries": int64(4)}))
	assert.Equal(t, 5, retryCount(amqp091.Table{"x-retries": 5}))
	assert.Equal(t, 0, retryCount(amqp091.Table{"x-retries": "7"}))
}

func TestHandleProcessingErrorRetries(t *testing.T) {
	pub := &fakePublisher{}
	ack := &fakeAck{}
	headers := amqp091.Table{"x-retries": int32(2)}

	HandleProcessingError(pub, delivery(ack, headers), BuildQueue)

	require.Len(t, pub.out, 1)
	assert.Equal(t, "graph_build_queue_retry", pub.out[0].key)
	assert.Equal(t, int32(3), pub.out[0].msg.Headers["x-retries"])
	assert.Equal(t, int32(2), headers["x-retries"])
	assert.Equal(t, 1, ack.acked)
}

func TestHandleProcessingErrorDeadLetters(t *testing.T) {
	pub := &fakePublisher{}
	ack := &fakeAck{}

	HandleProcessingError(pub, delivery(ack, amqp091.Table{"x-retries": int32(MaxRetries)}), BuildQueue)

	require.Len(t, pub.out, 1)
	assert.Equal(t, "graph_build_queue_dlq", pub.out[0].key)
	assert.Equal(t, 1, ack.acked)
}

func TestHandleProcessingErrorRequeuesWhenPublishFails(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	ack := &fakeAck{}

	HandleProcessingError(pub, delivery(ack, nil), BuildQueue)

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
}
