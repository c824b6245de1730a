package rabbitmq

import (
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

func TestRetryAttemptFromHandlerError(t *testing.T) {
	// A plain nack requeue leaves headers empty, so the attempt carried on
	// the handler error is what makes the backoff grow.
	err := &entity.RetryableError{Attempt: 4, Err: fmt.Errorf("select_frames: broken stream")}
	assert.Equal(t, 4, retryAttempt(amqp.Delivery{}, err))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, 4, retryAttempt(amqp.Delivery{}, wrapped))
}

func TestRetryAttemptFromDeathHeader(t *testing.T) {
	d := amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{amqp.Table{}, amqp.Table{}, amqp.Table{}},
	}}
	assert.Equal(t, 3, retryAttempt(d, fmt.Errorf("plain error")))
}

func TestRetryAttemptDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, retryAttempt(amqp.Delivery{}, fmt.Errorf("plain error")))
	assert.Equal(t, 1, retryAttempt(amqp.Delivery{Headers: amqp.Table{}}, nil))
}

func TestRetryAttemptTakesTheLarger(t *testing.T) {
	d := amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{amqp.Table{}, amqp.Table{}},
	}}
	err := &entity.RetryableError{Attempt: 5, Err: fmt.Errorf("boom")}
	assert.Equal(t, 5, retryAttempt(d, err))

	err.Attempt = 1
	assert.Equal(t, 2, retryAttempt(d, err))
}

func TestBackoffGrowsExponentiallyAndCaps(t *testing.T) {
	c := &Consumer{baseDelay: 100 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, c.backoff(1))
	assert.Equal(t, 200*time.Millisecond, c.backoff(2))
	assert.Equal(t, 400*time.Millisecond, c.backoff(3))
	assert.Equal(t, 60*time.Second, c.backoff(30))
}
