// internal/queue/queue.go
package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/streadway/amqp"
)

const (
	// DispatchQueue carries one message per (campaign, recipient) dispatch job.
	DispatchQueue = "campaign_sends"

	// Delay queues hold jobs until their per-message TTL expires, then
	// dead-letter them back onto DispatchQueue. RabbitMQ only expires the
	// message at the head of a queue, so mixing short and long TTLs in one
	// queue would hold a 30s retry hostage behind an hour-long deferral.
	// Short transport backoffs and long window/cap deferrals therefore get
	// separate queues; within each, TTLs are close enough that head-of-line
	// skew stays within one backoff step.
	retryQueue = "campaign_sends_retry"
	deferQueue = "campaign_sends_deferred"

	// Delays at or above this go to deferQueue.
	deferThreshold = 5 * time.Minute

	retryHeader = "x-retry-count"
)

// DispatchJob is the unit of work: one recipient of one campaign. Attempt
// counts transport retries only; window deferrals requeue with the same
// attempt number.
type DispatchJob struct {
	CampaignID  int `json:"campaign_id"`
	RecipientID int `json:"recipient_id"`
	Attempt     int `json:"attempt"`
}

// Publisher is the producer side of the dispatch queue.
type Publisher interface {
	PublishDispatch(job DispatchJob) error
	PublishDispatchDelayed(job DispatchJob, delay time.Duration) error
}

// AMQPQueue is a durable RabbitMQ-backed dispatch queue.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to RabbitMQ and declares the dispatch and delay queues.
func Dial(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(DispatchQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", DispatchQueue, err)
	}

	for _, name := range []string{retryQueue, deferQueue} {
		_, err = ch.QueueDeclare(name, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": DispatchQueue,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
	}

	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Close() error {
	q.ch.Close()
	return q.conn.Close()
}

func (q *AMQPQueue) PublishDispatch(job DispatchJob) error {
	return q.publish(DispatchQueue, job, "")
}

func (q *AMQPQueue) PublishDispatchDelayed(job DispatchJob, delay time.Duration) error {
	expiration := strconv.FormatInt(delay.Milliseconds(), 10)
	return q.publish(delayQueueFor(delay), job, expiration)
}

func delayQueueFor(delay time.Duration) string {
	if delay >= deferThreshold {
		return deferQueue
	}
	return retryQueue
}

func (q *AMQPQueue) publish(queueName string, job DispatchJob, expiration string) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Headers:      amqp.Table{retryHeader: int32(job.Attempt)},
	}
	if expiration != "" {
		pub.Expiration = expiration
	}

	return q.ch.Publish("", queueName, false, false, pub)
}

// Consume reads dispatch jobs and hands them to handler on concurrency
// goroutines. Every delivery is acked: the handler owns retries by
// republishing, and jobs are idempotent behind the recipient status guard,
// so redelivery after a crash is harmless.
func (q *AMQPQueue) Consume(concurrency int, handler func(DispatchJob) error) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if err := q.ch.Qos(concurrency*2, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.ch.Consume(DispatchQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for i := 0; i < concurrency; i++ {
		go func() {
			for d := range msgs {
				var job DispatchJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					log.Printf("[queue] dropping malformed job: %v", err)
					d.Ack(false)
					continue
				}

				// Headers survive the delay-queue round trip; the body's
				// attempt field is authoritative but older producers only
				// set the header.
				if job.Attempt == 0 {
					if v, ok := d.Headers[retryHeader]; ok {
						if n, ok := v.(int32); ok {
							job.Attempt = int(n)
						}
					}
				}

				if err := handler(job); err != nil {
					log.Printf("[queue] dispatch job campaign=%d recipient=%d attempt=%d failed: %v",
						job.CampaignID, job.RecipientID, job.Attempt, err)
				}
				d.Ack(false)
			}
		}()
	}

	return nil
}

var _ Publisher = (*AMQPQueue)(nil)
