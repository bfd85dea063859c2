// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/foodshare/internal/logger"
	"github.com/Strob0t/foodshare/internal/port/messagequeue"
	"github.com/Strob0t/foodshare/internal/resilience"
)

const (
	streamName      = "FOODSHARE"
	headerRequestID = "X-Request-ID"
	headerDLQReason = "X-DLQ-Reason"
	dlqSuffix       = ".dlq"

	// maxDeliveries is how often a failing message is attempted before it
	// is parked on the dead letter subject.
	maxDeliveries = 3
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	breaker *resilience.Breaker
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("foodshare"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: messagequeue.StreamSubjects,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// KeyValue creates or binds the named KV bucket. Entries expire after ttl.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// SetBreaker attaches a circuit breaker to all publishes.
func (q *Queue) SetBreaker(b *resilience.Breaker) {
	q.breaker = b
}

// PublishCircuit reports the publish breaker state for health checks.
func (q *Queue) PublishCircuit() string {
	if q.breaker == nil {
		return resilience.StateClosed.String()
	}
	return q.breaker.State().String()
}

// Publish sends data to subject. The request ID from ctx travels as a header.
// With a breaker attached, publishes fail fast while JetStream is unhealthy.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(headerRequestID, reqID)
	}

	publish := func() error {
		_, err := q.js.PublishMsg(ctx, msg)
		return err
	}
	var err error
	if q.breaker != nil {
		err = q.breaker.Execute(publish)
	} else {
		err = publish()
	}
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a durable consumer for subject. Payloads failing
// schema validation go straight to the dead letter subject. Handler
// failures are nak'ed for redelivery until maxDeliveries is reached.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       durableName(subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		msgCtx := context.Background()
		if reqID := msg.Headers().Get(headerRequestID); reqID != "" {
			msgCtx = logger.WithRequestID(msgCtx, reqID)
		}

		if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
			q.moveToDLQ(msgCtx, msg, err)
			return
		}

		if err := handler(msgCtx, msg.Subject(), msg.Data()); err != nil {
			slog.Error("message handler failed", "subject", msg.Subject(), "error", err)
			if deliveries(msg) >= maxDeliveries {
				q.moveToDLQ(msgCtx, msg, err)
				return
			}
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// moveToDLQ republishes msg on its dead letter subject and acks the original.
func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg, reason error) {
	dlq := nats.NewMsg(msg.Subject() + dlqSuffix)
	dlq.Data = msg.Data()
	dlq.Header.Set(headerDLQReason, reason.Error())
	if reqID := msg.Headers().Get(headerRequestID); reqID != "" {
		dlq.Header.Set(headerRequestID, reqID)
	}

	if _, err := q.js.PublishMsg(ctx, dlq); err != nil {
		slog.Error("nats dlq publish failed", "subject", dlq.Subject, "error", err)
		_ = msg.Nak()
		return
	}
	slog.Warn("message moved to dead letter subject", "subject", dlq.Subject, "reason", reason)
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "error", err)
	}
}

func deliveries(msg jetstream.Msg) uint64 {
	meta, err := msg.Metadata()
	if err != nil {
		return 1
	}
	return meta.NumDelivered
}

// Drain processes in-flight messages, then closes the connection.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

// durableName derives a consumer name from a subject; NATS forbids dots
// and wildcards in consumer names.
func durableName(subject string) string {
	r := strings.NewReplacer(".", "_", "*", "star", ">", "all")
	return "foodshare_" + r.Replace(subject)
}
