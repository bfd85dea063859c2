package nats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/foodshare/internal/logger"
	"github.com/Strob0t/foodshare/internal/port/messagequeue"
)

var errAlwaysFail = errors.New("handler always fails")

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

// uniqueSubject returns a subject captured by the stream (delivery.>) that
// no validator schema applies to.
func uniqueSubject(t *testing.T) string {
	t.Helper()
	return "delivery.test." + t.Name()
}

// consumeDLQ collects the first message published on subject+".dlq" from now on.
func consumeDLQ(t *testing.T, q *Queue, subject string) <-chan []byte {
	t.Helper()
	cons, err := q.js.CreateOrUpdateConsumer(context.Background(), streamName, jetstream.ConsumerConfig{
		FilterSubject: subject + dlqSuffix,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("create DLQ consumer: %v", err)
	}

	out := make(chan []byte, 1)
	var once sync.Once
	sub, err := cons.Consume(func(msg jetstream.Msg) {
		once.Do(func() { out <- msg.Data() })
		_ = msg.Ack()
	})
	if err != nil {
		t.Fatalf("consume DLQ: %v", err)
	}
	t.Cleanup(sub.Stop)
	return out
}

func TestDurableName(t *testing.T) {
	tests := map[string]string{
		"delivery.completed": "foodshare_delivery_completed",
		"orders.*":           "foodshare_orders_star",
		"rewards.>":          "foodshare_rewards_all",
	}
	for subject, want := range tests {
		if got := durableName(subject); got != want {
			t.Errorf("durableName(%q) = %q, want %q", subject, got, want)
		}
	}
}

func TestQueue_PublishSubscribe(t *testing.T) {
	q := testConnect(t)
	subject := uniqueSubject(t)

	data, _ := json.Marshal(map[string]string{"msg": "hello-nats"})

	got := make(chan string, 1)
	stop, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, _ string, d []byte) error {
		var p map[string]string
		if err := json.Unmarshal(d, &p); err != nil {
			return err
		}
		select {
		case got <- p["msg"] + "|" + logger.RequestID(ctx):
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	ctx := logger.WithRequestID(context.Background(), "req-abc-123")
	if err := q.Publish(ctx, subject, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case v := <-got:
		if v != "hello-nats|req-abc-123" {
			t.Errorf("got %q", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestQueue_InvalidPayloadGoesToDLQ(t *testing.T) {
	q := testConnect(t)
	subject := messagequeue.SubjectDeliveryCompleted
	dlq := consumeDLQ(t, q, subject)

	stop, err := q.Subscribe(context.Background(), subject, func(context.Context, string, []byte) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := q.Publish(context.Background(), subject, []byte("not-json")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case data := <-dlq:
		if string(data) != "not-json" {
			t.Errorf("DLQ data = %q", data)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for DLQ message")
	}
}

func TestQueue_RetryExhaustionGoesToDLQ(t *testing.T) {
	q := testConnect(t)
	subject := uniqueSubject(t)
	dlq := consumeDLQ(t, q, subject)

	stop, err := q.Subscribe(context.Background(), subject, func(context.Context, string, []byte) error {
		return errAlwaysFail
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := q.Publish(context.Background(), subject, []byte(`{"exhausted":true}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case data := <-dlq:
		if string(data) != `{"exhausted":true}` {
			t.Errorf("DLQ data = %q", data)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for DLQ message after retry exhaustion")
	}
}

func TestQueue_KeyValue(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "test-kv-foodshare", 30*time.Second)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	if _, err := kv.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Value()) != "v" {
		t.Fatalf("expected v, got %q", entry.Value())
	}
}

func TestQueue_IsConnectedAndDrain(t *testing.T) {
	q := testConnect(t)
	if !q.IsConnected() {
		t.Fatal("expected connected queue")
	}
	if err := q.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}
