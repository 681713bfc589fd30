package integration_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/sqs-webhook-relay/internal/config"
	"github.com/example/sqs-webhook-relay/internal/models"
	"github.com/example/sqs-webhook-relay/internal/relay"
)

// queueStub scripts successive receive batches the way SQS redelivery would
// produce them and records deletes. Once the script is exhausted it blocks
// like an idle long poll.
type queueStub struct {
	mu      sync.Mutex
	batches [][]models.Message
	index   int
	deleted []string
}

func (q *queueStub) Receive(ctx context.Context) ([]models.Message, error) {
	q.mu.Lock()
	i := q.index
	q.index++
	q.mu.Unlock()

	if i < len(q.batches) {
		return q.batches[i], nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *queueStub) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *queueStub) deletes() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.deleted))
	copy(out, q.deleted)
	return out
}

type endpointStub struct {
	mu       sync.Mutex
	status   int
	bodies   [][]byte
	headers  []http.Header
	received chan struct{}
}

func newEndpointStub(status int) *endpointStub {
	return &endpointStub{status: status, received: make(chan struct{}, 16)}
}

func (e *endpointStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.bodies = append(e.bodies, body)
		e.headers = append(e.headers, r.Header.Clone())
		e.mu.Unlock()
		e.received <- struct{}{}
		w.WriteHeader(e.status)
	}
}

func (e *endpointStub) snapshot() ([][]byte, []http.Header) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bodies := make([][]byte, len(e.bodies))
	copy(bodies, e.bodies)
	headers := make([]http.Header, len(e.headers))
	copy(headers, e.headers)
	return bodies, headers
}

func webhookMessage(receiveCount int, receiptHandle string) models.Message {
	return models.Message{
		ID:   "msg-1",
		Body: base64.StdEncoding.EncodeToString([]byte(`{"action":"opened"}`)),
		Attributes: map[string]string{
			"BodyIsBase64":        "true",
			"x-hub-signature-256": "abc",
		},
		ReceiveCount:  receiveCount,
		ReceiptHandle: receiptHandle,
	}
}

func runEngine(t *testing.T, queue *queueStub, targetURL string) (context.CancelFunc, chan error) {
	t.Helper()

	forwarder, err := relay.NewForwarder(
		config.TargetConfig{URL: targetURL, ForwardTimeoutSeconds: 5},
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("unexpected forwarder error: %v", err)
	}

	engine, err := relay.NewEngine(relay.Config{
		PollBackoff:       time.Millisecond,
		WorkerConcurrency: 2,
	}, relay.Dependencies{
		Receiver:     queue,
		Sender:       forwarder,
		Acknowledger: queue,
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected engine error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()
	return cancel, done
}

func waitForDeletes(t *testing.T, queue *queueStub, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if len(queue.deletes()) >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d deletes, got %v", n, queue.deletes())
		case <-ticker.C:
		}
	}
}

func TestRelayDeliversAndAcknowledges(t *testing.T) {
	endpoint := newEndpointStub(http.StatusOK)
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	queue := &queueStub{batches: [][]models.Message{{webhookMessage(1, "rh-1")}}}
	cancel, done := runEngine(t, queue, srv.URL)
	defer func() {
		cancel()
		<-done
	}()

	waitForDeletes(t, queue, 1)

	if got := queue.deletes(); len(got) != 1 || got[0] != "rh-1" {
		t.Fatalf("expected exactly one delete for rh-1, got %v", got)
	}

	bodies, headers := endpoint.snapshot()
	if len(bodies) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(bodies))
	}
	if !bytes.Equal(bodies[0], []byte(`{"action":"opened"}`)) {
		t.Fatalf("expected decoded payload, got %q", bodies[0])
	}
	if headers[0].Get("x-hub-signature-256") != "abc" {
		t.Fatalf("expected signature header, got %v", headers[0])
	}
	if headers[0].Get("content-type") != "application/json" {
		t.Fatalf("expected defaulted content-type, got %v", headers[0])
	}
}

func TestRelayRetriesOnceThenDropsRejectedMessage(t *testing.T) {
	endpoint := newEndpointStub(http.StatusUnauthorized)
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	// Second batch simulates the queue redelivering after the visibility
	// timeout, with the receive count incremented.
	queue := &queueStub{batches: [][]models.Message{
		{webhookMessage(1, "rh-1")},
		{webhookMessage(2, "rh-1b")},
	}}
	cancel, done := runEngine(t, queue, srv.URL)
	defer func() {
		cancel()
		<-done
	}()

	waitForDeletes(t, queue, 1)

	if got := queue.deletes(); len(got) != 1 || got[0] != "rh-1b" {
		t.Fatalf("expected single delete after retry, got %v", got)
	}

	bodies, _ := endpoint.snapshot()
	if len(bodies) != 2 {
		t.Fatalf("expected 2 delivery attempts, got %d", len(bodies))
	}
}

func TestRelayLeavesServerErrorsForRedelivery(t *testing.T) {
	endpoint := newEndpointStub(http.StatusServiceUnavailable)
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	queue := &queueStub{batches: [][]models.Message{{webhookMessage(1, "rh-1")}}}
	cancel, done := runEngine(t, queue, srv.URL)

	select {
	case <-endpoint.received:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery attempt")
	}

	cancel()
	<-done

	if got := queue.deletes(); len(got) != 0 {
		t.Fatalf("expected no deletes on 503, got %v", got)
	}
}
