//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

// TestIntegration_SubscriptionTracking verifies the bookkeeping used to
// restore subscriptions after a reconnect.
func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := connect(t)

	services := []string{"svc-a", "svc-b", "svc-c"}
	handler := func(string, []byte) error { return nil }

	for _, s := range services {
		if err := client.Subscribe(Topics{Service: s}.Events(), 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", s, err)
		}
	}
	if client.SubscriptionCount() != len(services) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(services))
	}

	first := Topics{Service: services[0]}.Events()
	if err := client.Unsubscribe(first); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(first) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", first)
	}
}

// TestIntegration_HandlerErrorsAreLogged verifies that handler errors and
// panics reach the logger instead of killing the connection.
func TestIntegration_HandlerErrorsAreLogged(t *testing.T) {
	pub := connect(t)
	sub := connect(t)

	logger := &mockLogger{}
	sub.SetLogger(logger)

	topics := Topics{Service: "graylogic-int-handler"}
	done := make(chan struct{}, 2)
	err := sub.Subscribe(topics.Events(), 1, func(topic string, _ []byte) error {
		defer func() { done <- struct{}{} }()
		if topic == topics.Event("device", "delete") {
			panic("boom")
		}
		return errTest
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	pub.Publish(topics.Event("device", "upsert"), []byte("{}"), 1, false) //nolint:errcheck // delivery is asserted below
	pub.Publish(topics.Event("device", "delete"), []byte("{}"), 1, false) //nolint:errcheck // delivery is asserted below

	for range 2 {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("handler not called")
		}
	}
	time.Sleep(50 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("warns=%v errors=%v, want one of each", logger.warns, logger.errors)
	}
	if !sub.IsConnected() {
		t.Error("client disconnected after handler panic")
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("handler failed")

type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
