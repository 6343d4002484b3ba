package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
)

const testBroker = "127.0.0.1:1883"

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test when no broker listens on testBroker.
func requireBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testBroker, 200*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at %s: %v", testBroker, err)
	}
	conn.Close()
}

func connect(t *testing.T) *Client {
	t.Helper()
	requireBroker(t)
	client, err := Connect(testConfig(), Topics{Service: "graylogic-test"}.Status())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Service: "graylogic-driver-modbus"}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Event", topics.Event("device", "upsert"), "graylogic/driver/graylogic-driver-modbus/event/device/upsert"},
		{"Events", topics.Events(), "graylogic/driver/graylogic-driver-modbus/event/#"},
		{"Value", topics.Value("meter-1", "voltage"), "graylogic/driver/graylogic-driver-modbus/value/meter-1/voltage"},
		{"Values", topics.Values(), "graylogic/driver/graylogic-driver-modbus/value/+/+"},
		{"Status", topics.Status(), "graylogic/driver/graylogic-driver-modbus/status"},
		{"AuthorityStatus", AuthorityStatus(), "graylogic/authority/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestParseEventTopic(t *testing.T) {
	tests := []struct {
		topic   string
		service string
		kind    string
		op      string
		ok      bool
	}{
		{"graylogic/driver/svc/event/point_info/delete", "svc", "point_info", "delete", true},
		{Topics{Service: "svc"}.Event("device", "upsert"), "svc", "device", "upsert", true},
		{"graylogic/driver/svc/value/meter/voltage", "", "", "", false},
		{"graylogic/driver/svc/event/device", "", "", "", false},
		{"graylogic/driver/svc/event//upsert", "", "", "", false},
		{"graylogic/authority/status", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			service, kind, op, ok := ParseEventTopic(tt.topic)
			if ok != tt.ok || service != tt.service || kind != tt.kind || op != tt.op {
				t.Errorf("ParseEventTopic(%q) = (%q, %q, %q, %v), want (%q, %q, %q, %v)",
					tt.topic, service, kind, op, ok, tt.service, tt.kind, tt.op, tt.ok)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestUniqueClientID(t *testing.T) {
	a := uniqueClientID("graylogic-driver")
	b := uniqueClientID("graylogic-driver")

	if a == b {
		t.Errorf("uniqueClientID() returned %q twice", a)
	}
	if !strings.HasPrefix(a, "graylogic-driver-") || len(a) != len("graylogic-driver-")+clientIDSuffixLen {
		t.Errorf("uniqueClientID() = %q, want prefix plus %d chars", a, clientIDSuffixLen)
	}
	if !strings.HasPrefix(uniqueClientID(""), "graylogic-") {
		t.Error("uniqueClientID(\"\") should fall back to the graylogic prefix")
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "driver"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg, "graylogic-test-1234")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "graylogic-test-1234" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "driver" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
	if !opts.AutoReconnect || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect = %v/%v", opts.AutoReconnect, opts.MaxReconnectInterval)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig(), "id-1")
	topic := Topics{Service: "svc"}.Status()
	configureLWT(opts, topic, "id-1")

	if !opts.WillEnabled || opts.WillTopic != topic || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will = enabled:%v topic:%q retained:%v qos:%d", opts.WillEnabled, opts.WillTopic, opts.WillRetained, opts.WillQos)
	}

	var payload map[string]string
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["reason"] != "unexpected_disconnect" || payload["client_id"] != "id-1" {
		t.Errorf("will payload = %v", payload)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var online map[string]string
	if err := json.Unmarshal([]byte(buildStatusPayload("online", "id-1", "")), &online); err != nil {
		t.Fatalf("online payload is not JSON: %v", err)
	}
	if _, hasReason := online["reason"]; hasReason {
		t.Error("online payload should not carry a reason")
	}
	if _, err := time.Parse(time.RFC3339, online["timestamp"]); err != nil {
		t.Errorf("timestamp %q: %v", online["timestamp"], err)
	}
}

// =============================================================================
// Client Tests (no broker)
// =============================================================================

func TestCloseNil(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on empty client error = %v", err)
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg, "graylogic/test/status")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// Broker Tests
// =============================================================================

func TestConnectAndHealthCheck(t *testing.T) {
	client := connect(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}

	client.Close()
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

// Argument validation happens before the connection state is consulted.
func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"bad qos", "graylogic/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "graylogic/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"valid while disconnected", "graylogic/test", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{}

	if err := client.Subscribe("", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(\"\") error = %v", err)
	}
	if err := client.Subscribe("graylogic/test", 3, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v", err)
	}
	if err := client.Subscribe("graylogic/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil) error = %v", err)
	}
	if err := client.Subscribe("graylogic/test", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v", err)
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribes", client.SubscriptionCount())
	}
}

func TestEventRoundtrip(t *testing.T) {
	pub := connect(t)
	sub := connect(t)
	topics := Topics{Service: "graylogic-test-roundtrip"}

	received := make(chan string, 4)
	err := sub.Subscribe(topics.Events(), 1, func(topic string, _ []byte) error {
		received <- topic
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !sub.HasSubscription(topics.Events()) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	time.Sleep(100 * time.Millisecond)

	want := topics.Event("device", "upsert")
	if err := pub.Publish(want, []byte(`{}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("received on %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	if err := sub.Unsubscribe(topics.Events()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if sub.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Unsubscribe", sub.SubscriptionCount())
	}
}
