package influxdb_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/influxdb"
)

// fakeInflux answers the ping and write endpoints of the v2 API and hands
// every written line-protocol body to writes.
func fakeInflux(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()
	writes := make(chan string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping", "/health":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/buckets":
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("name") == "telemetry" {
				io.WriteString(w, `{"buckets":[{"id":"b1","name":"telemetry"}]}`) //nolint:errcheck // test server
			} else {
				io.WriteString(w, `{"buckets":[]}`) //nolint:errcheck // test server
			}
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, writes
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "graylogic-dev-token",
		Org:           "graylogic",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	srv, writes := fakeInflux(t)
	cfg := testConfig(srv.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteReadError("graylogic-driver-modbus", "meter-1", "voltage", time.Unix(1700000000, 0))
	client.Flush()

	select {
	case b := <-writes:
		if !strings.Contains(b, "point_read_errors") {
			t.Errorf("write body = %q, want point_read_errors", b)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for flushed write")
	}
}

func TestConnect_MissingBucket(t *testing.T) {
	srv, _ := fakeInflux(t)
	cfg := testConfig(srv.URL)
	cfg.Bucket = "nonexistent"

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrBucketNotFound) {
		t.Errorf("Connect() error = %v, want ErrBucketNotFound", err)
	}
}

func TestClose_Twice(t *testing.T) {
	srv, _ := fakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	client.Flush()
}

func TestWritePointValue(t *testing.T) {
	srv, writes := fakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WritePointValue(influxdb.PointValue{
		Service: "graylogic-driver-modbus",
		Device:  "meter-1",
		Point:   "voltage",
		Type:    "float",
		Unit:    "V",
		Value:   "231.5",
		Time:    time.Unix(1700000000, 0),
	})
	client.WriteReadError("graylogic-driver-modbus", "meter-1", "current", time.Unix(1700000001, 0))
	client.Flush()

	var body string
	deadline := time.After(5 * time.Second)
	for !strings.Contains(body, "point_read_errors") {
		select {
		case b := <-writes:
			body += b
		case <-deadline:
			t.Fatalf("timeout waiting for write, got %q", body)
		}
	}

	for _, want := range []string{
		"point_values,",
		"device=meter-1",
		"point=voltage",
		"service=graylogic-driver-modbus",
		"unit=V",
		"value=231.5",
		"point_read_errors,",
		"count=1i",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("line protocol %q missing %q", body, want)
		}
	}
}

func TestWriteAfterClose(t *testing.T) {
	srv, writes := fakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	client.WritePointValue(influxdb.PointValue{Device: "d", Point: "p", Value: "1"})
	client.Flush()

	select {
	case b := <-writes:
		t.Errorf("unexpected write after Close: %q", b)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
