package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
)

var (
	// ErrDisabled is returned by Connect when telemetry is turned off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned by Connect when the server does not
	// answer a ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrBucketNotFound is returned by Connect when the configured bucket
	// does not exist. Points written to a missing bucket are rejected one
	// batch at a time, long after startup.
	ErrBucketNotFound = errors.New("influxdb: bucket not found")
)

const (
	connectTimeout = 10 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client records polled point values in one bucket.
//
// Writes are batched by the non-blocking write API, so the polling loop
// never waits on the database. Write failures are reported through
// SetOnError. After Close every write is a no-op.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	closed atomic.Bool

	errMu   sync.RWMutex
	onError func(err error)
}

// Connect pings the server, checks that the bucket exists and starts the
// batching writer.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize, flushInterval := cfg.BatchSize, time.Duration(cfg.FlushInterval)*time.Second
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)). //nolint:gosec // positive
		SetFlushInterval(uint(flushInterval.Milliseconds()))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if _, err := client.BucketsAPI().FindBucketByName(ctx, cfg.Bucket); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %q: %w", ErrBucketNotFound, cfg.Bucket, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
	}
	go c.reportErrors(c.writeAPI.Errors())
	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	ok, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("server not healthy")
	}
	return nil
}

func (c *Client) reportErrors(errs <-chan error) {
	for err := range errs {
		c.errMu.RLock()
		fn := c.onError
		c.errMu.RUnlock()
		if fn != nil {
			fn(fmt.Errorf("writing to bucket %s: %w", c.bucket, err))
		}
	}
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(fn func(err error)) {
	c.errMu.Lock()
	c.onError = fn
	c.errMu.Unlock()
}

// Flush sends buffered points and blocks until they are written.
func (c *Client) Flush() {
	if c == nil || c.closed.Load() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes buffered points and releases the connection. It is safe to
// call on a nil client and more than once.
func (c *Client) Close() error {
	if c == nil || c.client == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
