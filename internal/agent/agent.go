package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-driver/internal/cache"
	"github.com/nerrad567/gray-logic-driver/internal/driver"
	"github.com/nerrad567/gray-logic-driver/internal/event"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/mqtt"
)

// Agent errors.
var (
	// ErrRegistrationExhausted is returned by Initial when every registration
	// attempt failed.
	ErrRegistrationExhausted = errors.New("agent: registration attempts exhausted")

	// ErrShutdown is returned when the agent is shut down while an operation
	// is in progress.
	ErrShutdown = errors.New("agent: shut down")

	// ErrNotReady is returned by Run before Initial has succeeded.
	ErrNotReady = errors.New("agent: not initialised")

	// ErrUnknownDevice is returned when a device name does not resolve.
	ErrUnknownDevice = errors.New("agent: unknown device")

	// ErrUnknownPoint is returned when a point name does not resolve on a device.
	ErrUnknownPoint = errors.New("agent: unknown point")

	// ErrNotReadable is returned when reading a write-only point.
	ErrNotReadable = errors.New("agent: point is not readable")

	// ErrNotWritable is returned when writing a read-only point.
	ErrNotWritable = errors.New("agent: point is not writable")
)

// Logger defines the logging interface used by the Agent.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registerer registers the driver with the authority and returns its id.
// It is implemented by registrar.Registrar.
type Registerer interface {
	Register(ctx context.Context) (int64, error)
}

// Bus is the message bus the agent receives change events from and
// publishes point values to. It is implemented by mqtt.Client.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Recorder stores polled values. It is implemented by influxdb.Client.
type Recorder interface {
	WritePointValue(v influxdb.PointValue)
	WriteReadError(service, device, point string, ts time.Time)
}

// Options holds the collaborators of an Agent. Bus and Telemetry are
// optional.
type Options struct {
	Driver     config.DriverConfig
	Registrar  Registerer
	Cache      *cache.Cache
	Capability driver.Capability
	Bus        Bus
	Codec      event.Codec
	Telemetry  Recorder
	QoS        byte
}

// Agent connects a protocol driver to the configuration authority: it
// registers, loads and maintains the configuration cache, and runs the
// polling and schedule loops that call into the driver.
//
// Thread Safety: All methods are safe for concurrent use.
type Agent struct {
	cfg        config.DriverConfig
	registrar  Registerer
	cache      *cache.Cache
	capability driver.Capability
	bus        Bus
	codec      event.Codec
	telemetry  Recorder
	topics     mqtt.Topics
	qos        byte

	ready atomic.Bool

	// Events received before the initial load completes are held here and
	// applied once it has.
	pending   []event.Event
	pendingMu sync.Mutex

	hooks   []func() error
	hooksMu sync.Mutex

	// Shutdown coordination. done is closed and loops are added to wg
	// under runMu, so no loop starts once Shutdown is waiting.
	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	runMu     sync.Mutex
	wg        sync.WaitGroup
	stopOnce  sync.Once

	shutdownErr error

	logger Logger
}

// New creates an agent. Call Initial, then Run.
func New(opts Options) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	codec := opts.Codec
	if codec == nil {
		codec = event.JSONCodec{}
	}
	return &Agent{
		cfg:        opts.Driver,
		registrar:  opts.Registrar,
		cache:      opts.Cache,
		capability: opts.Capability,
		bus:        opts.Bus,
		codec:      codec,
		telemetry:  opts.Telemetry,
		topics:     mqtt.Topics{Service: opts.Driver.ServiceName},
		qos:        opts.QoS,
		ctx:        ctx,
		ctxCancel:  cancel,
		done:       make(chan struct{}),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the agent.
func (a *Agent) SetLogger(logger Logger) {
	a.logger = logger
}

// OnShutdown registers fn to run during Shutdown. Hooks run in reverse
// registration order; their errors are joined into Shutdown's result.
func (a *Agent) OnShutdown(fn func() error) {
	a.hooksMu.Lock()
	a.hooks = append(a.hooks, fn)
	a.hooksMu.Unlock()
}

// DriverID returns the id assigned at registration, or 0 before it.
func (a *Agent) DriverID() int64 {
	return a.cache.DriverID()
}

// Ready reports whether Initial has completed.
func (a *Agent) Ready() bool {
	return a.ready.Load()
}

// Done is closed once Shutdown has been called.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// Shutdown stops the loops, waits for them to exit and runs the shutdown
// hooks. Safe to call multiple times and from any goroutine other than a
// loop; every call returns the result of the first.
func (a *Agent) Shutdown() error {
	a.stopOnce.Do(func() {
		a.ready.Store(false)
		a.runMu.Lock()
		close(a.done)
		a.runMu.Unlock()
		a.ctxCancel()
		a.wg.Wait()

		a.hooksMu.Lock()
		hooks := a.hooks
		a.hooks = nil
		a.hooksMu.Unlock()
		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](); err != nil {
				errs = append(errs, err)
			}
		}
		a.shutdownErr = errors.Join(errs...)

		a.logger.Info("agent stopped", "service_name", a.cfg.ServiceName)
	})
	return a.shutdownErr
}

// stopped reports whether Shutdown has been called.
func (a *Agent) stopped() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}
