package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/driver"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/influxdb"
)

const (
	defaultReadInterval   = 30 * time.Second
	defaultCustomInterval = 60 * time.Second
)

// valueMessage is the payload published for every polled point value.
type valueMessage struct {
	Device    string `json:"device"`
	Point     string `json:"point"`
	Value     string `json:"value"`
	Type      string `json:"type,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Timestamp string `json:"timestamp"`
}

// PollStats summarises one polling pass.
type PollStats struct {
	Read   int
	Failed int
}

// Run starts the polling and schedule loops enabled in the configuration
// and blocks until ctx ends or Shutdown is called. It shuts the agent down
// before returning, reporting any shutdown hook failure.
func (a *Agent) Run(ctx context.Context) error {
	if !a.ready.Load() {
		return ErrNotReady
	}

	sched := a.cfg.Schedule
	if sched.ReadEnabled {
		a.startLoop(ctx, "poll", orDefault(sched.ReadInterval, defaultReadInterval), func(ctx context.Context) {
			a.PollOnce(ctx)
		})
	}
	if sched.CustomEnabled {
		a.startLoop(ctx, "schedule", orDefault(sched.CustomInterval, defaultCustomInterval), func(ctx context.Context) {
			if err := a.capability.Schedule(ctx); err != nil {
				a.logger.Warn("driver schedule failed", "error", err)
			}
		})
	}

	a.logger.Info("agent running",
		"read_enabled", sched.ReadEnabled,
		"custom_enabled", sched.CustomEnabled,
	)

	select {
	case <-ctx.Done():
	case <-a.done:
	}
	return a.Shutdown()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// startLoop runs fn every interval until ctx ends or the agent shuts down.
// It reports false, starting nothing, once Shutdown has begun.
func (a *Agent) startLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.stopped() {
		return false
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		loopCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-a.done:
				cancel()
			case <-loopCtx.Done():
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		a.logger.Debug("loop started", "loop", name, "interval", interval)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				fn(loopCtx)
			}
		}
	}()
	return true
}

// PollOnce reads every readable point of every cached device once,
// publishing and recording each value. A failed read is logged and does
// not stop the pass.
func (a *Agent) PollOnce(ctx context.Context) PollStats {
	var stats PollStats
	for _, d := range a.cache.Devices() {
		driverInfo := a.cache.DriverInfo(d.ProfileID)
		for _, p := range a.cache.Points(d.ProfileID) {
			if ctx.Err() != nil {
				return stats
			}
			if !p.Readable() {
				continue
			}

			value, err := a.capability.Read(ctx, driverInfo, a.cache.PointInfo(d.ID, p.ID), d, p)
			now := time.Now().UTC()
			if err != nil {
				stats.Failed++
				a.logger.Warn("point read failed",
					"device", d.Name,
					"point", p.Name,
					"error", err,
				)
				if a.telemetry != nil {
					a.telemetry.WriteReadError(a.cfg.ServiceName, d.Name, p.Name, now)
				}
				continue
			}

			stats.Read++
			a.record(d, p, value, now)
		}
	}
	a.logger.Debug("poll complete", "read", stats.Read, "failed", stats.Failed)
	return stats
}

// record publishes a value on the bus and writes it to telemetry.
func (a *Agent) record(d authority.Device, p authority.Point, value string, ts time.Time) {
	if a.bus != nil {
		payload, err := json.Marshal(valueMessage{
			Device:    d.Name,
			Point:     p.Name,
			Value:     value,
			Type:      p.Type,
			Unit:      p.Unit,
			Timestamp: ts.Format(time.RFC3339Nano),
		})
		if err == nil {
			err = a.bus.Publish(a.topics.Value(d.Name, p.Name), payload, a.qos, true)
		}
		if err != nil {
			a.logger.Warn("publishing point value failed", "device", d.Name, "point", p.Name, "error", err)
		}
	}
	if a.telemetry != nil {
		a.telemetry.WritePointValue(influxdb.PointValue{
			Service: a.cfg.ServiceName,
			Device:  d.Name,
			Point:   p.Name,
			Type:    p.Type,
			Unit:    p.Unit,
			Value:   value,
			Time:    ts,
		})
	}
}

// resolve looks up a device and one of its points by name.
func (a *Agent) resolve(deviceName, pointName string) (authority.Device, authority.Point, error) {
	d, ok := a.cache.DeviceByName(deviceName)
	if !ok {
		return authority.Device{}, authority.Point{}, fmt.Errorf("%w: %q", ErrUnknownDevice, deviceName)
	}
	p, ok := a.cache.PointByName(d.ID, pointName)
	if !ok {
		return authority.Device{}, authority.Point{}, fmt.Errorf("%w: %q on device %q", ErrUnknownPoint, pointName, deviceName)
	}
	return d, p, nil
}

// Read reads one point through the driver, resolving its attributes from
// the cache at call time.
func (a *Agent) Read(ctx context.Context, deviceName, pointName string) (string, error) {
	d, p, err := a.resolve(deviceName, pointName)
	if err != nil {
		return "", err
	}
	if !p.Readable() {
		return "", fmt.Errorf("%w: %s/%s", ErrNotReadable, deviceName, pointName)
	}
	return a.capability.Read(ctx, a.cache.DriverInfo(d.ProfileID), a.cache.PointInfo(d.ID, p.ID), d, p)
}

// Write writes value to one point through the driver. The value carries
// the point's declared type. It returns false when the driver does not
// support writing.
func (a *Agent) Write(ctx context.Context, deviceName, pointName, value string) (bool, error) {
	d, p, err := a.resolve(deviceName, pointName)
	if err != nil {
		return false, err
	}
	if !p.Writable() {
		return false, fmt.Errorf("%w: %s/%s", ErrNotWritable, deviceName, pointName)
	}
	return a.capability.Write(ctx, a.cache.DriverInfo(d.ProfileID), a.cache.PointInfo(d.ID, p.ID), d,
		driver.AttributeInfo{Value: value, Type: p.Type})
}
