package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-driver/internal/registrar"
)

// Initial registers the driver, subscribes to change events, loads the
// configuration cache and initialises the driver, in that order.
//
// Registration is retried every Registration.RetryInterval up to
// Registration.MaxAttempts times; an invalid identity is not retried. Any
// failure is fatal: the agent is shut down before the error is returned, so
// Run never polls against an unloaded cache.
//
// Parameters:
//   - ctx: Cancels the retry wait and in-flight authority calls
//
// Returns:
//   - error: nil once the agent is ready to Run
func (a *Agent) Initial(ctx context.Context) error {
	if err := a.initial(ctx); err != nil {
		a.logger.Error("initialisation failed", "error", err)
		if shutdownErr := a.Shutdown(); shutdownErr != nil {
			a.logger.Warn("shutdown hooks failed", "error", shutdownErr)
		}
		return err
	}
	return nil
}

func (a *Agent) initial(ctx context.Context) error {
	driverID, err := a.register(ctx)
	if err != nil {
		return err
	}

	if a.bus != nil {
		if err := a.bus.Subscribe(a.topics.Events(), a.qos, a.handleMessage); err != nil {
			return fmt.Errorf("subscribing to change events: %w", err)
		}
	}

	if err := a.cache.Load(ctx, driverID); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := a.capability.Initialize(ctx); err != nil {
		return fmt.Errorf("initialising driver: %w", err)
	}

	a.markReady(ctx)

	a.logger.Info("agent initialised",
		"driver_id", driverID,
		"service_name", a.cfg.ServiceName,
		"devices", len(a.cache.Devices()),
	)
	return nil
}

// register calls the registrar until it succeeds, the identity proves
// invalid, the attempts run out, or ctx ends.
func (a *Agent) register(ctx context.Context) (int64, error) {
	maxAttempts := max(a.cfg.Registration.MaxAttempts, 1)
	interval := a.cfg.Registration.RetryInterval

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		driverID, err := a.registrar.Register(ctx)
		if err == nil {
			return driverID, nil
		}
		if errors.Is(err, registrar.ErrInvalidIdentity) {
			return 0, err
		}
		lastErr = err

		a.logger.Warn("registration failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, fmt.Errorf("registration: %w", ctx.Err())
		case <-a.done:
			timer.Stop()
			return 0, ErrShutdown
		case <-timer.C:
		}
	}
	return 0, fmt.Errorf("%w after %d attempts: %w", ErrRegistrationExhausted, maxAttempts, lastErr)
}

// markReady drains the events buffered during the initial load and flips
// the agent to ready under the same lock, so no event is lost or applied
// twice out of order.
func (a *Agent) markReady(ctx context.Context) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()

	for _, e := range a.pending {
		if err := a.HandleEvent(ctx, e); err != nil {
			a.logger.Warn("buffered event not applied", "kind", e.Kind, "op", e.Op, "error", err)
		}
	}
	if n := len(a.pending); n > 0 {
		a.logger.Debug("applied buffered events", "count", n)
	}
	a.pending = nil
	a.ready.Store(true)
}
