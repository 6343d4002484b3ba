package agent

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/event"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/mqtt"
)

// handleMessage decodes a change event from the bus. Until the initial load
// has completed, events are buffered instead of applied.
func (a *Agent) handleMessage(topic string, payload []byte) error {
	e, err := a.codec.Decode(payload)
	if err != nil {
		return fmt.Errorf("decoding event on %s: %w", topic, err)
	}
	if _, kind, op, ok := mqtt.ParseEventTopic(topic); ok && (kind != string(e.Kind) || op != string(e.Op)) {
		return fmt.Errorf("%w: %s %s event on topic %s", event.ErrInvalidEvent, e.Kind, e.Op, topic)
	}

	a.pendingMu.Lock()
	if a.stopped() {
		a.pendingMu.Unlock()
		return nil
	}
	if !a.ready.Load() {
		a.pending = append(a.pending, e)
		a.pendingMu.Unlock()
		return nil
	}
	a.pendingMu.Unlock()

	return a.HandleEvent(a.ctx, e)
}

// HandleEvent applies one change event to the configuration cache.
//
// Upserts are applied whether or not the owning profile is cached yet, so
// a record that arrives ahead of its profile is kept. A record moved to
// another driver reaches the previous owner as a delete.
func (a *Agent) HandleEvent(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	upsert := e.Op == event.OpUpsert

	switch e.Kind {
	case event.KindProfile:
		if upsert {
			a.cache.UpsertProfile(*e.Profile)
		} else {
			a.cache.DeleteProfile(e.Profile.ID)
		}

	case event.KindDevice:
		d := *e.Device
		if upsert {
			if err := a.cache.UpsertDevice(ctx, d); err != nil {
				return fmt.Errorf("device %d: %w", d.ID, err)
			}
		} else {
			a.cache.DeleteDevice(d.ID)
		}

	case event.KindPoint:
		p := *e.Point
		if upsert {
			a.cache.UpsertPoint(p)
		} else {
			a.cache.DeletePoint(authority.Point{ID: p.ID})
		}

	case event.KindDriverInfo:
		if upsert {
			a.cache.UpsertDriverInfo(*e.DriverInfo)
		} else {
			a.cache.DeleteDriverInfo(*e.DriverInfo)
		}

	case event.KindPointInfo:
		if _, ok := a.cache.Device(e.PointInfo.DeviceID); !ok {
			return nil
		}
		if upsert {
			a.cache.UpsertPointInfo(*e.PointInfo)
		} else {
			a.cache.DeletePointInfo(*e.PointInfo)
		}
	}

	a.logger.Debug("change event applied", "kind", e.Kind, "op", e.Op)
	return nil
}
