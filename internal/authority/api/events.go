package api

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/event"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/mqtt"
)

// notifier publishes change events to the topic of the driver that owns
// the changed record. Publishing is best effort: the mutation has already
// been committed, so failures are logged and not returned to the client.
type notifier struct {
	client    *authority.Client
	publisher Publisher
	codec     event.Codec
	qos       byte
	logger    *logging.Logger
}

func (n *notifier) serviceOfDriver(ctx context.Context, driverID int64) (string, error) {
	d, err := authority.Get[authority.Driver](ctx, n.client.Drivers, driverID)
	if err != nil {
		return "", fmt.Errorf("driver %d: %w", driverID, err)
	}
	return d.ServiceName, nil
}

func (n *notifier) serviceOfProfile(ctx context.Context, profileID int64) (string, error) {
	p, err := authority.Get(ctx, n.client.Profiles, profileID)
	if err != nil {
		return "", fmt.Errorf("profile %d: %w", profileID, err)
	}
	return n.serviceOfDriver(ctx, p.DriverID)
}

func (n *notifier) serviceOfDevice(ctx context.Context, deviceID int64) (string, error) {
	d, err := authority.Get(ctx, n.client.Devices, deviceID)
	if err != nil {
		return "", fmt.Errorf("device %d: %w", deviceID, err)
	}
	return n.serviceOfProfile(ctx, d.ProfileID)
}

// publish encodes record as an op event and sends it to service's topic.
func (n *notifier) publish(service string, op event.Op, record any) {
	if n.publisher == nil {
		return
	}
	e, err := event.New(op, record)
	if err != nil {
		n.logger.Error("building change event", "error", err)
		return
	}
	payload, err := n.codec.Encode(e)
	if err != nil {
		n.logger.Error("encoding change event", "kind", e.Kind, "error", err)
		return
	}

	topic := mqtt.Topics{Service: service}.Event(string(e.Kind), string(e.Op))
	if err := n.publisher.Publish(topic, payload, n.qos, false); err != nil {
		n.logger.Warn("publishing change event failed",
			"topic", topic,
			"error", err,
		)
		return
	}
	n.logger.Debug("change event published", "topic", topic)
}

func (n *notifier) ownerUnknown(kind string, id int64, err error) {
	n.logger.Warn("change event not published: owner unresolved",
		"kind", kind,
		"id", id,
		"error", err,
	)
}
