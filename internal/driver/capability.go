package driver

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
)

var (
	// ErrTransport wraps failures talking to the physical device.
	ErrTransport = errors.New("driver: transport failure")

	// ErrMissingAttribute is returned when a required attribute has no value.
	ErrMissingAttribute = errors.New("driver: missing attribute")

	// ErrAttributeType is returned when an attribute value does not convert
	// to the requested type.
	ErrAttributeType = errors.New("driver: attribute type mismatch")
)

// Capability is implemented by a protocol driver. The agent resolves
// driverInfo (attributes of the device's profile) and pointInfo (attributes
// of the device point) from its cache on every call.
type Capability interface {
	// Initialize performs one-time setup. It must not block indefinitely.
	Initialize(ctx context.Context) error

	// Read performs one synchronous read of point on device.
	// Transport failures wrap ErrTransport.
	Read(ctx context.Context, driverInfo, pointInfo map[string]AttributeInfo, device authority.Device, point authority.Point) (string, error)

	// Write writes value to the device point described by pointInfo.
	// It returns false with a nil error when writing is not supported.
	Write(ctx context.Context, driverInfo, pointInfo map[string]AttributeInfo, device authority.Device, value AttributeInfo) (bool, error)

	// Schedule is invoked periodically; the driver decides what, if anything, to do.
	Schedule(ctx context.Context) error
}
