package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
)

// Kind names the record kind an event carries.
type Kind string

// Record kinds that produce change events.
const (
	KindProfile    Kind = "profile"
	KindDevice     Kind = "device"
	KindPoint      Kind = "point"
	KindDriverInfo Kind = "driver_info"
	KindPointInfo  Kind = "point_info"
)

// Op is the mutation an event reports.
type Op string

// Supported operations.
const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// ErrInvalidEvent is returned for events whose kind, op or record is missing or mismatched.
var ErrInvalidEvent = errors.New("event: invalid")

// Event is one authority mutation. Exactly one record field, matching Kind,
// is set. Delete events carry the record as it was before removal.
type Event struct {
	Kind Kind      `json:"kind" cbor:"kind"`
	Op   Op        `json:"op" cbor:"op"`
	Time time.Time `json:"time" cbor:"time"`

	Profile    *authority.Profile    `json:"profile,omitempty" cbor:"profile,omitempty"`
	Device     *authority.Device     `json:"device,omitempty" cbor:"device,omitempty"`
	Point      *authority.Point      `json:"point,omitempty" cbor:"point,omitempty"`
	DriverInfo *authority.DriverInfo `json:"driver_info,omitempty" cbor:"driver_info,omitempty"`
	PointInfo  *authority.PointInfo  `json:"point_info,omitempty" cbor:"point_info,omitempty"`
}

// New builds an event for record, inferring Kind from its type.
func New(op Op, record any) (Event, error) {
	e := Event{Op: op, Time: time.Now().UTC()}
	switch r := record.(type) {
	case *authority.Profile:
		e.Kind, e.Profile = KindProfile, r
	case *authority.Device:
		e.Kind, e.Device = KindDevice, r
	case *authority.Point:
		e.Kind, e.Point = KindPoint, r
	case *authority.DriverInfo:
		e.Kind, e.DriverInfo = KindDriverInfo, r
	case *authority.PointInfo:
		e.Kind, e.PointInfo = KindPointInfo, r
	default:
		return Event{}, fmt.Errorf("%w: unsupported record %T", ErrInvalidEvent, record)
	}
	return e, e.Validate()
}

// Validate checks that the op is known and the record matching Kind is present.
func (e Event) Validate() error {
	if e.Op != OpUpsert && e.Op != OpDelete {
		return fmt.Errorf("%w: unknown op %q", ErrInvalidEvent, e.Op)
	}
	var present bool
	switch e.Kind {
	case KindProfile:
		present = e.Profile != nil
	case KindDevice:
		present = e.Device != nil
	case KindPoint:
		present = e.Point != nil
	case KindDriverInfo:
		present = e.DriverInfo != nil
	case KindPointInfo:
		present = e.PointInfo != nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if !present {
		return fmt.Errorf("%w: %s event without record", ErrInvalidEvent, e.Kind)
	}
	return nil
}
