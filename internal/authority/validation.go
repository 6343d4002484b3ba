package authority

import (
	"fmt"
	"strings"
)

const (
	maxNameLength  = 100
	maxValueLength = 1024
	maxPort        = 65535
)

func requireName(kind, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: %s name is required", ErrInvalid, kind)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: %s name exceeds %d characters", ErrInvalid, kind, maxNameLength)
	}
	return nil
}

func requireID(kind, field string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s %s is required", ErrInvalid, kind, field)
	}
	return nil
}

func checkValue(kind, value string) error {
	if len(value) > maxValueLength {
		return fmt.Errorf("%w: %s value exceeds %d bytes", ErrInvalid, kind, maxValueLength)
	}
	return nil
}

// Validate checks a driver record before it is stored.
func (d *Driver) Validate() error {
	if err := requireName("driver", d.Name); err != nil {
		return err
	}
	if strings.TrimSpace(d.ServiceName) == "" {
		return fmt.Errorf("%w: driver service_name is required", ErrInvalid)
	}
	if strings.TrimSpace(d.Host) == "" {
		return fmt.Errorf("%w: driver host is required", ErrInvalid)
	}
	if d.Port < 1 || d.Port > maxPort {
		return fmt.Errorf("%w: driver port %d out of range", ErrInvalid, d.Port)
	}
	return nil
}

// Validate checks an attribute definition before it is stored.
func (a *Attribute) Validate() error {
	if err := requireName("attribute", a.Name); err != nil {
		return err
	}
	if strings.TrimSpace(a.Type) == "" {
		return fmt.Errorf("%w: attribute %q type is required", ErrInvalid, a.Name)
	}
	if err := checkValue("attribute", a.Value); err != nil {
		return err
	}
	return requireID("attribute", "driver_id", a.DriverID)
}

// Validate checks a profile before it is stored.
func (p *Profile) Validate() error {
	if err := requireName("profile", p.Name); err != nil {
		return err
	}
	return requireID("profile", "driver_id", p.DriverID)
}

// Validate checks a device before it is stored.
func (d *Device) Validate() error {
	if err := requireName("device", d.Name); err != nil {
		return err
	}
	return requireID("device", "profile_id", d.ProfileID)
}

// Validate checks a point before it is stored.
func (p *Point) Validate() error {
	if err := requireName("point", p.Name); err != nil {
		return err
	}
	if p.RW < RWReadOnly || p.RW > RWReadWrite {
		return fmt.Errorf("%w: point rw must be 0, 1 or 2", ErrInvalid)
	}
	return requireID("point", "profile_id", p.ProfileID)
}

// Validate checks a driver info before it is stored.
func (i *DriverInfo) Validate() error {
	if err := requireID("driver info", "driver_attribute_id", i.DriverAttributeID); err != nil {
		return err
	}
	if err := checkValue("driver info", i.Value); err != nil {
		return err
	}
	return requireID("driver info", "profile_id", i.ProfileID)
}

// Validate checks a point info before it is stored.
func (i *PointInfo) Validate() error {
	if err := requireID("point info", "point_attribute_id", i.PointAttributeID); err != nil {
		return err
	}
	if err := checkValue("point info", i.Value); err != nil {
		return err
	}
	if err := requireID("point info", "device_id", i.DeviceID); err != nil {
		return err
	}
	return requireID("point info", "point_id", i.PointID)
}
