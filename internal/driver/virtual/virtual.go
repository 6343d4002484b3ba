// Package virtual is a reference driver backed by a simulated register bank.
//
// Each device owns a bank of registers addressed by the point attribute
// "offset". Reads return register*multiple (point attribute "multiple",
// default 1) formatted for the point type; writes store value/multiple.
// Setting the driver attribute "offline" to true makes every call fail with
// driver.ErrTransport, which is useful for exercising the agent's error paths.
package virtual

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/driver"
)

// Attribute names understood by the driver.
const (
	AttrOffline  = "offline"
	AttrOffset   = "offset"
	AttrMultiple = "multiple"
)

type register struct {
	device int64
	offset int
}

// Driver implements driver.Capability.
type Driver struct {
	mu        sync.Mutex
	registers map[register]float64
	ticks     int
}

// New creates a driver with an empty register bank.
func New() *Driver {
	return &Driver{registers: make(map[register]float64)}
}

// Initialize implements driver.Capability.
func (d *Driver) Initialize(context.Context) error {
	return nil
}

// Read implements driver.Capability.
func (d *Driver) Read(_ context.Context, driverInfo, pointInfo map[string]driver.AttributeInfo, device authority.Device, point authority.Point) (string, error) {
	if err := checkOnline(driverInfo); err != nil {
		return "", err
	}
	offset, multiple, err := addressing(pointInfo)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	raw := d.registers[register{device: device.ID, offset: offset}]
	d.mu.Unlock()

	return driver.FormatValue(point.Type, raw*multiple), nil
}

// Write implements driver.Capability.
func (d *Driver) Write(_ context.Context, driverInfo, pointInfo map[string]driver.AttributeInfo, device authority.Device, value driver.AttributeInfo) (bool, error) {
	if err := checkOnline(driverInfo); err != nil {
		return false, err
	}
	offset, multiple, err := addressing(pointInfo)
	if err != nil {
		return false, err
	}
	if value.Type == driver.TypeString {
		return false, nil
	}
	v, err := value.Float()
	if err != nil {
		if b, berr := value.Bool(); berr == nil {
			v, err = boolToFloat(b), nil
		}
	}
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	d.registers[register{device: device.ID, offset: offset}] = v / multiple
	d.mu.Unlock()
	return true, nil
}

// Schedule implements driver.Capability. Each call counts one tick.
func (d *Driver) Schedule(context.Context) error {
	d.mu.Lock()
	d.ticks++
	d.mu.Unlock()
	return nil
}

// Ticks returns how many times Schedule has run.
func (d *Driver) Ticks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

func checkOnline(driverInfo map[string]driver.AttributeInfo) error {
	info, ok := driverInfo[AttrOffline]
	if !ok {
		return nil
	}
	offline, err := info.Bool()
	if err != nil {
		return err
	}
	if offline {
		return fmt.Errorf("%w: device bank offline", driver.ErrTransport)
	}
	return nil
}

func addressing(pointInfo map[string]driver.AttributeInfo) (offset int, multiple float64, err error) {
	offset, err = driver.Attribute(pointInfo, AttrOffset, driver.AttributeInfo.Int)
	if err != nil {
		return 0, 0, err
	}
	multiple = 1
	if info, ok := pointInfo[AttrMultiple]; ok {
		if multiple, err = info.Float(); err != nil {
			return 0, 0, err
		}
		if multiple == 0 {
			return 0, 0, fmt.Errorf("%w: %s must be non-zero", driver.ErrAttributeType, AttrMultiple)
		}
	}
	return offset, multiple, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
