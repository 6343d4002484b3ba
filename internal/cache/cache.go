package cache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/driver"
	"github.com/nerrad567/gray-logic-driver/internal/schema"
)

// ErrLoadFailed wraps any authority failure during a bulk load.
var ErrLoadFailed = errors.New("cache: load failed")

// Logger defines the logging interface used by the Cache.
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

// Attrs maps attribute names to resolved values.
type Attrs = map[string]driver.AttributeInfo

// Cache holds the configuration one driver serves: its profiles, their
// devices and points, and the attribute values resolved against the schema.
//
// Each index is a separate Map with its own lock, so an event touching one
// record kind never blocks reads of another. Getters return copies.
type Cache struct {
	client   *authority.Client
	schema   *schema.Store
	logger   Logger
	driverID atomic.Int64

	profiles    *Map[int64, struct{}]
	driverInfo  *Map[int64, Attrs]                     // profileID → name → value
	devices     *Map[int64, authority.Device]          // deviceID → device
	deviceNames *Map[string, int64]                    // device name → deviceID
	points      *Map[int64, map[int64]authority.Point] // profileID → pointID → point
	pointInfo   *Map[int64, map[int64]Attrs]           // deviceID → pointID → name → value
	pointNames  *Map[int64, map[string]int64]          // deviceID → point name → pointID
}

// New creates an empty cache reading from client and resolving values
// against store.
func New(client *authority.Client, store *schema.Store) *Cache {
	return &Cache{
		client:      client,
		schema:      store,
		logger:      noopLogger{},
		profiles:    NewMap[int64, struct{}](),
		driverInfo:  NewMap[int64, Attrs](),
		devices:     NewMap[int64, authority.Device](),
		deviceNames: NewMap[string, int64](),
		points:      NewMap[int64, map[int64]authority.Point](),
		pointInfo:   NewMap[int64, map[int64]Attrs](),
		pointNames:  NewMap[int64, map[string]int64](),
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// DriverID returns the driver whose configuration is cached, or 0 before
// the first Load.
func (c *Cache) DriverID() int64 {
	return c.driverID.Load()
}

// Load rebuilds every index for driverID from the authority.
//
// The schema store is refreshed first. Everything is fetched before anything
// is published, so a failure leaves the cached indexes untouched. Any
// authority failure is returned wrapped in ErrLoadFailed.
func (c *Cache) Load(ctx context.Context, driverID int64) error {
	if err := c.schema.Refresh(ctx, c.client, driverID); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	profiles, err := authority.ListAll(ctx, c.client.Profiles, authority.Filter{DriverID: driverID})
	if err != nil {
		return fmt.Errorf("%w: profiles: %w", ErrLoadFailed, err)
	}

	profileSet := make(map[int64]struct{}, len(profiles))
	driverInfo := make(map[int64]Attrs)
	devices := make(map[int64]authority.Device)
	deviceNames := make(map[string]int64)
	points := make(map[int64]map[int64]authority.Point, len(profiles))

	for _, p := range profiles {
		profileSet[p.ID] = struct{}{}

		infos, err := authority.ListAll(ctx, c.client.DriverInfos, authority.Filter{ProfileID: p.ID})
		if err != nil {
			return fmt.Errorf("%w: driver infos of profile %d: %w", ErrLoadFailed, p.ID, err)
		}
		if resolved := c.resolveDriverInfos(infos); len(resolved) > 0 {
			driverInfo[p.ID] = resolved
		}

		devs, err := authority.ListAll(ctx, c.client.Devices, authority.Filter{ProfileID: p.ID})
		if err != nil {
			return fmt.Errorf("%w: devices of profile %d: %w", ErrLoadFailed, p.ID, err)
		}
		for _, d := range devs {
			devices[d.ID] = d
			deviceNames[d.Name] = d.ID
		}

		pts, err := authority.ListAll(ctx, c.client.Points, authority.Filter{ProfileID: p.ID})
		if err != nil {
			return fmt.Errorf("%w: points of profile %d: %w", ErrLoadFailed, p.ID, err)
		}
		byID := make(map[int64]authority.Point, len(pts))
		for _, pt := range pts {
			byID[pt.ID] = pt
		}
		points[p.ID] = byID
	}

	pointInfo := make(map[int64]map[int64]Attrs)
	pointNames := make(map[int64]map[string]int64)
	for _, d := range devices {
		resolved, err := c.fetchPointInfo(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		if len(resolved) > 0 {
			pointInfo[d.ID] = resolved
		}
		if names := pointNameIndex(points[d.ProfileID]); len(names) > 0 {
			pointNames[d.ID] = names
		}
	}

	c.driverID.Store(driverID)
	c.profiles.Replace(profileSet)
	c.driverInfo.Replace(driverInfo)
	c.devices.Replace(devices)
	c.deviceNames.Replace(deviceNames)
	c.points.Replace(points)
	c.pointInfo.Replace(pointInfo)
	c.pointNames.Replace(pointNames)

	c.logger.Info("configuration cache loaded",
		"driver_id", driverID,
		"profiles", len(profileSet),
		"devices", len(devices),
		"devices_with_point_info", len(pointInfo),
	)
	return nil
}

// fetchPointInfo lists a device's point infos and resolves them against the
// point-attribute schema. Points with no resolved values are omitted.
func (c *Cache) fetchPointInfo(ctx context.Context, deviceID int64) (map[int64]Attrs, error) {
	infos, err := authority.ListAll(ctx, c.client.PointInfos, authority.Filter{DeviceID: deviceID})
	if err != nil {
		return nil, fmt.Errorf("point infos of device %d: %w", deviceID, err)
	}
	out := make(map[int64]Attrs)
	for _, info := range infos {
		attr, ok := c.schema.PointAttribute(info.PointAttributeID)
		if !ok {
			continue
		}
		if out[info.PointID] == nil {
			out[info.PointID] = make(Attrs)
		}
		out[info.PointID][attr.Name] = driver.AttributeInfo{Value: info.Value, Type: attr.Type}
	}
	return out, nil
}

func (c *Cache) resolveDriverInfos(infos []authority.DriverInfo) Attrs {
	out := make(Attrs)
	for _, info := range infos {
		if attr, ok := c.schema.DriverAttribute(info.DriverAttributeID); ok {
			out[attr.Name] = driver.AttributeInfo{Value: info.Value, Type: attr.Type}
		}
	}
	return out
}

func pointNameIndex(points map[int64]authority.Point) map[string]int64 {
	names := make(map[string]int64, len(points))
	for id, p := range points {
		names[p.Name] = id
	}
	return names
}

// DriverInfo returns the resolved driver-scoped attributes of a profile.
// A profile without values yields an empty map.
func (c *Cache) DriverInfo(profileID int64) Attrs {
	v, _ := c.driverInfo.Get(profileID)
	return cloneAttrs(v)
}

// PointInfo returns the resolved point-scoped attributes of one device point.
func (c *Cache) PointInfo(deviceID, pointID int64) Attrs {
	byPoint, _ := c.pointInfo.Get(deviceID)
	return cloneAttrs(byPoint[pointID])
}

// HasProfile reports whether the profile belongs to the cached driver.
func (c *Cache) HasProfile(profileID int64) bool {
	_, ok := c.profiles.Get(profileID)
	return ok
}

// ProfileIDs returns the cached profile ids in ascending order.
func (c *Cache) ProfileIDs() []int64 {
	ids := c.profiles.Keys()
	slices.Sort(ids)
	return ids
}

// Device returns a device by id.
func (c *Cache) Device(id int64) (authority.Device, bool) {
	return c.devices.Get(id)
}

// DeviceByName returns a device by name.
func (c *Cache) DeviceByName(name string) (authority.Device, bool) {
	id, ok := c.deviceNames.Get(name)
	if !ok {
		return authority.Device{}, false
	}
	return c.devices.Get(id)
}

// Devices returns every cached device ordered by id.
func (c *Cache) Devices() []authority.Device {
	all := c.devices.Copy()
	out := make([]authority.Device, 0, len(all))
	for _, id := range slices.Sorted(maps.Keys(all)) {
		out = append(out, all[id])
	}
	return out
}

// Point returns a point of a profile.
func (c *Cache) Point(profileID, pointID int64) (authority.Point, bool) {
	byID, _ := c.points.Get(profileID)
	p, ok := byID[pointID]
	return p, ok
}

// Points returns a profile's points ordered by id.
func (c *Cache) Points(profileID int64) []authority.Point {
	byID, _ := c.points.Get(profileID)
	out := make([]authority.Point, 0, len(byID))
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		out = append(out, byID[id])
	}
	return out
}

// PointByName resolves a point of a device by point name.
func (c *Cache) PointByName(deviceID int64, name string) (authority.Point, bool) {
	names, _ := c.pointNames.Get(deviceID)
	pointID, ok := names[name]
	if !ok {
		return authority.Point{}, false
	}
	d, ok := c.devices.Get(deviceID)
	if !ok {
		return authority.Point{}, false
	}
	return c.Point(d.ProfileID, pointID)
}

func cloneAttrs(a Attrs) Attrs {
	if a == nil {
		return Attrs{}
	}
	return maps.Clone(a)
}
