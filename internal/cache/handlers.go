package cache

import (
	"context"
	"maps"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/driver"
)

// The handlers below apply one change event each. They touch only the
// indexes of their record kind and treat references they cannot resolve as
// no-ops: events of different kinds may arrive in any order.

// UpsertProfile adds a profile of the cached driver. A profile reassigned to
// another driver is dropped.
func (c *Cache) UpsertProfile(p authority.Profile) {
	if p.DriverID != c.DriverID() {
		if c.HasProfile(p.ID) {
			c.DeleteProfile(p.ID)
		}
		return
	}
	c.profiles.Set(p.ID, struct{}{})
	c.driverInfo.SetIfAbsent(p.ID, Attrs{})
	c.points.SetIfAbsent(p.ID, map[int64]authority.Point{})
}

// DeleteProfile removes a profile with its driver infos and points.
func (c *Cache) DeleteProfile(profileID int64) {
	c.profiles.Delete(profileID)
	c.driverInfo.Delete(profileID)
	c.points.Delete(profileID)
}

// UpsertDevice stores a device, reindexes its name, and recomputes its
// point-attribute values from the authority. On an authority failure
// nothing is changed and the error is returned.
func (c *Cache) UpsertDevice(ctx context.Context, d authority.Device) error {
	resolved, err := c.fetchPointInfo(ctx, d.ID)
	if err != nil {
		return err
	}
	profilePoints, _ := c.points.Get(d.ProfileID)
	names := pointNameIndex(profilePoints)

	if old, ok := c.devices.Get(d.ID); ok && old.Name != d.Name {
		c.deviceNames.DeleteIf(old.Name, func(id int64) bool { return id == d.ID })
	}
	c.devices.Set(d.ID, d)
	c.deviceNames.Set(d.Name, d.ID)

	if len(resolved) > 0 {
		c.pointInfo.Set(d.ID, resolved)
	} else {
		c.pointInfo.Delete(d.ID)
	}
	if len(names) > 0 {
		c.pointNames.Set(d.ID, names)
	} else {
		c.pointNames.Delete(d.ID)
	}
	return nil
}

// DeleteDevice removes a device, its name-index entry and its point values.
func (c *Cache) DeleteDevice(deviceID int64) {
	if old, ok := c.devices.Delete(deviceID); ok {
		c.deviceNames.DeleteIf(old.Name, func(id int64) bool { return id == deviceID })
	}
	c.pointInfo.Delete(deviceID)
	c.pointNames.Delete(deviceID)
}

// UpsertPoint stores a point under its profile and refreshes the point-name
// index of the profile's devices.
func (c *Cache) UpsertPoint(p authority.Point) {
	var previous authority.Point
	var existed bool
	for _, profileID := range c.points.Keys() {
		if old, ok := c.Point(profileID, p.ID); ok {
			previous, existed = old, true
			if profileID != p.ProfileID {
				c.removePoint(profileID, p.ID)
			}
			break
		}
	}

	c.points.Update(p.ProfileID, func(old map[int64]authority.Point, _ bool) (map[int64]authority.Point, bool) {
		next := maps.Clone(old)
		if next == nil {
			next = make(map[int64]authority.Point)
		}
		next[p.ID] = p
		return next, true
	})

	for _, d := range c.Devices() {
		moved := previous.Name != p.Name || previous.ProfileID != p.ProfileID
		if existed && moved && d.ProfileID == previous.ProfileID {
			c.unindexPointName(d.ID, previous.Name, p.ID)
		}
		if d.ProfileID == p.ProfileID {
			c.pointNames.Update(d.ID, func(old map[string]int64, _ bool) (map[string]int64, bool) {
				next := maps.Clone(old)
				if next == nil {
					next = make(map[string]int64)
				}
				next[p.Name] = p.ID
				return next, true
			})
		}
	}
}

// DeletePoint removes a point from its profile and from the point-name index
// of the profile's devices. A zero ProfileID searches every profile.
func (c *Cache) DeletePoint(p authority.Point) {
	profileIDs := []int64{p.ProfileID}
	if p.ProfileID == 0 {
		profileIDs = c.points.Keys()
	}
	for _, profileID := range profileIDs {
		old, ok := c.Point(profileID, p.ID)
		if !ok {
			continue
		}
		c.removePoint(profileID, p.ID)
		for _, d := range c.Devices() {
			if d.ProfileID == profileID {
				c.unindexPointName(d.ID, old.Name, p.ID)
			}
		}
	}
}

func (c *Cache) removePoint(profileID, pointID int64) {
	c.points.Update(profileID, func(old map[int64]authority.Point, present bool) (map[int64]authority.Point, bool) {
		if !present {
			return nil, false
		}
		next := maps.Clone(old)
		delete(next, pointID)
		return next, true
	})
}

func (c *Cache) unindexPointName(deviceID int64, name string, pointID int64) {
	c.pointNames.Update(deviceID, func(old map[string]int64, present bool) (map[string]int64, bool) {
		if !present || old[name] != pointID {
			return old, present
		}
		next := maps.Clone(old)
		delete(next, name)
		return next, len(next) > 0
	})
}

// UpsertDriverInfo sets one driver-scoped value of a profile. Values whose
// definition is not in the schema are ignored.
func (c *Cache) UpsertDriverInfo(info authority.DriverInfo) {
	attr, ok := c.schema.DriverAttribute(info.DriverAttributeID)
	if !ok {
		c.logger.Debug("ignoring driver info with unknown attribute",
			"driver_info_id", info.ID, "attribute_id", info.DriverAttributeID)
		return
	}
	c.driverInfo.Update(info.ProfileID, func(old Attrs, _ bool) (Attrs, bool) {
		next := cloneAttrs(old)
		next[attr.Name] = driver.AttributeInfo{Value: info.Value, Type: attr.Type}
		return next, true
	})
}

// DeleteDriverInfo removes one driver-scoped value of a profile.
func (c *Cache) DeleteDriverInfo(info authority.DriverInfo) {
	attr, ok := c.schema.DriverAttribute(info.DriverAttributeID)
	if !ok {
		return
	}
	c.driverInfo.Update(info.ProfileID, func(old Attrs, present bool) (Attrs, bool) {
		if !present {
			return nil, false
		}
		if _, has := old[attr.Name]; !has {
			return old, true
		}
		next := cloneAttrs(old)
		delete(next, attr.Name)
		return next, true
	})
}

// UpsertPointInfo sets one point-scoped value of a device point. Values whose
// definition is not in the schema are ignored.
func (c *Cache) UpsertPointInfo(info authority.PointInfo) {
	attr, ok := c.schema.PointAttribute(info.PointAttributeID)
	if !ok {
		c.logger.Debug("ignoring point info with unknown attribute",
			"point_info_id", info.ID, "attribute_id", info.PointAttributeID)
		return
	}
	c.pointInfo.Update(info.DeviceID, func(old map[int64]Attrs, _ bool) (map[int64]Attrs, bool) {
		next := maps.Clone(old)
		if next == nil {
			next = make(map[int64]Attrs)
		}
		attrs := cloneAttrs(next[info.PointID])
		attrs[attr.Name] = driver.AttributeInfo{Value: info.Value, Type: attr.Type}
		next[info.PointID] = attrs
		return next, true
	})
}

// DeletePointInfo removes one point-scoped value. A point left without values
// is pruned, and so is a device left without points.
func (c *Cache) DeletePointInfo(info authority.PointInfo) {
	attr, ok := c.schema.PointAttribute(info.PointAttributeID)
	if !ok {
		return
	}
	c.pointInfo.Update(info.DeviceID, func(old map[int64]Attrs, present bool) (map[int64]Attrs, bool) {
		if !present {
			return nil, false
		}
		attrs, has := old[info.PointID]
		if !has {
			return old, true
		}
		if _, has := attrs[attr.Name]; !has {
			return old, true
		}
		next := maps.Clone(old)
		remaining := cloneAttrs(attrs)
		delete(remaining, attr.Name)
		if len(remaining) == 0 {
			delete(next, info.PointID)
		} else {
			next[info.PointID] = remaining
		}
		return next, len(next) > 0
	})
}
