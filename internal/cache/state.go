package cache

import (
	"maps"
	"slices"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
)

// State is a deep copy of every index, for diagnostics and comparison.
// Profiles whose driver-info map is empty are left out of DriverInfo: a
// bulk load never creates them, UpsertProfile does.
type State struct {
	Profiles    []int64
	DriverInfo  map[int64]Attrs
	Devices     map[int64]authority.Device
	DeviceNames map[string]int64
	Points      map[int64]map[int64]authority.Point
	PointInfo   map[int64]map[int64]Attrs
	PointNames  map[int64]map[string]int64
}

// Snapshot copies the current contents. Indexes are copied one at a time,
// so a snapshot taken while events are applied may mix before and after.
func (c *Cache) Snapshot() State {
	s := State{
		Profiles:    c.ProfileIDs(),
		DriverInfo:  make(map[int64]Attrs),
		Devices:     c.devices.Copy(),
		DeviceNames: c.deviceNames.Copy(),
		Points:      make(map[int64]map[int64]authority.Point),
		PointInfo:   make(map[int64]map[int64]Attrs),
		PointNames:  make(map[int64]map[string]int64),
	}
	for id, attrs := range c.driverInfo.Copy() {
		if len(attrs) > 0 {
			s.DriverInfo[id] = maps.Clone(attrs)
		}
	}
	for id, pts := range c.points.Copy() {
		s.Points[id] = maps.Clone(pts)
	}
	for id, byPoint := range c.pointInfo.Copy() {
		cp := make(map[int64]Attrs, len(byPoint))
		for pid, attrs := range byPoint {
			cp[pid] = maps.Clone(attrs)
		}
		s.PointInfo[id] = cp
	}
	for id, names := range c.pointNames.Copy() {
		s.PointNames[id] = maps.Clone(names)
	}
	slices.Sort(s.Profiles)
	return s
}
