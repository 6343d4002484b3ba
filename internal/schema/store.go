package schema

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
)

// ErrLoadFailed wraps any authority failure while loading definitions.
var ErrLoadFailed = errors.New("schema: load failed")

// Map indexes attribute definitions by id.
type Map map[int64]authority.Attribute

// LoadDriverAttributeMap lists the driver-scoped definitions owned by driverID.
func LoadDriverAttributeMap(ctx context.Context, client *authority.Client, driverID int64) (Map, error) {
	return load(ctx, client.DriverAttributes, driverID, "driver")
}

// LoadPointAttributeMap lists the point-scoped definitions owned by driverID.
func LoadPointAttributeMap(ctx context.Context, client *authority.Client, driverID int64) (Map, error) {
	return load(ctx, client.PointAttributes, driverID, "point")
}

func load(ctx context.Context, repo authority.Repository[authority.Attribute], driverID int64, scope string) (Map, error) {
	attrs, err := authority.ListAll(ctx, repo, authority.Filter{DriverID: driverID})
	if err != nil {
		return nil, fmt.Errorf("%w: %s attributes for driver %d: %w", ErrLoadFailed, scope, driverID, err)
	}
	m := make(Map, len(attrs))
	for _, a := range attrs {
		m[a.ID] = a
	}
	return m, nil
}

type snapshot struct {
	driver Map
	point  Map
}

// Store holds the driver- and point-scoped definitions of one driver.
// Lookups are lock-free; Refresh and Replace publish both maps at once, so a
// reader never sees a driver map from one load paired with a point map from
// another.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore returns an empty store. Every lookup misses until Refresh succeeds.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&snapshot{driver: Map{}, point: Map{}})
	return s
}

// Refresh loads both definition maps for driverID and publishes them.
// On failure the previous maps stay in place.
func (s *Store) Refresh(ctx context.Context, client *authority.Client, driverID int64) error {
	driverMap, err := LoadDriverAttributeMap(ctx, client, driverID)
	if err != nil {
		return err
	}
	pointMap, err := LoadPointAttributeMap(ctx, client, driverID)
	if err != nil {
		return err
	}
	s.Replace(driverMap, pointMap)
	return nil
}

// Replace publishes the given maps. The store takes ownership of them.
func (s *Store) Replace(driverMap, pointMap Map) {
	if driverMap == nil {
		driverMap = Map{}
	}
	if pointMap == nil {
		pointMap = Map{}
	}
	s.current.Store(&snapshot{driver: driverMap, point: pointMap})
}

// DriverAttribute resolves a driver-scoped definition id.
func (s *Store) DriverAttribute(id int64) (authority.Attribute, bool) {
	a, ok := s.current.Load().driver[id]
	return a, ok
}

// PointAttribute resolves a point-scoped definition id.
func (s *Store) PointAttribute(id int64) (authority.Attribute, bool) {
	a, ok := s.current.Load().point[id]
	return a, ok
}

// Len reports how many driver- and point-scoped definitions are held.
func (s *Store) Len() (driverCount, pointCount int) {
	snap := s.current.Load()
	return len(snap.driver), len(snap.point)
}
