// Package authoritytest provides an in-memory authority for tests.
package authoritytest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
)

// Repository operation names accepted by Table.FailOn.
const (
	OpList   = "list"
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
	OpGet    = "get"
)

// Table is an in-memory authority.Repository[T].
type Table[T any] struct {
	mu      sync.Mutex
	records map[int64]T
	nextID  int64
	idOf    func(*T) *int64
	match   func(authority.Filter, *T) bool
	fail    map[string]error
	calls   map[string]int
}

func newTable[T any](idOf func(*T) *int64, match func(authority.Filter, *T) bool) *Table[T] {
	return &Table[T]{
		records: make(map[int64]T),
		nextID:  1,
		idOf:    idOf,
		match:   match,
		fail:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// Seed stores records with the ids they carry. Later Adds get ids above
// the highest seeded id.
func (t *Table[T]) Seed(records ...T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range records {
		id := *t.idOf(&r)
		t.records[id] = r
		if id >= t.nextID {
			t.nextID = id + 1
		}
	}
}

// Records returns every stored record ordered by id.
func (t *Table[T]) Records() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedLocked(authority.Filter{})
}

// Get returns the record with id, if present.
func (t *Table[T]) Get(id int64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	return r, ok
}

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (t *Table[T]) FailOn(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.fail, op)
		return
	}
	t.fail[op] = err
}

// Calls returns how many times op has been invoked.
func (t *Table[T]) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

// ResetCalls zeroes the call counters.
func (t *Table[T]) ResetCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = make(map[string]int)
}

func (t *Table[T]) enter(op string) error {
	t.calls[op]++
	return t.fail[op]
}

func (t *Table[T]) sortedLocked(filter authority.Filter) []T {
	ids := make([]int64, 0, len(t.records))
	for id, r := range t.records {
		if eq(filter.ID, id) && t.match(filter, &r) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.records[id])
	}
	return out
}

// List implements authority.Repository.
func (t *Table[T]) List(_ context.Context, filter authority.Filter, page authority.PageSpec) (*authority.Page[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter(OpList); err != nil {
		return nil, err
	}

	all := t.sortedLocked(filter)
	out := &authority.Page[T]{Current: page.Current, Size: page.Size, Total: len(all)}
	if page.Unpaginated() {
		out.Records = all
		return out, nil
	}
	start := min(page.Offset(), len(all))
	end := min(start+page.Size, len(all))
	out.Records = all[start:end]
	return out, nil
}

// Add implements authority.Repository.
func (t *Table[T]) Add(_ context.Context, record *T) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter(OpAdd); err != nil {
		return nil, err
	}

	stored := *record
	*t.idOf(&stored) = t.nextID
	t.nextID++
	t.records[*t.idOf(&stored)] = stored
	return &stored, nil
}

// Update implements authority.Repository.
func (t *Table[T]) Update(_ context.Context, record *T) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter(OpUpdate); err != nil {
		return nil, err
	}

	id := *t.idOf(record)
	if _, ok := t.records[id]; !ok {
		return nil, fmt.Errorf("%w: id %d", authority.ErrNotFound, id)
	}
	t.records[id] = *record
	stored := *record
	return &stored, nil
}

// Delete implements authority.Repository.
func (t *Table[T]) Delete(_ context.Context, id int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter(OpDelete); err != nil {
		return false, err
	}

	if _, ok := t.records[id]; !ok {
		return false, nil
	}
	delete(t.records, id)
	return true, nil
}

// DriverTable adds the unique-key lookups of authority.DriverRepository.
type DriverTable struct {
	*Table[authority.Driver]
}

// GetByServiceName implements authority.DriverRepository.
func (d *DriverTable) GetByServiceName(_ context.Context, serviceName string) (*authority.Driver, error) {
	return d.find(func(r *authority.Driver) bool { return r.ServiceName == serviceName })
}

// GetByHostPort implements authority.DriverRepository.
func (d *DriverTable) GetByHostPort(_ context.Context, host string, port int) (*authority.Driver, error) {
	return d.find(func(r *authority.Driver) bool { return r.Host == host && r.Port == port })
}

func (d *DriverTable) find(pred func(*authority.Driver) bool) (*authority.Driver, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpGet); err != nil {
		return nil, err
	}
	for _, r := range d.sortedLocked(authority.Filter{}) {
		if pred(&r) {
			return &r, nil
		}
	}
	return nil, authority.ErrNotFound
}

// Authority is an in-memory authority with one table per record kind.
type Authority struct {
	Drivers          *DriverTable
	DriverAttributes *Table[authority.Attribute]
	PointAttributes  *Table[authority.Attribute]
	Profiles         *Table[authority.Profile]
	Devices          *Table[authority.Device]
	Points           *Table[authority.Point]
	DriverInfos      *Table[authority.DriverInfo]
	PointInfos       *Table[authority.PointInfo]
}

func eq(want, got int64) bool { return want == 0 || want == got }

// New creates an empty in-memory authority.
func New() *Authority {
	attrMatch := func(f authority.Filter, a *authority.Attribute) bool { return eq(f.DriverID, a.DriverID) }
	return &Authority{
		Drivers: &DriverTable{newTable(
			func(d *authority.Driver) *int64 { return &d.ID },
			func(authority.Filter, *authority.Driver) bool { return true },
		)},
		DriverAttributes: newTable(func(a *authority.Attribute) *int64 { return &a.ID }, attrMatch),
		PointAttributes:  newTable(func(a *authority.Attribute) *int64 { return &a.ID }, attrMatch),
		Profiles: newTable(
			func(p *authority.Profile) *int64 { return &p.ID },
			func(f authority.Filter, p *authority.Profile) bool { return eq(f.DriverID, p.DriverID) },
		),
		Devices: newTable(
			func(d *authority.Device) *int64 { return &d.ID },
			func(f authority.Filter, d *authority.Device) bool { return eq(f.ProfileID, d.ProfileID) },
		),
		Points: newTable(
			func(p *authority.Point) *int64 { return &p.ID },
			func(f authority.Filter, p *authority.Point) bool { return eq(f.ProfileID, p.ProfileID) },
		),
		DriverInfos: newTable(
			func(i *authority.DriverInfo) *int64 { return &i.ID },
			func(f authority.Filter, i *authority.DriverInfo) bool {
				return eq(f.ProfileID, i.ProfileID) && eq(f.AttributeID, i.DriverAttributeID)
			},
		),
		PointInfos: newTable(
			func(i *authority.PointInfo) *int64 { return &i.ID },
			func(f authority.Filter, i *authority.PointInfo) bool {
				return eq(f.DeviceID, i.DeviceID) && eq(f.PointID, i.PointID) && eq(f.AttributeID, i.PointAttributeID)
			},
		),
	}
}

// Client exposes the tables through the authority.Client contract.
func (a *Authority) Client() *authority.Client {
	return &authority.Client{
		Drivers:          a.Drivers,
		DriverAttributes: a.DriverAttributes,
		PointAttributes:  a.PointAttributes,
		Profiles:         a.Profiles,
		Devices:          a.Devices,
		Points:           a.Points,
		DriverInfos:      a.DriverInfos,
		PointInfos:       a.PointInfos,
	}
}
