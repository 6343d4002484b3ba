package authority

import (
	"context"
	"fmt"
)

// SizeAll requests an unpaginated list.
const SizeAll = -1

// PageSpec selects a page of a list result. Current is 1-based.
type PageSpec struct {
	Current int `json:"current"`
	Size    int `json:"size"`
}

// All is the unpaginated page spec.
var All = PageSpec{Current: 1, Size: SizeAll}

// Unpaginated reports whether the spec asks for every record.
func (p PageSpec) Unpaginated() bool {
	return p.Size == SizeAll
}

// Offset returns the number of records skipped before this page.
func (p PageSpec) Offset() int {
	if p.Unpaginated() || p.Current <= 1 {
		return 0
	}
	return (p.Current - 1) * p.Size
}

// Page is one page of a list result.
type Page[T any] struct {
	Current int `json:"current"`
	Size    int `json:"size"`
	Total   int `json:"total"`
	Records []T `json:"records"`
}

// Filter narrows a list call. Zero-valued fields are ignored. ID applies
// to every record kind; otherwise each repository honours only the fields
// that apply to its record kind:
//
//	driver/point attributes, profiles: DriverID
//	devices, points:                   ProfileID
//	driver infos:                      ProfileID, AttributeID
//	point infos:                       DeviceID, PointID, AttributeID
type Filter struct {
	ID          int64
	DriverID    int64
	ProfileID   int64
	DeviceID    int64
	PointID     int64
	AttributeID int64
}

// Repository is the authority's CRUD contract for one record kind.
type Repository[T any] interface {
	// List returns the records matching filter. page.Size == SizeAll returns every record.
	List(ctx context.Context, filter Filter, page PageSpec) (*Page[T], error)

	// Add creates a record and returns it with its assigned id.
	Add(ctx context.Context, record *T) (*T, error)

	// Update replaces the record with the same id.
	// Returns ErrNotFound if no such record exists.
	Update(ctx context.Context, record *T) (*T, error)

	// Delete removes the record and reports whether anything was removed.
	Delete(ctx context.Context, id int64) (bool, error)
}

// DriverRepository adds the unique-key lookups used for registration.
type DriverRepository interface {
	Repository[Driver]

	// GetByServiceName returns ErrNotFound when no driver has that service name.
	GetByServiceName(ctx context.Context, serviceName string) (*Driver, error)

	// GetByHostPort returns ErrNotFound when no driver listens on host:port.
	GetByHostPort(ctx context.Context, host string, port int) (*Driver, error)
}

// Client groups the repositories of every record kind the authority serves.
// The SQLite store, the HTTP client and the in-memory test fake all build one.
type Client struct {
	Drivers          DriverRepository
	DriverAttributes Repository[Attribute]
	PointAttributes  Repository[Attribute]
	Profiles         Repository[Profile]
	Devices          Repository[Device]
	Points           Repository[Point]
	DriverInfos      Repository[DriverInfo]
	PointInfos       Repository[PointInfo]
}

// ListAll fetches every record matching filter in one unpaginated call.
func ListAll[T any](ctx context.Context, repo Repository[T], filter Filter) ([]T, error) {
	page, err := repo.List(ctx, filter, All)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%w: empty list response", ErrUnavailable)
	}
	return page.Records, nil
}

// Exists reports whether at least one record matches filter.
func Exists[T any](ctx context.Context, repo Repository[T], filter Filter) (bool, error) {
	page, err := repo.List(ctx, filter, PageSpec{Current: 1, Size: 1})
	if err != nil {
		return false, err
	}
	if page == nil {
		return false, fmt.Errorf("%w: empty list response", ErrUnavailable)
	}
	return page.Total > 0 || len(page.Records) > 0, nil
}

// Get returns the record with id, or ErrNotFound.
func Get[T any](ctx context.Context, repo Repository[T], id int64) (*T, error) {
	page, err := repo.List(ctx, Filter{ID: id}, PageSpec{Current: 1, Size: 1})
	if err != nil {
		return nil, err
	}
	if page == nil || len(page.Records) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return &page.Records[0], nil
}
