package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
)

// repo implements authority.Repository[T] over one API collection.
type repo[T any] struct {
	c    *Client
	path string
	idOf func(*T) int64
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

// List implements authority.Repository.
func (r *repo[T]) List(ctx context.Context, filter authority.Filter, page authority.PageSpec) (*authority.Page[T], error) {
	q := url.Values{}
	for name, v := range map[string]int64{
		"id":           filter.ID,
		"driver_id":    filter.DriverID,
		"profile_id":   filter.ProfileID,
		"device_id":    filter.DeviceID,
		"point_id":     filter.PointID,
		"attribute_id": filter.AttributeID,
	} {
		if v != 0 {
			q.Set(name, id(v))
		}
	}
	q.Set("size", strconv.Itoa(page.Size))
	if page.Current > 0 {
		q.Set("page", strconv.Itoa(page.Current))
	}

	var out authority.Page[T]
	if err := r.c.call(ctx, http.MethodGet, []string{r.path}, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Add implements authority.Repository.
func (r *repo[T]) Add(ctx context.Context, record *T) (*T, error) {
	var out T
	if err := r.c.call(ctx, http.MethodPost, []string{r.path}, nil, record, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update implements authority.Repository.
func (r *repo[T]) Update(ctx context.Context, record *T) (*T, error) {
	var out T
	if err := r.c.call(ctx, http.MethodPut, []string{r.path, id(r.idOf(record))}, nil, record, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete implements authority.Repository.
func (r *repo[T]) Delete(ctx context.Context, recordID int64) (bool, error) {
	var removed bool
	if err := r.c.call(ctx, http.MethodDelete, []string{r.path, id(recordID)}, nil, nil, &removed); err != nil {
		return false, err
	}
	return removed, nil
}

// drivers adds the unique-key lookups.
type drivers struct {
	repo[authority.Driver]
}

// GetByServiceName implements authority.DriverRepository.
func (d *drivers) GetByServiceName(ctx context.Context, serviceName string) (*authority.Driver, error) {
	var out authority.Driver
	segments := []string{d.path, "by-service", url.PathEscape(serviceName)}
	if err := d.c.call(ctx, http.MethodGet, segments, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByHostPort implements authority.DriverRepository.
func (d *drivers) GetByHostPort(ctx context.Context, host string, port int) (*authority.Driver, error) {
	var out authority.Driver
	segments := []string{d.path, "by-host", url.PathEscape(host), strconv.Itoa(port)}
	if err := d.c.call(ctx, http.MethodGet, segments, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
