package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/event"
)

// resource serves the CRUD routes of one record kind.
//
// Kinds with an owner are published as change events after every
// successful mutation. When an update moves a record to a different parent,
// the previous owner is sent a delete event carrying the old record, unless
// followsMoves is set and the owner is unchanged: the agent's upsert
// handlers for profiles, devices and points relocate records themselves.
type resource[T any] struct {
	s    *Server
	name string
	repo authority.Repository[T]
	idOf func(*T) *int64

	// owner resolves the service name of the driver a record belongs to.
	// Nil for kinds that are not published.
	owner        func(ctx context.Context, record *T) (string, error)
	moved        func(before, after *T) bool
	notifier     *notifier
	followsMoves bool
}

func (res *resource[T]) routes(r chi.Router) {
	r.Get("/", res.handleList)
	r.Post("/", res.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", res.handleGet)
		r.Put("/", res.handleUpdate)
		r.Delete("/", res.handleDelete)
	})
}

func (res *resource[T]) publishes() bool {
	return res.owner != nil && res.notifier != nil
}

// handleList returns a page of records. Absent size means every record.
func (res *resource[T]) handleList(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseListQuery(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := res.repo.List(r.Context(), filter, page)
	if err != nil {
		res.s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (res *resource[T]) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := authority.Get(r.Context(), res.repo, id)
	if err != nil {
		res.s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, record)
}

func (res *resource[T]) handleCreate(w http.ResponseWriter, r *http.Request) {
	var record T
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	*res.idOf(&record) = 0

	created, err := res.repo.Add(r.Context(), &record)
	if err != nil {
		res.s.writeError(w, r, err)
		return
	}
	res.s.logger.Info(res.name+" created", "id", *res.idOf(created), "request_id", requestID(r))

	if res.publishes() {
		res.notify(r.Context(), event.OpUpsert, created)
	}
	writeData(w, http.StatusCreated, created)
}

func (res *resource[T]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var record T
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	*res.idOf(&record) = id

	var before *T
	if res.publishes() {
		before, _ = authority.Get(r.Context(), res.repo, id)
	}

	updated, err := res.repo.Update(r.Context(), &record)
	if err != nil {
		res.s.writeError(w, r, err)
		return
	}

	if res.publishes() {
		if before != nil && res.moved(before, updated) {
			res.notifyMove(r.Context(), before, updated)
		}
		res.notify(r.Context(), event.OpUpsert, updated)
	}
	writeData(w, http.StatusOK, updated)
}

// handleDelete answers with whether a record was removed.
func (res *resource[T]) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var before *T
	if res.publishes() {
		before, _ = authority.Get(r.Context(), res.repo, id)
	}

	removed, err := res.repo.Delete(r.Context(), id)
	if err != nil {
		res.s.writeError(w, r, err)
		return
	}
	if removed {
		res.s.logger.Info(res.name+" deleted", "id", id, "request_id", requestID(r))
		if before != nil {
			res.notify(r.Context(), event.OpDelete, before)
		}
	}
	writeData(w, http.StatusOK, removed)
}

// notifyMove tells the previous owner that before no longer applies to it.
func (res *resource[T]) notifyMove(ctx context.Context, before, after *T) {
	oldService, err := res.owner(ctx, before)
	if err != nil {
		res.notifier.ownerUnknown(res.name, *res.idOf(before), err)
		return
	}
	if res.followsMoves {
		if newService, err := res.owner(ctx, after); err == nil && newService == oldService {
			return
		}
	}
	res.notifier.publish(oldService, event.OpDelete, before)
}

func (res *resource[T]) notify(ctx context.Context, op event.Op, record *T) {
	service, err := res.owner(ctx, record)
	if err != nil {
		res.notifier.ownerUnknown(res.name, *res.idOf(record), err)
		return
	}
	res.notifier.publish(service, op, record)
}

// pathID parses the {id} URL parameter, answering 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeFailure(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// listParams maps query parameters onto filter fields.
var listParams = []struct {
	name  string
	field func(*authority.Filter) *int64
}{
	{"id", func(f *authority.Filter) *int64 { return &f.ID }},
	{"driver_id", func(f *authority.Filter) *int64 { return &f.DriverID }},
	{"profile_id", func(f *authority.Filter) *int64 { return &f.ProfileID }},
	{"device_id", func(f *authority.Filter) *int64 { return &f.DeviceID }},
	{"point_id", func(f *authority.Filter) *int64 { return &f.PointID }},
	{"attribute_id", func(f *authority.Filter) *int64 { return &f.AttributeID }},
}

// parseListQuery reads the filter and page of a list request.
func parseListQuery(r *http.Request) (authority.Filter, authority.PageSpec, error) {
	q := r.URL.Query()

	var filter authority.Filter
	for _, p := range listParams {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return filter, authority.PageSpec{}, fmt.Errorf("%s must be a non-negative integer", p.name)
		}
		*p.field(&filter) = n
	}

	page := authority.All
	if v := q.Get("size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || (size <= 0 && size != authority.SizeAll) {
			return filter, page, fmt.Errorf("size must be positive or %d", authority.SizeAll)
		}
		page.Size = size
	}
	if v := q.Get("page"); v != "" {
		current, err := strconv.Atoi(v)
		if err != nil || current < 1 {
			return filter, page, fmt.Errorf("page must be a positive integer")
		}
		page.Current = current
	}
	return filter, page, nil
}
