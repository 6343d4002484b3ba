package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	n := s.notifier
	drivers := &resource[authority.Driver]{
		s: s, name: "driver", repo: s.client.Drivers,
		idOf: func(d *authority.Driver) *int64 { return &d.ID },
	}
	driverAttributes := &resource[authority.Attribute]{
		s: s, name: "driver attribute", repo: s.client.DriverAttributes,
		idOf: func(a *authority.Attribute) *int64 { return &a.ID },
	}
	pointAttributes := &resource[authority.Attribute]{
		s: s, name: "point attribute", repo: s.client.PointAttributes,
		idOf: func(a *authority.Attribute) *int64 { return &a.ID },
	}
	profiles := &resource[authority.Profile]{
		s: s, name: "profile", repo: s.client.Profiles,
		idOf:  func(p *authority.Profile) *int64 { return &p.ID },
		owner: func(ctx context.Context, p *authority.Profile) (string, error) { return n.serviceOfDriver(ctx, p.DriverID) },
		moved: func(a, b *authority.Profile) bool { return a.DriverID != b.DriverID },
		notifier: n, followsMoves: true,
	}
	devices := &resource[authority.Device]{
		s: s, name: "device", repo: s.client.Devices,
		idOf:  func(d *authority.Device) *int64 { return &d.ID },
		owner: func(ctx context.Context, d *authority.Device) (string, error) { return n.serviceOfProfile(ctx, d.ProfileID) },
		moved: func(a, b *authority.Device) bool { return a.ProfileID != b.ProfileID },
		notifier: n, followsMoves: true,
	}
	points := &resource[authority.Point]{
		s: s, name: "point", repo: s.client.Points,
		idOf:  func(p *authority.Point) *int64 { return &p.ID },
		owner: func(ctx context.Context, p *authority.Point) (string, error) { return n.serviceOfProfile(ctx, p.ProfileID) },
		moved: func(a, b *authority.Point) bool { return a.ProfileID != b.ProfileID },
		notifier: n, followsMoves: true,
	}
	driverInfos := &resource[authority.DriverInfo]{
		s: s, name: "driver info", repo: s.client.DriverInfos,
		idOf:  func(i *authority.DriverInfo) *int64 { return &i.ID },
		owner: func(ctx context.Context, i *authority.DriverInfo) (string, error) { return n.serviceOfProfile(ctx, i.ProfileID) },
		moved: func(a, b *authority.DriverInfo) bool {
			return a.ProfileID != b.ProfileID || a.DriverAttributeID != b.DriverAttributeID
		},
		notifier: n,
	}
	pointInfos := &resource[authority.PointInfo]{
		s: s, name: "point info", repo: s.client.PointInfos,
		idOf:  func(i *authority.PointInfo) *int64 { return &i.ID },
		owner: func(ctx context.Context, i *authority.PointInfo) (string, error) { return n.serviceOfDevice(ctx, i.DeviceID) },
		moved: func(a, b *authority.PointInfo) bool {
			return a.DeviceID != b.DeviceID || a.PointID != b.PointID || a.PointAttributeID != b.PointAttributeID
		},
		notifier: n,
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/drivers", func(r chi.Router) {
				r.Get("/by-service/{name}", s.handleDriverByService)
				r.Get("/by-host/{host}/{port}", s.handleDriverByHost)
				drivers.routes(r)
			})
			r.Route("/driver-attributes", driverAttributes.routes)
			r.Route("/point-attributes", pointAttributes.routes)
			r.Route("/profiles", profiles.routes)
			r.Route("/devices", devices.routes)
			r.Route("/points", points.routes)
			r.Route("/driver-infos", driverInfos.routes)
			r.Route("/point-infos", pointInfos.routes)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleDriverByService looks a driver up by its unique service name.
func (s *Server) handleDriverByService(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed service name")
		return
	}
	d, err := s.client.Drivers.GetByServiceName(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

// handleDriverByHost looks a driver up by the host:port it listens on.
func (s *Server) handleDriverByHost(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "port must be an integer")
		return
	}
	host, err := url.PathUnescape(chi.URLParam(r, "host"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed host")
		return
	}
	d, err := s.client.Drivers.GetByHostPort(r.Context(), host, port)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}
