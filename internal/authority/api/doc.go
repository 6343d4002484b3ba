// Package api serves an authority.Client over HTTP.
//
// Every record kind gets the same routes under /api/v1:
//
//	GET    /{kind}        list; query: id, driver_id, profile_id, device_id,
//	                      point_id, attribute_id, page, size (absent = all)
//	POST   /{kind}        create
//	GET    /{kind}/{id}   read one
//	PUT    /{kind}/{id}   replace
//	DELETE /{kind}/{id}   delete; data reports whether anything was removed
//
// where kind is drivers, driver-attributes, point-attributes, profiles,
// devices, points, driver-infos or point-infos. Drivers are also reachable
// by their unique keys:
//
//	GET /drivers/by-service/{name}
//	GET /drivers/by-host/{host}/{port}
//
// Every response is an authority.Envelope. Failures carry the HTTP status
// of the underlying authority error (404, 409, 400, otherwise 500).
//
// Mutations of profiles, devices, points, driver infos and point infos are
// published as change events on the owning driver's topic
// (graylogic/driver/{service}/event/{kind}/{op}), which is what keeps every
// running agent's cache in step with the authority.
//
// When server.token_secret is set, every route except /api/v1/health
// requires an HS256 bearer token whose subject names the caller.
package api
