// Package cache holds the configuration a driver serves, mirrored from the
// authority: owned profiles, their devices and points, and the driver- and
// point-scoped attribute values resolved to (name, value, type).
//
// Load rebuilds everything from the authority; the Upsert*/Delete* handlers
// apply one change event at a time without a reload. Values referencing an
// attribute definition missing from the schema store are dropped, never
// cached with a dangling reference.
//
// # Indexes
//
//	profiles     profileID set
//	driverInfo   profileID → name → value
//	devices      deviceID → device, deviceName → deviceID
//	points       profileID → pointID → point
//	pointInfo    deviceID → pointID → name → value   (empty entries pruned)
//	pointNames   deviceID → pointName → pointID
package cache
